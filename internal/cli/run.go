// Package cli implements the corekv binary's command line: flag
// parsing, config loading, signal-driven shutdown, and exit-code
// mapping, in the same shape agent-task's internal/cli/run.go uses for
// its own single entry point, trimmed down from a command-dispatch
// table to a single always-on daemon loop since corekv has one job.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/corekv/corekv/internal/config"
	"github.com/corekv/corekv/internal/corectx"
	"github.com/corekv/corekv/internal/serve"
	"github.com/corekv/corekv/internal/slab"
	"github.com/corekv/corekv/internal/store"
)

// Exit codes, following sysexits.h.
const (
	ExitOK     = 0
	ExitUsage  = 64 // EX_USAGE: bad arguments
	ExitConfig = 78 // EX_CONFIG: setup failure
	ExitData   = 65 // EX_DATAERR: bad config contents
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Run is corekv's process entry point. sigCh may be nil in tests that
// don't exercise signal handling.
func Run(out, errOut io.Writer, args []string, sigCh <-chan os.Signal) int {
	flags := flag.NewFlagSet("corekv", flag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.Usage = func() {}
	flags.SetOutput(&strings.Builder{})

	flagHelp := flags.BoolP("help", "h", false, "Show help")
	flagVersion := flags.BoolP("version", "v", false, "Print version")

	if err := flags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)
		return ExitUsage
	}

	if *flagHelp {
		printUsage(out)
		return ExitOK
	}
	if *flagVersion {
		fprintln(out, "corekv", Version)
		return ExitOK
	}

	rest := flags.Args()
	if len(rest) > 1 {
		fprintln(errOut, "error: at most one config file may be given")
		printUsage(errOut)
		return ExitUsage
	}

	var configPath string
	if len(rest) == 1 {
		configPath = rest[0]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fprintln(errOut, "error:", err)
		return ExitConfig
	}
	if err := config.Validate(cfg); err != nil {
		fprintln(errOut, "error:", err)
		return ExitData
	}

	log := logrus.New()
	log.SetOutput(errOut)
	if lvl, lerr := logrus.ParseLevel(cfg.LogLevel); lerr == nil {
		log.SetLevel(lvl)
	}

	ctx := buildCoreContext(cfg, log)
	dumpPath := cfg.DumpStats

	srv := serve.New(ctx, serve.Listeners{
		RESP:     cfg.ListenRESP,
		Memcache: cfg.ListenMemcache,
		Ping:     cfg.ListenPing,
	}, serve.DynBufConfig{
		InitSize: cfg.BufInitSize,
		MaxPower: cfg.DbufMaxPower,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(runCtx) }()

	for {
		select {
		case err := <-done:
			if err != nil {
				fprintln(errOut, "error:", err)
				return ExitConfig
			}
			return ExitOK
		case sig := <-sigCh:
			if sig == unix.SIGHUP {
				dumpPath = reload(configPath, dumpPath, log, errOut)
				if dumpPath != "" {
					if err := dumpStats(dumpPath, ctx); err != nil {
						fprintln(errOut, "SIGHUP: stats dump failed:", err)
					}
				}
				continue
			}
			log.Info("shutting down, 5s graceful timeout")
			cancel()
			select {
			case <-done:
				return ExitOK
			case <-time.After(5 * time.Second):
				fprintln(errOut, "graceful shutdown timed out, forcing exit")
				return ExitOK
			}
		}
	}
}

// reload re-reads configPath on SIGHUP and applies the parts of it
// that are safe to change without restarting the listeners or the
// store: the log level and the stats-dump path. Listener addresses
// and slab geometry require a process restart to take effect. Returns
// the dump-stats path to use from now on (unchanged from prevDump on
// any failure).
func reload(configPath, prevDump string, log *logrus.Logger, errOut io.Writer) string {
	cfg, err := config.Load(configPath)
	if err != nil {
		fprintln(errOut, "SIGHUP: reload failed:", err)
		return prevDump
	}
	if err := config.Validate(cfg); err != nil {
		fprintln(errOut, "SIGHUP: reload failed:", err)
		return prevDump
	}
	if lvl, lerr := logrus.ParseLevel(cfg.LogLevel); lerr == nil {
		log.SetLevel(lvl)
	}
	log.Info("SIGHUP: reloaded log level")
	return cfg.DumpStats
}

func buildCoreContext(cfg config.Config, log *logrus.Logger) *corectx.CoreContext {
	storeCfg := store.Config{
		Slab: slab.Config{
			SlabSize:      cfg.SlabSize,
			ChunkSize:     cfg.SlabChunkSize,
			GrowthFactor:  cfg.SlabGrowthFactor,
			MaxBytes:      cfg.SlabMaxbytes,
			UseCAS:        cfg.SlabUseCas,
			Prealloc:      cfg.SlabPrealloc,
			EvictPolicy:   evictPolicy(cfg.SlabEvictOpt),
			UseFreeQ:      cfg.SlabUseFreeq,
			Profile:       cfg.SlabProfile,
			ProfileLastID: cfg.SlabProfileLastID,
		},
		HashPower: cfg.SlabHashPower,
		UseCAS:    cfg.SlabUseCas,
	}
	return corectx.New(storeCfg, log)
}

func evictPolicy(name string) slab.EvictPolicy {
	switch name {
	case "random":
		return slab.EvictRandom
	case "lru":
		return slab.EvictLRU
	default:
		return slab.EvictNone
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const usageText = `corekv - in-memory key/value cache server

Usage: corekv [flags] [config-file]

Flags:
  -h, --help       Show help
  -v, --version    Print version

If config-file is omitted, built-in defaults are used.`

func printUsage(w io.Writer) {
	fprintln(w, usageText)
}
