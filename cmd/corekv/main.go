// Command corekv runs the cache server: it loads configuration, wires
// the store and its dispatch loop, and serves the RESP, memcache, and
// ping wire dialects until told to stop.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/corekv/corekv/internal/cli"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	code := cli.Run(os.Stdout, os.Stderr, os.Args, sigCh)
	os.Exit(code)
}
