package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRunPrintsVersionAndExits(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run(&out, &errOut, []string{"corekv", "--version"}, nil)
	require.Equal(t, ExitOK, code)
	require.Contains(t, out.String(), "corekv")
}

func TestRunPrintsHelpAndExits(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run(&out, &errOut, []string{"corekv", "-h"}, nil)
	require.Equal(t, ExitOK, code)
	require.Contains(t, out.String(), "Usage: corekv")
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run(&out, &errOut, []string{"corekv", "--bogus"}, nil)
	require.Equal(t, ExitUsage, code)
}

func TestRunRejectsTooManyPositionalArgs(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run(&out, &errOut, []string{"corekv", "a.jsonc", "b.jsonc"}, nil)
	require.Equal(t, ExitUsage, code)
}

func TestRunRejectsMissingConfigFile(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run(&out, &errOut, []string{"corekv", filepath.Join(t.TempDir(), "missing.jsonc")}, nil)
	require.Equal(t, ExitConfig, code)
}

func TestRunRejectsInvalidConfigContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corekv.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"slab_evict_opt": "lfu"}`), 0o644))

	var out, errOut bytes.Buffer
	code := Run(&out, &errOut, []string{"corekv", path}, nil)
	require.Equal(t, ExitData, code)
}

func TestRunReloadsOnSIGHUPThenExitsOnSIGTERM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corekv.jsonc")
	statsPath := filepath.Join(dir, "stats.json")
	body := []byte(`{
		"listen_resp": "127.0.0.1:0", "listen_memcache": "", "listen_ping": "",
		"dump_stats": "` + filepath.ToSlash(statsPath) + `",
	}`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	var out, errOut syncBuffer
	sigCh := make(chan os.Signal, 1)

	done := make(chan int, 1)
	go func() { done <- Run(&out, &errOut, []string{"corekv", path}, sigCh) }()

	time.Sleep(20 * time.Millisecond)
	sigCh <- unix.SIGHUP
	time.Sleep(20 * time.Millisecond)
	require.Contains(t, errOut.String(), "reloaded log level")
	require.FileExists(t, statsPath)

	sigCh <- unix.SIGTERM

	select {
	case code := <-done:
		require.Equal(t, ExitOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after SIGTERM")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
