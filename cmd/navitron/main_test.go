// File: cmd/navitron/main_test.go
package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	t.Run("writes the panic log and exits with code 2", func(t *testing.T) {
		resetMocks()
		var written []byte
		var path string
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			path, written = name, data
			return nil
		}
		exitCode := -1
		osExit = func(code int) { exitCode = code }

		func() {
			defer handlePanic()
			panic("boom")
		}()

		assert.Equal(t, 2, exitCode)
		assert.Equal(t, panicLogFile, path)
		assert.Contains(t, string(written), "panic: boom")
		assert.Contains(t, string(written), "goroutine")
	})

	t.Run("still exits when the log cannot be written", func(t *testing.T) {
		resetMocks()
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only filesystem") }
		exitCode := -1
		osExit = func(code int) { exitCode = code }

		func() {
			defer handlePanic()
			panic("boom")
		}()

		assert.Equal(t, 2, exitCode)
	})

	t.Run("does nothing without a panic", func(t *testing.T) {
		resetMocks()
		called := false
		osExit = func(int) { called = true }

		func() {
			defer handlePanic()
		}()

		assert.False(t, called)
	})
}

func TestRun(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	t.Run("success", func(t *testing.T) {
		os.Args = []string{"navitron", "version"}
		assert.Equal(t, 0, run(t.Context()))
	})

	t.Run("failure", func(t *testing.T) {
		dir := t.TempDir()
		cfg := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("store:\n  type: file\n  dir: "+dir+"\n"), 0o644))
		os.Args = []string{"navitron", "--config", cfg, "route", "Jita", "Amarr"}
		assert.Equal(t, 1, run(t.Context()))
	})
}
