package testhelpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"gitlab.com/chora/chora/internal/vfs"
	"gitlab.com/chora/chora/internal/vfs/local"
)

var fs = vfs.Instrumented(&local.VFS{})

// TmpDir returns an instrumented local VFS and a fresh directory with
// symlinks resolved, so paths compare equal to what handlers see
func TmpDir(tb testing.TB) (vfs.VFS, string) {
	tb.Helper()

	dir, err := filepath.EvalSymlinks(tb.TempDir())
	require.NoError(tb, err)

	return fs, dir
}

// MakeStaticRoute creates dir with STATUS, DATA and HEADERS artifacts
func MakeStaticRoute(tb testing.TB, dir, status, body, headers string) {
	tb.Helper()

	require.NoError(tb, os.MkdirAll(dir, 0755))

	for name, content := range map[string]string{
		"STATUS":  status,
		"DATA":    body,
		"HEADERS": headers,
	} {
		err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
		require.NoError(tb, err)
	}
}

// MakeHandler creates dir/HANDLE as a shell script with the given body and
// permissions, returning the script path
func MakeHandler(tb testing.TB, dir, script string, perm os.FileMode) string {
	tb.Helper()

	require.NoError(tb, os.MkdirAll(dir, 0755))

	path := filepath.Join(dir, "HANDLE")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), perm)
	require.NoError(tb, err)

	// WriteFile applies the umask, Chmod does not
	require.NoError(tb, os.Chmod(path, perm))

	return path
}

// AssertLogContains checks that wantLogEntry is contained in at least one of the log entries
func AssertLogContains(t *testing.T, wantLogEntry string, entries []*logrus.Entry) {
	t.Helper()

	if wantLogEntry != "" {
		messages := make([]string, len(entries))
		for k, entry := range entries {
			messages[k] = entry.Message
		}

		require.Contains(t, messages, wantLogEntry)
	}
}
