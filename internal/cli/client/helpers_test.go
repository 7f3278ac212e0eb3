package client

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// useTempConfig points the config lookups at a fresh directory and clears
// credential env vars for the duration of the test.
func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), ".mmrag")
	path := filepath.Join(dir, "config.json")

	origDir, origPath := getConfigDirFunc, getConfigPathFunc
	getConfigDirFunc = func() (string, error) { return dir, nil }
	getConfigPathFunc = func() (string, error) { return path, nil }
	t.Cleanup(func() {
		getConfigDirFunc, getConfigPathFunc = origDir, origPath
	})

	t.Setenv(envAPIKey, "")
	t.Setenv(envAPIURL, "")
	return path
}

// captureStdout returns what fn printed to stdout.
func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	require.NoError(t, w.Close())
	os.Stdout = orig
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, fnErr)
	return string(out)
}

func hexKey(ch string) string {
	key := apiKeyPrefix
	for len(key) < len(apiKeyPrefix)+64 {
		key += ch
	}
	return key
}
