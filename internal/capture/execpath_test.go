package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBinary(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestFindExecPathExplicitWins(t *testing.T) {
	explicit := fakeBinary(t, "my-chrome")
	t.Setenv("CHROME_PATH", fakeBinary(t, "env-chrome"))

	path, ok := FindExecPath(explicit)
	require.True(t, ok)
	assert.Equal(t, explicit, path)
}

func TestFindExecPathFromEnvironment(t *testing.T) {
	envPath := fakeBinary(t, "env-chrome")
	t.Setenv("CHROME_PATH", "")
	t.Setenv("CHROMEDP_EXEC_PATH", envPath)

	path, ok := FindExecPath("")
	require.True(t, ok)
	assert.Equal(t, envPath, path)
}

func TestFindExecPathSkipsMissingAndDirectories(t *testing.T) {
	t.Setenv("CHROME_PATH", t.TempDir())
	t.Setenv("CHROMEDP_EXEC_PATH", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("PATH", t.TempDir())

	path, ok := FindExecPath("")
	assert.False(t, ok)
	assert.Empty(t, path)
}

func TestFindExecPathSearchesPath(t *testing.T) {
	bin := fakeBinary(t, "chromium")
	t.Setenv("CHROME_PATH", "")
	t.Setenv("CHROMEDP_EXEC_PATH", "")
	t.Setenv("PATH", filepath.Dir(bin))

	path, ok := FindExecPath("")
	require.True(t, ok)
	assert.Equal(t, bin, path)
}
