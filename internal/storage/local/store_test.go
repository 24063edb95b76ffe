// Package local_test tests the screenshot output directory.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/screenshot-daily/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})
	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})
}

func TestEnsure(t *testing.T) {
	t.Run("CreatesDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "shots")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		require.NoError(t, store.Ensure())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		store, err := local.New(local.Config{BaseDir: file})
		require.NoError(t, err)
		assert.Error(t, store.Ensure())
	})

	t.Run("BaseDirNotWritable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		dir := t.TempDir()
		// #nosec G302 -- directory permissions adjusted intentionally for test coverage.
		require.NoError(t, os.Chmod(dir, 0o500))
		t.Cleanup(func() {
			// #nosec G302 -- reverting permissions to allow cleanup in the test environment.
			_ = os.Chmod(dir, 0o700)
		})

		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.Error(t, store.Ensure())
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	t.Run("WritesAndOverwrites", func(t *testing.T) {
		path, err := store.Save(context.Background(), "a.example.png", []byte("first"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "a.example.png"), path)

		_, err = store.Save(context.Background(), "a.example.png", []byte("second"))
		require.NoError(t, err)

		// #nosec G304 -- test reads from the controlled temp directory.
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := store.Save(context.Background(), "", []byte("data"))
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := store.Save(context.Background(), "../escape.png", []byte("data"))
		assert.Error(t, err)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := store.Save(ctx, "late.png", []byte("data"))
		assert.Error(t, err)
	})
}

func TestClear(t *testing.T) {
	t.Run("RemovesScreenshotsKeepsDirectory", func(t *testing.T) {
		dir := t.TempDir()
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)

		_, err = store.Save(context.Background(), "one.png", []byte("1"))
		require.NoError(t, err)
		_, err = store.Save(context.Background(), "TWO.PNG", []byte("2"))
		require.NoError(t, err)

		require.NoError(t, store.Clear(context.Background()))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("LeavesWorkingTreeAlone", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600))
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs.png"), 0o750))

		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		_, err = store.Save(context.Background(), "a.example.png", []byte("img"))
		require.NoError(t, err)
		_, err = store.Save(context.Background(), "sub/nested.png", []byte("img"))
		require.NoError(t, err)

		require.NoError(t, store.Clear(context.Background()))

		for _, kept := range []string{
			filepath.Join(".git", "HEAD"),
			filepath.Join(".git", "objects"),
			"main.go",
			"notes.txt",
			"docs.png",
			filepath.Join("sub", "nested.png"),
		} {
			_, err := os.Stat(filepath.Join(dir, kept))
			assert.NoError(t, err, kept)
		}
		_, err = os.Stat(filepath.Join(dir, "a.example.png"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: filepath.Join(t.TempDir(), "absent")})
		require.NoError(t, err)
		assert.NoError(t, store.Clear(context.Background()))
	})

	t.Run("CanceledContext", func(t *testing.T) {
		dir := t.TempDir()
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		_, err = store.Save(context.Background(), "one.png", []byte("1"))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, store.Clear(ctx))
	})
}
