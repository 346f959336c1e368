// Package local_test tests the local filesystem blob store.
package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitebaker/internal/site"
	"github.com/JakeFAU/sitebaker/internal/storage/local"
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

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "baked", "site")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.Equal(t, dir, store.Root())
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "testfile")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	t.Run("ValidPut", func(t *testing.T) {
		uri, err := store.PutObject(context.Background(), "index.html", "text/html", bytes.NewReader([]byte("<html></html>")))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(tempDir, "index.html"), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(tempDir, "index.html"))
		require.NoError(t, err)
		assert.Equal(t, "<html></html>", string(readData))
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "atom.xml", "application/atom+xml", bytes.NewReader([]byte("v1")))
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "atom.xml", "application/atom+xml", bytes.NewReader([]byte("v2")))
		require.NoError(t, err)

		data, err := store.GetObject(context.Background(), "atom.xml")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
	})

	t.Run("NestedPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "blog/page/2.html", "text/html", bytes.NewReader([]byte("page two")))
		require.NoError(t, err)

		data, err := store.GetObject(context.Background(), "blog/page/2.html")
		require.NoError(t, err)
		assert.Equal(t, "page two", string(data))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "text/plain", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../escape.html", "text/html", bytes.NewReader([]byte("x")))
		assert.ErrorContains(t, err, "path traversal")
	})
}

func TestGetAndDeleteObject(t *testing.T) {
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.GetObject(ctx, "missing.html")
	require.ErrorIs(t, err, site.ErrNotFound)

	_, err = store.PutObject(ctx, "old-post.html", "text/html", bytes.NewReader([]byte("stale")))
	require.NoError(t, err)

	require.NoError(t, store.DeleteObject(ctx, "old-post.html"))
	_, err = store.GetObject(ctx, "old-post.html")
	require.ErrorIs(t, err, site.ErrNotFound)

	require.NoError(t, store.DeleteObject(ctx, "old-post.html"), "deleting twice is not an error")
}

func TestListFiltersBySuffixAndSkipsDotDirs(t *testing.T) {
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	for _, p := range []string{"index.html", "blog/page/2.html", "atom.xml", ".git/ignored.html", "about.html"} {
		_, err := store.PutObject(ctx, p, "", bytes.NewReader([]byte(p)))
		require.NoError(t, err)
	}

	paths, err := store.List(ctx, ".html")
	require.NoError(t, err)
	assert.Equal(t, []string{"about.html", "blog/page/2.html", "index.html"}, paths)
}

func TestRelativeBaseDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	store, err := local.New(local.Config{BaseDir: "."})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(store.Root()))

	_, err = store.PutObject(context.Background(), "index.html", "text/html", bytes.NewReader([]byte("<html></html>")))
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))

	_, err = store.PutObject(context.Background(), "../escape.html", "text/html", bytes.NewReader(nil))
	assert.Error(t, err)
}
