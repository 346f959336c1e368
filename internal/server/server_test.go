package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/config"
	memorypublisher "github.com/JakeFAU/sitebaker/internal/publisher/memory"
	"github.com/JakeFAU/sitebaker/internal/site"
	localstorage "github.com/JakeFAU/sitebaker/internal/storage/local"
)

type emptyContent struct {
	closed bool
}

func (*emptyContent) PublishedPosts(context.Context) ([]site.Post, error)       { return nil, nil }
func (*emptyContent) LatestPosts(context.Context, int) ([]site.Post, error)     { return nil, nil }
func (*emptyContent) PostBySlug(context.Context, string) (site.Post, error)     { return site.Post{}, site.ErrNotFound }
func (*emptyContent) FullPost(_ context.Context, p site.Post) (site.FullPost, error) {
	return site.FullPost{Post: p}, nil
}
func (*emptyContent) EntriesByCategory(context.Context) ([]site.CategoryWithEntries, error) {
	return nil, nil
}
func (*emptyContent) BlogIndex(context.Context) ([]site.BlogIndexEntry, error) { return nil, nil }
func (*emptyContent) Redirects(context.Context) ([]site.Redirect, error)       { return nil, nil }
func (*emptyContent) PublishedContents(context.Context) ([]string, error)      { return nil, nil }
func (c *emptyContent) Close()                                                 { c.closed = true }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("BAKER_SITE_BAKED_DIR", t.TempDir())
	t.Setenv("BAKER_SITE_BAKED_URL", "https://example.org")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestOpenResourcesDefaults(t *testing.T) {
	cfg := testConfig(t)

	res, err := OpenResources(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer res.Close()

	assert.Nil(t, res.Headless)
	assert.Nil(t, res.Mirror)
	assert.IsType(t, &memorypublisher.Publisher{}, res.Publisher)
	assert.NotNil(t, res.Runner)
	assert.NotNil(t, res.Clock)
}

func TestOpenResourcesLocalMirror(t *testing.T) {
	cfg := testConfig(t)
	cfg.Deploy.Mirror = config.MirrorConfig{Driver: config.MirrorLocal, BaseDir: t.TempDir()}

	res, err := OpenResources(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer res.Close()

	assert.IsType(t, &localstorage.BlobStore{}, res.Mirror)
}

func TestBakeAllWithEmptyContent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Site.Redirects = []string{"/feed /atom.xml 302"}

	res, err := OpenResources(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer res.Close()

	content := &emptyContent{}
	b, err := newBaker(cfg, res, content, site.BakeRequest{}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, b.BakeAll(context.Background()))
	assert.Contains(t, b.Staged(), "_redirects")
	assert.Contains(t, b.Staged(), "atom.xml")
	assert.Contains(t, b.Staged(), "index.html")

	b.End()
	assert.True(t, content.closed)
}

func TestBakerFactoryFailsWithoutDSN(t *testing.T) {
	cfg := testConfig(t)
	factory := NewBakerFactory(cfg, &Resources{}, nil)

	_, err := factory.ForWorker()(context.Background(), site.BakeRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open content store")
}

func TestAssetPaths(t *testing.T) {
	t.Parallel()

	got := assetPaths(config.DefaultAssetPaths)
	require.Len(t, got, len(config.DefaultAssetPaths))
	assert.Equal(t, "slides/", got[4].Source)
	assert.Equal(t, "slides", got[4].Dest)
}
