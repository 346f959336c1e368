package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/assets"
	"github.com/JakeFAU/sitebaker/internal/baker"
	"github.com/JakeFAU/sitebaker/internal/config"
	"github.com/JakeFAU/sitebaker/internal/deploy"
	collyfetcher "github.com/JakeFAU/sitebaker/internal/fetcher/colly"
	"github.com/JakeFAU/sitebaker/internal/grapher"
	"github.com/JakeFAU/sitebaker/internal/hash/sha256"
	"github.com/JakeFAU/sitebaker/internal/logging"
	"github.com/JakeFAU/sitebaker/internal/policy/ratelimit"
	"github.com/JakeFAU/sitebaker/internal/site"
	localstorage "github.com/JakeFAU/sitebaker/internal/storage/local"
	"github.com/JakeFAU/sitebaker/internal/views"
	"github.com/JakeFAU/sitebaker/internal/worker"
	"github.com/JakeFAU/sitebaker/internal/wpdb"
)

// BakerFactory builds a Baker for one bake request.
type BakerFactory func(ctx context.Context, req site.BakeRequest) (*baker.Baker, error)

// ForWorker adapts the factory to the worker's interface.
func (f BakerFactory) ForWorker() worker.Factory {
	return func(ctx context.Context, req site.BakeRequest) (worker.Bake, error) {
		b, err := f(ctx, req)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// NewBakerFactory returns a factory opening a fresh content store connection
// per bake; Baker.End closes it.
func NewBakerFactory(cfg config.Config, res *Resources, logger *zap.Logger) BakerFactory {
	logger = logging.OrNop(logger)
	return func(ctx context.Context, req site.BakeRequest) (*baker.Baker, error) {
		content, err := wpdb.New(ctx, wpdb.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("open content store: %w", err)
		}
		b, err := newBaker(cfg, res, content, req, logger)
		if err != nil {
			content.Close()
			return nil, err
		}
		return b, nil
	}
}

func newBaker(
	cfg config.Config,
	res *Resources,
	content site.ContentStore,
	req site.BakeRequest,
	logger *zap.Logger,
) (*baker.Baker, error) {
	output, err := localstorage.New(localstorage.Config{BaseDir: cfg.Site.BakedDir})
	if err != nil {
		return nil, fmt.Errorf("baked dir store init failed: %w", err)
	}

	renderer, err := views.New(views.Settings{
		Title:          cfg.Site.Title,
		Subtitle:       cfg.Site.Subtitle,
		StaticRoot:     cfg.Site.StaticRoot,
		BakedURL:       cfg.BakedURL(),
		CitationAuthor: cfg.Site.CitationAuthor,
		JournalTitle:   cfg.Site.JournalTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("views init failed: %w", err)
	}

	chartDeps := grapher.Deps{
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Grapher.UserAgent,
			Timeout:   cfg.GrapherTimeout(),
		}),
		Headless: res.Headless,
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Grapher.RPS,
			DefaultBurst: cfg.Grapher.Burst,
		}),
		Store:  output,
		Hasher: sha256.New(),
		Logger: logger,
	}
	charts, err := grapher.New(grapher.Config{
		ExportsPrefix: cfg.Grapher.ExportsPrefix,
		Concurrency:   cfg.Grapher.Concurrency,
		Selector:      cfg.Grapher.Headless.Selector,
	}, chartDeps)
	if err != nil {
		return nil, fmt.Errorf("grapher init failed: %w", err)
	}

	deps := baker.Deps{
		Content:   content,
		Output:    output,
		Views:     renderer,
		Charts:    charts,
		Publisher: res.Publisher,
		Mirror:    res.Mirror,
		Clock:     res.Clock,
		Logger:    logger,
	}

	if cfg.Site.WordpressDir != "" {
		syncer, err := assets.New(assets.Config{
			WordpressDir: cfg.Site.WordpressDir,
			BakedDir:     cfg.Site.BakedDir,
			RsyncBin:     cfg.Assets.RsyncBin,
			RsyncArgs:    cfg.Assets.RsyncArgs,
			Paths:        assetPaths(cfg.Assets.Paths),
		}, res.Runner, logger)
		if err != nil {
			return nil, fmt.Errorf("asset syncer init failed: %w", err)
		}
		deps.Assets = syncer
	} else {
		logger.Debug("site.wordpress_dir not set, asset sync disabled")
	}

	git, err := deploy.New(cfg.Site.BakedDir, deploy.Config{
		GitBin:      cfg.Deploy.GitBin,
		Remote:      cfg.Deploy.Remote,
		Branch:      cfg.Deploy.Branch,
		ChunkSize:   cfg.Deploy.ChunkSize,
		AuthorName:  cfg.Deploy.AuthorName,
		AuthorEmail: cfg.Deploy.AuthorEmail,
	}, res.Runner, logger)
	if err != nil {
		return nil, fmt.Errorf("deployer init failed: %w", err)
	}
	deps.Deployer = git

	return baker.New(deps, baker.Options{
		Force:            req.Force,
		Concurrency:      cfg.Bake.Concurrency,
		BakedURL:         cfg.BakedURL(),
		Title:            cfg.Site.Title,
		Subtitle:         cfg.Site.Subtitle,
		BlogPostsPerPage: cfg.Site.BlogPostsPerPage,
		FrontPagePosts:   cfg.Site.FrontPagePosts,
		FeedSize:         cfg.Site.FeedSize,
		Redirects:        cfg.Site.Redirects,
		PreserveHTML:     cfg.Site.PreserveHTML,
	})
}

func assetPaths(paths []config.AssetPath) []assets.Path {
	out := make([]assets.Path, 0, len(paths))
	for _, p := range paths {
		out = append(out, assets.Path{Source: p.Source, Dest: p.Dest})
	}
	return out
}
