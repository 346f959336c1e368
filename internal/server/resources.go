package server

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/clock/system"
	"github.com/JakeFAU/sitebaker/internal/config"
	headlessfetcher "github.com/JakeFAU/sitebaker/internal/fetcher/headless"
	"github.com/JakeFAU/sitebaker/internal/logging"
	memorypublisher "github.com/JakeFAU/sitebaker/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/sitebaker/internal/publisher/pubsub"
	"github.com/JakeFAU/sitebaker/internal/shell"
	"github.com/JakeFAU/sitebaker/internal/site"
	gcsstorage "github.com/JakeFAU/sitebaker/internal/storage/gcs"
	localstorage "github.com/JakeFAU/sitebaker/internal/storage/local"
	s3storage "github.com/JakeFAU/sitebaker/internal/storage/s3"
)

// Resources are the long-lived clients shared by every bake of a process.
type Resources struct {
	Headless  site.Fetcher
	Mirror    site.BlobStore
	Publisher site.Publisher
	Runner    site.Runner
	Clock     site.Clock

	chrome          *headlessfetcher.Fetcher
	gcsClient       *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	logger          *zap.Logger
}

// OpenResources connects the optional cloud clients named by cfg. Call Close
// when done, also after an error.
func OpenResources(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Resources, error) {
	logger = logging.OrNop(logger)
	res := &Resources{
		Runner: shell.New(logger.Named("shell")),
		Clock:  system.New(),
		logger: logger,
	}

	if cfg.Grapher.Headless.Enabled {
		chrome, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Grapher.Headless.MaxParallel,
			UserAgent:         cfg.Grapher.UserAgent,
			NavigationTimeout: cfg.HeadlessTimeout(),
			Selector:          cfg.Grapher.Headless.Selector,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed, charts without an svg export are skipped", zap.Error(err))
		} else {
			res.chrome = chrome
			res.Headless = chrome
			logger.Info("using headless chart capture", zap.Int("max_parallel", cfg.Grapher.Headless.MaxParallel))
		}
	}

	mirror, err := res.openMirror(ctx, cfg.Deploy.Mirror)
	if err != nil {
		return res, err
	}
	res.Mirror = mirror

	publisher, err := res.openPublisher(ctx, cfg.PubSub)
	if err != nil {
		return res, err
	}
	res.Publisher = publisher
	return res, nil
}

func (r *Resources) openMirror(ctx context.Context, cfg config.MirrorConfig) (site.BlobStore, error) {
	switch cfg.Driver {
	case config.MirrorLocal:
		r.logger.Info("mirroring baked files to a local directory", zap.String("path", cfg.BaseDir))
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local mirror init failed: %w", err)
		}
		return store, nil
	case config.MirrorGCS:
		r.logger.Info("mirroring baked files to GCS", zap.String("bucket", cfg.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		r.gcsClient = client
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			return nil, fmt.Errorf("gcs mirror init failed: %w", err)
		}
		return store, nil
	case config.MirrorS3:
		r.logger.Info("mirroring baked files to S3", zap.String("bucket", cfg.Bucket), zap.String("region", cfg.Region))
		store, err := s3storage.New(ctx, s3storage.Config{
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 mirror init failed: %w", err)
		}
		return store, nil
	default:
		r.logger.Debug("bucket mirror disabled")
		return nil, nil
	}
}

func (r *Resources) openPublisher(ctx context.Context, cfg config.PubSubConfig) (site.Publisher, error) {
	if cfg.TopicName == "" || cfg.ProjectID == "" {
		r.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	r.pubsubClient = client
	r.pubsubPublisher = client.Publisher(cfg.TopicName)
	r.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", cfg.ProjectID),
		zap.String("topic", cfg.TopicName),
	)
	return gcppublisher.New(r.pubsubPublisher), nil
}

// Close releases every client that was opened.
func (r *Resources) Close() {
	if r == nil {
		return
	}
	if r.chrome != nil {
		r.chrome.Close()
	}
	if r.pubsubPublisher != nil {
		r.pubsubPublisher.Stop()
	}
	if r.pubsubClient != nil {
		if err := r.pubsubClient.Close(); err != nil {
			r.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if r.gcsClient != nil {
		if err := r.gcsClient.Close(); err != nil {
			r.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
}
