// Package baker runs the bake pipeline: it reads published content, renders
// every page, writes the results into the output store and records which
// files changed so they can be committed and deployed.
package baker

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/assets"
	"github.com/JakeFAU/sitebaker/internal/clock/system"
	"github.com/JakeFAU/sitebaker/internal/deploy"
	"github.com/JakeFAU/sitebaker/internal/hash/sha256"
	"github.com/JakeFAU/sitebaker/internal/logging"
	"github.com/JakeFAU/sitebaker/internal/metrics"
	"github.com/JakeFAU/sitebaker/internal/site"
)

const tracerName = "github.com/JakeFAU/sitebaker/internal/baker"

// DefaultTopic is the event published after a deploy.
const DefaultTopic = "site.baked"

// Stage names, used for errors, spans and metrics.
const (
	StageRedirects = "redirects"
	StageEmbeds    = "embeds"
	StagePosts     = "posts"
	StagePost      = "post"
	StageFrontPage = "front_page"
	StageBlog      = "blog"
	StageRSS       = "rss"
	StageAssets    = "assets"
	StageDeploy    = "deploy"
)

// StageError reports which bake stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("bake %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Views renders the site's pages.
type Views interface {
	ArticlePage(entries []site.CategoryWithEntries, post site.FormattedPost) (string, error)
	BlogPostPage(entries []site.CategoryWithEntries, post site.FormattedPost) (string, error)
	FrontPage(entries []site.CategoryWithEntries, posts []site.Post) (string, error)
	BlogPage(entries []site.CategoryWithEntries, index []site.BlogIndexEntry, pageNum, numPages int) (string, error)
}

// ChartBaker writes static exports of embedded charts.
type ChartBaker interface {
	BakeChartURLs(ctx context.Context, urls []string) ([]string, error)
	ExportsByURL(ctx context.Context) (site.ChartExports, error)
}

// AssetSyncer mirrors static assets into the baked directory.
type AssetSyncer interface {
	Sync(ctx context.Context) (assets.Result, error)
}

// Deployer commits and pushes the staged files.
type Deployer interface {
	Deploy(ctx context.Context, staged []string, commit deploy.Commit) error
}

// Deps are the collaborators of a Baker. Charts, Assets, Deployer, Mirror
// and Publisher are optional; the stages that need them are skipped or fail
// with a clear error when they are missing.
type Deps struct {
	Content   site.ContentStore
	Output    site.OutputStore
	Views     Views
	Charts    ChartBaker
	Assets    AssetSyncer
	Deployer  Deployer
	Mirror    site.BlobStore
	Publisher site.Publisher
	Clock     site.Clock
	Logger    *zap.Logger
}

// Options tune a single bake.
type Options struct {
	Force            bool
	Concurrency      int
	BakedURL         string
	Title            string
	Subtitle         string
	BlogPostsPerPage int
	FrontPagePosts   int
	FeedSize         int
	Redirects        []string
	PreserveHTML     []string
	Topic            string
}

// Baker holds the state of one bake run, most importantly the list of files
// it staged. Build a new Baker per run.
type Baker struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	staged  []string
	result  site.BakeResult
	exports site.ChartExports

	entriesMu sync.Mutex
	entries   []site.CategoryWithEntries
}

// New validates the dependencies and returns a Baker ready to run.
func New(deps Deps, opts Options) (*Baker, error) {
	if deps.Content == nil {
		return nil, errors.New("baker: content store is required")
	}
	if deps.Output == nil {
		return nil, errors.New("baker: output store is required")
	}
	if deps.Views == nil {
		return nil, errors.New("baker: views are required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.BlogPostsPerPage <= 0 {
		opts.BlogPostsPerPage = 21
	}
	if opts.FrontPagePosts <= 0 {
		opts.FrontPagePosts = 6
	}
	if opts.FeedSize <= 0 {
		opts.FeedSize = 10
	}
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	opts.BakedURL = strings.TrimRight(opts.BakedURL, "/")
	return &Baker{
		deps:   deps,
		opts:   opts,
		logger: logging.OrNop(deps.Logger).Named("baker"),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Staged returns the files staged so far, relative to the output root.
func (b *Baker) Staged() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.staged)
}

// Result summarises the run so far.
func (b *Baker) Result() site.BakeResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := b.result
	res.Staged = len(b.staged)
	return res
}

// StageWrite writes content to path (relative to the output root) and stages
// it. Unless the bake is forced, content identical to what is already on
// disk is neither rewritten nor staged.
func (b *Baker) StageWrite(ctx context.Context, name string, content string) error {
	rel, err := cleanPath(name)
	if err != nil {
		return err
	}
	kind := fileKind(rel)

	if !b.opts.Force {
		existing, err := b.deps.Output.GetObject(ctx, rel)
		switch {
		case err == nil && sha256.Sum(existing) == sha256.Sum([]byte(content)):
			b.mu.Lock()
			b.result.Unchanged++
			b.mu.Unlock()
			metrics.ObserveFile(kind, metrics.FileUnchanged)
			b.logger.Debug("unchanged", zap.String("path", rel))
			return nil
		case err != nil && !errors.Is(err, site.ErrNotFound):
			return fmt.Errorf("read %s: %w", rel, err)
		}
	}

	if _, err := b.deps.Output.PutObject(ctx, rel, contentType(rel), strings.NewReader(content)); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	metrics.ObserveFile(kind, metrics.FileStaged)
	b.Stage(rel, "")
	return nil
}

// Stage records path as changed and logs msg, or the path when msg is empty.
func (b *Baker) Stage(name string, msg string) {
	rel := strings.TrimPrefix(path.Clean("/"+name), "/")
	if msg == "" {
		msg = rel
	}
	b.logger.Info(msg)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !slices.Contains(b.staged, rel) {
		b.staged = append(b.staged, rel)
	}
}

// End releases the content store.
func (b *Baker) End() {
	b.deps.Content.Close()
}

func (b *Baker) runStage(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	ctx, span := b.tracer.Start(ctx, "bake."+stage, trace.WithAttributes(
		attribute.String("bake.stage", stage),
		attribute.Bool("bake.force", b.opts.Force),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	metrics.ObserveStage(stage, elapsed, err)
	span.SetAttributes(attribute.Int("bake.staged", len(b.Staged())))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Error("stage failed", zap.String("stage", stage), zap.Duration("duration", elapsed), zap.Error(err))
		return &StageError{Stage: stage, Err: err}
	}
	b.logger.Debug("stage complete", zap.String("stage", stage), zap.Duration("duration", elapsed))
	return nil
}

// entriesByCategory loads the navigation once per run.
func (b *Baker) entriesByCategory(ctx context.Context) ([]site.CategoryWithEntries, error) {
	b.entriesMu.Lock()
	defer b.entriesMu.Unlock()
	if b.entries != nil {
		return b.entries, nil
	}
	entries, err := b.deps.Content.EntriesByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entries by category: %w", err)
	}
	if entries == nil {
		entries = []site.CategoryWithEntries{}
	}
	b.entries = entries
	return entries, nil
}

func (b *Baker) chartExports() site.ChartExports {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exports
}

func cleanPath(name string) (string, error) {
	rel := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(name)), "/")
	if rel == "" {
		return "", errors.New("empty output path")
	}
	return rel, nil
}

func fileKind(rel string) string {
	if ext := path.Ext(rel); ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	return path.Base(rel)
}

func contentType(rel string) string {
	switch path.Ext(rel) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".xml":
		return "application/atom+xml; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}
