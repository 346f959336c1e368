package baker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitebaker/internal/formatting"
	"github.com/JakeFAU/sitebaker/internal/metrics"
	"github.com/JakeFAU/sitebaker/internal/site"
	"github.com/JakeFAU/sitebaker/internal/views"
)

// Output files at fixed paths.
const (
	RedirectsFile = "_redirects"
	FrontPageFile = "index.html"
	FeedFile      = "atom.xml"
	blogSlug      = "blog"
)

// BakeAll runs every stage in order and stops at the first failure.
func (b *Baker) BakeAll(ctx context.Context) error {
	steps := []func(context.Context) error{
		b.BakeRedirects,
		b.BakeBlog,
		b.BakeRSS,
		b.BakeAssets,
		b.BakeEmbeds,
		b.BakeFrontPage,
		b.BakePosts,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	res := b.Result()
	b.logger.Info("bake complete",
		zap.Int("staged", res.Staged),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("deleted", res.Deleted),
		zap.Int("charts", res.Charts),
	)
	return nil
}

// BakeRedirects writes the static redirect rules followed by the ones
// stored in the database.
func (b *Baker) BakeRedirects(ctx context.Context) error {
	return b.runStage(ctx, StageRedirects, func(ctx context.Context) error {
		rows, err := b.deps.Content.Redirects(ctx)
		if err != nil {
			return fmt.Errorf("load redirects: %w", err)
		}
		lines := make([]string, 0, len(b.opts.Redirects)+len(rows))
		lines = append(lines, b.opts.Redirects...)
		for _, r := range rows {
			lines = append(lines, r.String())
		}
		return b.StageWrite(ctx, RedirectsFile, strings.Join(lines, "\n"))
	})
}

// BakeEmbeds exports every chart embedded in published content and loads the
// resulting URL to export map for the post stages.
func (b *Baker) BakeEmbeds(ctx context.Context) error {
	return b.runStage(ctx, StageEmbeds, func(ctx context.Context) error {
		if b.deps.Charts == nil {
			b.logger.Warn("chart exporter not configured, embeds stay interactive")
			return nil
		}
		contents, err := b.deps.Content.PublishedContents(ctx)
		if err != nil {
			return fmt.Errorf("load published contents: %w", err)
		}
		seen := make(map[string]struct{})
		var urls []string
		for _, content := range contents {
			for _, u := range formatting.GrapherURLs(content) {
				if _, ok := seen[u]; ok {
					continue
				}
				seen[u] = struct{}{}
				urls = append(urls, u)
			}
		}

		written, err := b.deps.Charts.BakeChartURLs(ctx, urls)
		if err != nil {
			return fmt.Errorf("bake chart exports: %w", err)
		}
		for _, p := range written {
			b.Stage(p, "")
		}

		exports, err := b.deps.Charts.ExportsByURL(ctx)
		if err != nil {
			return fmt.Errorf("load chart exports: %w", err)
		}
		b.mu.Lock()
		b.exports = exports
		b.result.Charts = len(exports)
		b.mu.Unlock()
		b.logger.Info("chart exports ready", zap.Int("urls", len(urls)), zap.Int("exports", len(exports)))
		return nil
	})
}

// BakePost renders a single post or page to <slug>.html.
func (b *Baker) BakePost(ctx context.Context, post site.FullPost) error {
	entries, err := b.entriesByCategory(ctx)
	if err != nil {
		return err
	}
	formatted, err := formatting.FormatPost(post, b.chartExports())
	if err != nil {
		return err
	}

	var html string
	if post.Type == site.PostTypePost {
		html, err = b.deps.Views.BlogPostPage(entries, formatted)
	} else {
		html, err = b.deps.Views.ArticlePage(entries, formatted)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", post.Slug, err)
	}
	return b.StageWrite(ctx, post.Slug+".html", html)
}

// BakeSlug bakes the single published post or page with the given slug.
// Chart exports come from the last written manifest.
func (b *Baker) BakeSlug(ctx context.Context, slug string) error {
	return b.runStage(ctx, StagePost, func(ctx context.Context) error {
		post, err := b.deps.Content.PostBySlug(ctx, slug)
		if err != nil {
			return fmt.Errorf("load post %q: %w", slug, err)
		}
		if b.chartExports() == nil && b.deps.Charts != nil {
			exports, err := b.deps.Charts.ExportsByURL(ctx)
			if err != nil {
				return fmt.Errorf("load chart exports: %w", err)
			}
			b.mu.Lock()
			b.exports = exports
			b.mu.Unlock()
		}
		full, err := b.deps.Content.FullPost(ctx, post)
		if err != nil {
			return fmt.Errorf("load full post %q: %w", slug, err)
		}
		return b.BakePost(ctx, full)
	})
}

// BakePosts bakes every published post and page in parallel, then deletes
// previously baked pages that no longer exist in the database.
func (b *Baker) BakePosts(ctx context.Context) error {
	return b.runStage(ctx, StagePosts, func(ctx context.Context) error {
		posts, err := b.deps.Content.PublishedPosts(ctx)
		if err != nil {
			return fmt.Errorf("load published posts: %w", err)
		}

		current := make(map[string]struct{}, len(posts))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.opts.Concurrency)
		for _, post := range posts {
			if post.Slug == blogSlug {
				continue
			}
			current[post.Slug] = struct{}{}
			g.Go(func() error {
				full, err := b.deps.Content.FullPost(gctx, post)
				if err != nil {
					return fmt.Errorf("load full post %q: %w", post.Slug, err)
				}
				return b.BakePost(gctx, full)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		return b.removeStale(ctx, current)
	})
}

func (b *Baker) removeStale(ctx context.Context, current map[string]struct{}) error {
	existing, err := b.deps.Output.List(ctx, ".html")
	if err != nil {
		return fmt.Errorf("list baked pages: %w", err)
	}
	for _, p := range existing {
		slug := strings.TrimSuffix(p, ".html")
		if _, ok := current[slug]; ok || b.preserved(slug) {
			continue
		}
		if err := b.deps.Output.DeleteObject(ctx, p); err != nil && !errors.Is(err, site.ErrNotFound) {
			return fmt.Errorf("delete %s: %w", p, err)
		}
		b.mu.Lock()
		b.result.Deleted++
		b.mu.Unlock()
		metrics.ObserveFile(fileKind(p), metrics.FileDeleted)
		b.Stage(p, "DELETING "+p)
	}
	return nil
}

func (b *Baker) preserved(slug string) bool {
	for _, p := range b.opts.PreserveHTML {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(slug, prefix) {
				return true
			}
			continue
		}
		if slug == p {
			return true
		}
	}
	return false
}

// BakeFrontPage renders index.html.
func (b *Baker) BakeFrontPage(ctx context.Context) error {
	return b.runStage(ctx, StageFrontPage, func(ctx context.Context) error {
		entries, err := b.entriesByCategory(ctx)
		if err != nil {
			return err
		}
		posts, err := b.deps.Content.LatestPosts(ctx, b.opts.FrontPagePosts)
		if err != nil {
			return fmt.Errorf("load latest posts: %w", err)
		}
		html, err := b.deps.Views.FrontPage(entries, posts)
		if err != nil {
			return err
		}
		return b.StageWrite(ctx, FrontPageFile, html)
	})
}

// BakeBlog renders the paginated blog index: page 1 at blog.html, page N at
// blog/page/N.html.
func (b *Baker) BakeBlog(ctx context.Context) error {
	return b.runStage(ctx, StageBlog, func(ctx context.Context) error {
		entries, err := b.entriesByCategory(ctx)
		if err != nil {
			return err
		}
		index, err := b.deps.Content.BlogIndex(ctx)
		if err != nil {
			return fmt.Errorf("load blog index: %w", err)
		}

		perPage := b.opts.BlogPostsPerPage
		numPages := (len(index) + perPage - 1) / perPage
		for page := 1; page <= numPages; page++ {
			start := (page - 1) * perPage
			end := min(start+perPage, len(index))
			html, err := b.deps.Views.BlogPage(entries, index[start:end], page, numPages)
			if err != nil {
				return err
			}
			if err := b.StageWrite(ctx, strings.TrimPrefix(views.BlogPagePath(page), "/")+".html", html); err != nil {
				return err
			}
		}
		return nil
	})
}

// BakeAssets mirrors the static WordPress assets into the output. Failures
// of individual paths are logged by the syncer and do not fail the bake.
func (b *Baker) BakeAssets(ctx context.Context) error {
	return b.runStage(ctx, StageAssets, func(ctx context.Context) error {
		if b.deps.Assets == nil {
			b.logger.Debug("asset syncer not configured")
			return nil
		}
		_, err := b.deps.Assets.Sync(ctx)
		return err
	})
}
