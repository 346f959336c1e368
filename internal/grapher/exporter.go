// Package grapher bakes static exports of the interactive charts embedded in
// site content so pages can show them without loading the chart service.
package grapher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png" // registers the PNG decoder for screenshot dimensions
	"maps"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitebaker/internal/logging"
	"github.com/JakeFAU/sitebaker/internal/metrics"
	"github.com/JakeFAU/sitebaker/internal/site"
)

// ManifestName is the file, under the exports prefix, recording the URL to export map.
const ManifestName = "manifest.json"

const versionLength = 12

// Content types of the exports.
const (
	ContentTypeSVG = "image/svg+xml"
	ContentTypePNG = "image/png"
)

// Waiter throttles outbound requests per host.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config tunes the exporter.
type Config struct {
	ExportsPrefix string
	Concurrency   int
	Selector      string
}

// Deps are the collaborators of an Exporter. Headless and Limiter are optional.
type Deps struct {
	Fetcher  site.Fetcher
	Headless site.Fetcher
	Limiter  Waiter
	Store    site.OutputStore
	Hasher   site.Hasher
	Logger   *zap.Logger
}

// Exporter downloads chart exports and writes them to the output store.
type Exporter struct {
	cfg      Config
	fetcher  site.Fetcher
	headless site.Fetcher
	limiter  Waiter
	store    site.OutputStore
	hasher   site.Hasher
	logger   *zap.Logger

	mu      sync.Mutex
	exports site.ChartExports
}

// New validates deps and builds an Exporter.
func New(cfg Config, deps Deps) (*Exporter, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("grapher: fetcher is required")
	}
	if deps.Store == nil {
		return nil, errors.New("grapher: store is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("grapher: hasher is required")
	}
	if cfg.ExportsPrefix == "" {
		cfg.ExportsPrefix = "grapher/exports"
	}
	cfg.ExportsPrefix = strings.Trim(cfg.ExportsPrefix, "/")
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Exporter{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		headless: deps.Headless,
		limiter:  deps.Limiter,
		store:    deps.Store,
		hasher:   deps.Hasher,
		logger:   logging.OrNop(deps.Logger).Named("grapher"),
	}, nil
}

// BakeChartURLs exports every unique chart URL and writes the manifest. It
// returns the store paths written during this call. Individual chart failures
// are logged and skipped, keeping the previous export when the manifest has one.
func (e *Exporter) BakeChartURLs(ctx context.Context, urls []string) ([]string, error) {
	previous, err := e.readManifest(ctx)
	if err != nil {
		e.logger.Warn("ignoring unreadable chart manifest", zap.Error(err))
	}

	var (
		mu      sync.Mutex
		written []string
		exports = make(site.ChartExports)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, chartURL := range uniq(urls) {
		g.Go(func() error {
			export, p, err := e.bakeChart(gctx, chartURL)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				metrics.ObserveChartExport("failed")
				e.logger.Warn("chart export failed", zap.String("url", chartURL), zap.Error(err))
				if old, ok := previous.Lookup(chartURL); ok {
					mu.Lock()
					exports[chartURL] = old
					mu.Unlock()
				}
				return nil
			}
			mu.Lock()
			exports[chartURL] = export
			if p != "" {
				written = append(written, p)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("bake chart exports: %w", err)
	}

	manifestPath, err := e.writeManifest(ctx, exports)
	if err != nil {
		return nil, err
	}
	if manifestPath != "" {
		written = append(written, manifestPath)
	}

	e.mu.Lock()
	e.exports = exports
	e.mu.Unlock()

	slices.Sort(written)
	e.logger.Info("baked chart exports", zap.Int("charts", len(exports)), zap.Int("written", len(written)))
	return written, nil
}

// ExportsByURL returns the exports of the last BakeChartURLs call, or those
// recorded in the manifest when nothing was baked in this process.
func (e *Exporter) ExportsByURL(ctx context.Context) (site.ChartExports, error) {
	e.mu.Lock()
	current := e.exports
	e.mu.Unlock()
	if current != nil {
		return maps.Clone(current), nil
	}
	exports, err := e.readManifest(ctx)
	if err != nil {
		return nil, err
	}
	if exports == nil {
		exports = make(site.ChartExports)
	}
	return exports, nil
}

// bakeChart returns the export of chartURL and the path written, which is
// empty when an identical export already existed.
func (e *Exporter) bakeChart(ctx context.Context, chartURL string) (site.ChartExport, string, error) {
	slug, svgURL, err := exportSource(chartURL)
	if err != nil {
		return site.ChartExport{}, "", err
	}

	if err := e.wait(ctx, svgURL); err != nil {
		return site.ChartExport{}, "", err
	}
	resp, fetchErr := e.fetcher.Fetch(ctx, site.FetchRequest{URL: svgURL})
	if fetchErr == nil {
		width, height, err := svgSize(resp.Body)
		if err == nil {
			export, written, err := e.save(ctx, chartURL, slug, "svg", ContentTypeSVG, resp.Body, width, height)
			if err == nil {
				metrics.ObserveChartExport("svg")
			}
			return export, written, err
		}
		fetchErr = err
	}
	if e.headless == nil {
		return site.ChartExport{}, "", fmt.Errorf("fetch %s: %w", svgURL, fetchErr)
	}

	e.logger.Debug("falling back to headless capture", zap.String("url", chartURL), zap.Error(fetchErr))
	if err := e.wait(ctx, chartURL); err != nil {
		return site.ChartExport{}, "", err
	}
	shot, err := e.headless.Fetch(ctx, site.FetchRequest{URL: chartURL, Selector: e.cfg.Selector})
	if err != nil {
		return site.ChartExport{}, "", fmt.Errorf("capture %s: %w (svg: %v)", chartURL, err, fetchErr)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(shot.Body))
	if err != nil {
		return site.ChartExport{}, "", fmt.Errorf("decode capture of %s: %w", chartURL, err)
	}
	export, written, err := e.save(ctx, chartURL, slug, "png", ContentTypePNG, shot.Body, cfg.Width, cfg.Height)
	if err == nil {
		metrics.ObserveChartExport("png")
	}
	return export, written, err
}

func (e *Exporter) save(
	ctx context.Context,
	chartURL, slug, ext, contentType string,
	body []byte,
	width, height int,
) (site.ChartExport, string, error) {
	digest, err := e.hasher.Hash(body)
	if err != nil {
		return site.ChartExport{}, "", fmt.Errorf("hash export of %s: %w", chartURL, err)
	}
	version := digest
	if len(version) > versionLength {
		version = version[:versionLength]
	}
	export := site.ChartExport{
		URL:         chartURL,
		Slug:        slug,
		Path:        path.Join(e.cfg.ExportsPrefix, fmt.Sprintf("%s.%s.%s", slug, version, ext)),
		Width:       width,
		Height:      height,
		Version:     version,
		ContentType: contentType,
	}
	// The version is a content hash, so an existing file is already correct.
	if _, err := e.store.GetObject(ctx, export.Path); err == nil {
		return export, "", nil
	}
	if _, err := e.store.PutObject(ctx, export.Path, contentType, bytes.NewReader(body)); err != nil {
		return site.ChartExport{}, "", fmt.Errorf("write export of %s: %w", chartURL, err)
	}
	return export, export.Path, nil
}

func (e *Exporter) wait(ctx context.Context, rawURL string) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx, rawURL)
}

func (e *Exporter) manifestPath() string {
	return path.Join(e.cfg.ExportsPrefix, ManifestName)
}

func (e *Exporter) readManifest(ctx context.Context) (site.ChartExports, error) {
	data, err := e.store.GetObject(ctx, e.manifestPath())
	if err != nil {
		if errors.Is(err, site.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read chart manifest: %w", err)
	}
	var exports site.ChartExports
	if err := json.Unmarshal(data, &exports); err != nil {
		return nil, fmt.Errorf("decode chart manifest: %w", err)
	}
	return exports, nil
}

// writeManifest stores the manifest and returns its path, or "" when unchanged.
func (e *Exporter) writeManifest(ctx context.Context, exports site.ChartExports) (string, error) {
	data, err := json.MarshalIndent(exports, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode chart manifest: %w", err)
	}
	data = append(data, '\n')
	if existing, err := e.store.GetObject(ctx, e.manifestPath()); err == nil && bytes.Equal(existing, data) {
		return "", nil
	}
	if _, err := e.store.PutObject(ctx, e.manifestPath(), "application/json", bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write chart manifest: %w", err)
	}
	return e.manifestPath(), nil
}

// exportSource derives the export slug and the static SVG URL of a chart URL.
func exportSource(chartURL string) (string, string, error) {
	u, err := url.Parse(chartURL)
	if err != nil {
		return "", "", fmt.Errorf("parse chart url: %w", err)
	}
	// Protocol-relative embeds (//host/grapher/x) are fetched over https.
	if u.Scheme == "" && u.Host != "" {
		u.Scheme = "https"
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("chart url %q is not absolute", chartURL)
	}
	clean := strings.TrimSuffix(u.Path, "/")
	slug := path.Base(clean)
	if slug == "" || slug == "." || slug == "/" || slug == "grapher" {
		return "", "", fmt.Errorf("chart url %q has no chart slug", chartURL)
	}
	svg := *u
	svg.Path = clean + ".svg"
	svg.RawPath = ""
	svg.Fragment = ""
	svg.RawFragment = ""
	return slug, svg.String(), nil
}

func uniq(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
