// Package assets mirrors static files from the WordPress checkout into the baked site.
package assets

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/logging"
	"github.com/JakeFAU/sitebaker/internal/shell"
	"github.com/JakeFAU/sitebaker/internal/site"
)

// Path is one source/destination pair. Source may be a glob relative to the
// WordPress directory; Dest is relative to the baked directory.
type Path struct {
	Source string
	Dest   string
}

// Config controls the rsync invocation.
type Config struct {
	WordpressDir string
	BakedDir     string
	RsyncBin     string
	RsyncArgs    []string
	Paths        []Path
}

// Result counts what a Sync run did.
type Result struct {
	Synced  int
	Skipped int
	Failed  int
}

// Syncer copies asset paths with rsync.
type Syncer struct {
	cfg    Config
	runner site.Runner
	logger *zap.Logger
}

// New constructs a Syncer.
func New(cfg Config, runner site.Runner, logger *zap.Logger) (*Syncer, error) {
	if runner == nil {
		return nil, errors.New("assets: runner is required")
	}
	if strings.TrimSpace(cfg.BakedDir) == "" {
		return nil, errors.New("assets: baked directory is required")
	}
	if cfg.RsyncBin == "" {
		cfg.RsyncBin = "rsync"
	}
	if cfg.RsyncArgs == nil {
		cfg.RsyncArgs = []string{"-havz", "--delete"}
	}
	return &Syncer{cfg: cfg, runner: runner, logger: logging.OrNop(logger).Named("assets")}, nil
}

// Sync runs rsync for every configured path. Failures are logged and the
// remaining paths still run; only context cancellation is returned.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	var res Result
	for _, p := range s.cfg.Paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		sources, err := s.expand(p.Source)
		if err != nil {
			s.logger.Warn("invalid asset pattern", zap.String("source", p.Source), zap.Error(err))
			res.Failed++
			continue
		}
		if len(sources) == 0 {
			s.logger.Warn("asset path matched nothing", zap.String("source", p.Source))
			res.Skipped++
			continue
		}

		dest := s.destination(p.Dest)
		args := make([]string, 0, len(s.cfg.RsyncArgs)+len(sources)+1)
		args = append(args, s.cfg.RsyncArgs...)
		args = append(args, sources...)
		args = append(args, dest)

		if _, err := s.runner.Run(ctx, "", s.cfg.RsyncBin, args...); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.logger.Warn("asset sync failed",
				zap.String("command", shell.CommandLine(s.cfg.RsyncBin, args...)),
				zap.Error(err),
			)
			res.Failed++
			continue
		}
		res.Synced++
	}
	s.logger.Info("assets synced",
		zap.Int("synced", res.Synced),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// expand resolves a source against the WordPress directory. Literal paths
// are passed through unchanged so rsync keeps its trailing-slash semantics.
func (s *Syncer) expand(source string) ([]string, error) {
	full := source
	if !filepath.IsAbs(source) && s.cfg.WordpressDir != "" {
		full = filepath.Join(s.cfg.WordpressDir, source)
		if strings.HasSuffix(source, "/") {
			full += "/"
		}
	}
	if !strings.ContainsAny(source, "*?[") {
		return []string{full}, nil
	}
	return filepath.Glob(full)
}

func (s *Syncer) destination(dest string) string {
	if dest == "" || dest == "." {
		return s.cfg.BakedDir + "/"
	}
	if filepath.IsAbs(dest) {
		return dest
	}
	return filepath.Join(s.cfg.BakedDir, dest)
}
