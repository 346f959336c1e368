// Package deploy commits the baked site with git and pushes it to the remote
// the static host serves from.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/logging"
	"github.com/JakeFAU/sitebaker/internal/site"
)

// ErrNothingToCommit reports that the baked tree had no changes to commit.
var ErrNothingToCommit = errors.New("nothing to commit")

// Config mirrors the deploy section of the configuration.
type Config struct {
	GitBin      string
	Remote      string
	Branch      string
	ChunkSize   int
	AuthorName  string
	AuthorEmail string
}

// Commit describes a single deploy commit. Empty author fields fall back to
// the configured author.
type Commit struct {
	Message     string
	AuthorName  string
	AuthorEmail string
}

// DefaultMessage is used when a commit has no message.
const DefaultMessage = "Updating site"

// Git runs git in the baked directory.
type Git struct {
	cfg    Config
	dir    string
	runner site.Runner
	logger *zap.Logger
}

// New builds a Git deployer for the repository at dir.
func New(dir string, cfg Config, runner site.Runner, logger *zap.Logger) (*Git, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("deploy: baked directory is required")
	}
	if runner == nil {
		return nil, errors.New("deploy: runner is required")
	}
	if cfg.GitBin == "" {
		cfg.GitBin = "git"
	}
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.Branch == "" {
		cfg.Branch = "master"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	return &Git{cfg: cfg, dir: dir, runner: runner, logger: logging.OrNop(logger).Named("deploy")}, nil
}

// Deploy stages the given paths (relative to the baked directory) in chunks,
// stages everything else, commits, and pushes. When the tree is clean it
// returns ErrNothingToCommit without pushing.
//
// Chunk adds are best-effort: a deleted file that was never tracked fails
// its pathspec, and the final "add -A ." picks up everything else anyway.
func (g *Git) Deploy(ctx context.Context, staged []string, commit Commit) error {
	for start := 0; start < len(staged); start += g.cfg.ChunkSize {
		end := min(start+g.cfg.ChunkSize, len(staged))
		args := append([]string{"add", "-A", "--"}, staged[start:end]...)
		if out, err := g.git(ctx, args...); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			g.logger.Warn("staging chunk failed, relying on add -A .",
				zap.Int("files", end-start),
				zap.String("output", strings.TrimSpace(string(out))),
				zap.Error(err),
			)
		}
	}
	if _, err := g.git(ctx, "add", "-A", "."); err != nil {
		return err
	}

	out, err := g.git(ctx, g.commitArgs(commit)...)
	if err != nil {
		if strings.Contains(string(out), "nothing to commit") {
			g.logger.Info("baked site unchanged, skipping push")
			return ErrNothingToCommit
		}
		return err
	}

	if _, err := g.git(ctx, "push", g.cfg.Remote, g.cfg.Branch); err != nil {
		return err
	}
	g.logger.Info("deployed baked site",
		zap.Int("staged", len(staged)),
		zap.String("remote", g.cfg.Remote),
		zap.String("branch", g.cfg.Branch),
	)
	return nil
}

func (g *Git) commitArgs(commit Commit) []string {
	msg := strings.TrimSpace(commit.Message)
	if msg == "" {
		msg = DefaultMessage
	}
	name, email := commit.AuthorName, commit.AuthorEmail
	if name == "" || email == "" {
		name, email = g.cfg.AuthorName, g.cfg.AuthorEmail
	}
	args := []string{"commit"}
	if name != "" && email != "" {
		args = append(args, fmt.Sprintf("--author=%s <%s>", name, email))
	}
	return append(args, "-a", "-m", msg)
}

func (g *Git) git(ctx context.Context, args ...string) ([]byte, error) {
	out, err := g.runner.Run(ctx, g.dir, g.cfg.GitBin, args...)
	if err != nil {
		return out, fmt.Errorf("git %s: %w", args[0], err)
	}
	return out, nil
}
