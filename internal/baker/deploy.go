package baker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/deploy"
	"github.com/JakeFAU/sitebaker/internal/site"
)

// Event is the payload published once a bake has been deployed.
type Event struct {
	BakedURL   string          `json:"baked_url"`
	Staged     []string        `json:"staged"`
	Result     site.BakeResult `json:"result"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Deploy commits and pushes the staged files, copies them to the mirror
// bucket when one is configured, and publishes a completion event. A clean
// tree is not an error: nothing is mirrored and the event reports
// Committed=false.
func (b *Baker) Deploy(ctx context.Context, commit deploy.Commit) error {
	return b.runStage(ctx, StageDeploy, func(ctx context.Context) error {
		if b.deps.Deployer == nil {
			return errors.New("deployer not configured")
		}
		staged := b.Staged()

		err := b.deps.Deployer.Deploy(ctx, staged, commit)
		switch {
		case errors.Is(err, deploy.ErrNothingToCommit):
			b.logger.Info("nothing to deploy")
		case err != nil:
			return err
		default:
			b.mu.Lock()
			b.result.Committed = true
			b.mu.Unlock()
			if err := b.mirror(ctx, staged); err != nil {
				return err
			}
		}

		b.publish(ctx, staged)
		return nil
	})
}

func (b *Baker) mirror(ctx context.Context, staged []string) error {
	if b.deps.Mirror == nil {
		return nil
	}
	var copied, removed int
	for _, p := range staged {
		data, err := b.deps.Output.GetObject(ctx, p)
		switch {
		case errors.Is(err, site.ErrNotFound):
			if err := b.deps.Mirror.DeleteObject(ctx, p); err != nil {
				return fmt.Errorf("mirror delete %s: %w", p, err)
			}
			removed++
			continue
		case err != nil:
			return fmt.Errorf("read %s: %w", p, err)
		}
		if _, err := b.deps.Mirror.PutObject(ctx, p, contentType(p), bytes.NewReader(data)); err != nil {
			return fmt.Errorf("mirror %s: %w", p, err)
		}
		copied++
	}
	b.logger.Info("mirrored baked files", zap.Int("copied", copied), zap.Int("removed", removed))
	return nil
}

func (b *Baker) publish(ctx context.Context, staged []string) {
	if b.deps.Publisher == nil {
		return
	}
	event := Event{
		BakedURL:   b.opts.BakedURL,
		Staged:     staged,
		Result:     b.Result(),
		FinishedAt: b.deps.Clock.Now(),
	}
	id, err := b.deps.Publisher.Publish(ctx, b.opts.Topic, event)
	if err != nil {
		b.logger.Warn("publish bake event failed", zap.String("topic", b.opts.Topic), zap.Error(err))
		return
	}
	b.logger.Debug("published bake event", zap.String("topic", b.opts.Topic), zap.String("message_id", id))
}
