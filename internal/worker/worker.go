// Package worker runs queued bakes one at a time and records their outcome.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/deploy"
	"github.com/JakeFAU/sitebaker/internal/logging"
	"github.com/JakeFAU/sitebaker/internal/metrics"
	"github.com/JakeFAU/sitebaker/internal/site"
)

// DefaultTopic is the event published when a bake job finishes.
const DefaultTopic = "bake.job"

// Bake is one bake run as seen by the worker.
type Bake interface {
	BakeAll(ctx context.Context) error
	Deploy(ctx context.Context, commit deploy.Commit) error
	Result() site.BakeResult
	End()
}

// Factory builds a fresh Bake for a request.
type Factory func(ctx context.Context, req site.BakeRequest) (Bake, error)

// Config controls Worker behavior.
type Config struct {
	Topic      string
	JobTimeout time.Duration
}

// JobEvent is published after every job reaches a terminal state.
type JobEvent struct {
	JobID      string          `json:"job_id"`
	Status     site.JobStatus  `json:"status"`
	Error      string          `json:"error,omitempty"`
	Result     site.BakeResult `json:"result"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Worker consumes queue items and runs the bake pipeline.
type Worker struct {
	queue     site.Queue
	jobStore  site.JobStore
	publisher site.Publisher
	clock     site.Clock
	factory   Factory
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue site.Queue,
	jobStore site.JobStore,
	publisher site.Publisher,
	clock site.Clock,
	factory Factory,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return &Worker{
		queue:     queue,
		jobStore:  jobStore,
		publisher: publisher,
		clock:     clock,
		factory:   factory,
		cfg:       cfg,
		logger:    logging.OrNop(logger),
	}
}

// Run blocks, consuming queue items until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Info("queue drained, worker stopping", zap.Error(err))
			return
		}
		w.logger.Debug("dequeued bake", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item site.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if err := w.jobStore.UpdateJob(ctx, item.JobID, site.JobStatusRunning, "", site.BakeResult{}); err != nil {
		if errors.Is(err, site.ErrNotFound) {
			w.logger.Warn("skipping unknown job", zap.String("job_id", item.JobID))
			return
		}
		w.logger.Error("update job status failed", zap.String("job_id", item.JobID), zap.Error(err))
		w.finish(ctx, item.JobID, site.JobStatusFailed, fmt.Sprintf("mark job running: %v", err), site.BakeResult{})
		return
	}
	metrics.ObserveJob(string(site.JobStatusRunning))

	jobCtx := ctx
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}

	result, err := w.bake(jobCtx, item)
	status, errText := site.JobStatusSucceeded, ""
	if err != nil {
		status, errText = site.JobStatusFailed, err.Error()
		w.logger.Error("bake failed", zap.String("job_id", item.JobID), zap.Error(err))
	} else {
		w.logger.Info("bake finished",
			zap.String("job_id", item.JobID),
			zap.Int("staged", result.Staged),
			zap.Int("deleted", result.Deleted),
			zap.Bool("committed", result.Committed),
		)
	}

	w.finish(ctx, item.JobID, status, errText, result)
}

// finish records the terminal status and publishes the job event. The
// record must be written even when the bake ran out of time.
func (w *Worker) finish(ctx context.Context, jobID string, status site.JobStatus, errText string, result site.BakeResult) {
	finalCtx := context.WithoutCancel(ctx)
	if err := w.jobStore.UpdateJob(finalCtx, jobID, status, errText, result); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", jobID), zap.Error(err))
	}
	metrics.ObserveJob(string(status))
	w.publish(finalCtx, jobID, status, errText, result)
}

func (w *Worker) bake(ctx context.Context, item site.QueueItem) (site.BakeResult, error) {
	if w.factory == nil {
		return site.BakeResult{}, errors.New("no bake factory configured")
	}
	b, err := w.factory(ctx, item.Request)
	if err != nil {
		return site.BakeResult{}, fmt.Errorf("build baker: %w", err)
	}
	defer b.End()

	if err := b.BakeAll(ctx); err != nil {
		return b.Result(), err
	}
	if item.Request.Deploy {
		commit := deploy.Commit{
			Message:     item.Request.Message,
			AuthorName:  item.Request.AuthorName,
			AuthorEmail: item.Request.AuthorEmail,
		}
		if err := b.Deploy(ctx, commit); err != nil {
			return b.Result(), err
		}
	}
	return b.Result(), nil
}

func (w *Worker) publish(ctx context.Context, jobID string, status site.JobStatus, errText string, result site.BakeResult) {
	if w.publisher == nil {
		return
	}
	event := JobEvent{JobID: jobID, Status: status, Error: errText, Result: result}
	if w.clock != nil {
		event.FinishedAt = w.clock.Now()
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, event); err != nil {
		w.logger.Warn("publish job event failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
