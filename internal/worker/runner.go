// Package worker drains the Redis job queues: go-live email fan-out and recording archive.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/aura-webinar/spotlight/pkg/metrics"
	"github.com/aura-webinar/spotlight/pkg/queue"
	"github.com/aura-webinar/spotlight/pkg/telemetry"
)

// Processor executes one job.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// Jobs is the queue the runner drains.
type Jobs interface {
	Dequeue(ctx context.Context, timeout time.Duration, keys ...string) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Runner dispatches jobs to processors by type and retries failures until the job is
// moved to the dead-letter queue.
type Runner struct {
	jobs       Jobs
	processors map[queue.JobType]Processor
	queues     []string
	poll       time.Duration
	backoff    time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewRunner creates a runner over queues.
func NewRunner(jobs Jobs, queues []string, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Runner{
		jobs:       jobs,
		processors: map[queue.JobType]Processor{},
		queues:     queues,
		poll:       5 * time.Second,
		backoff:    queue.RetryBackoff,
		metrics:    m,
		logger:     logger,
	}
}

// Handle registers p for jobs of type typ.
func (r *Runner) Handle(typ queue.JobType, p Processor) {
	r.processors[typ] = p
}

// Run loops until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("worker loop started", zap.Strings("queues", r.queues))
	for {
		if ctx.Err() != nil {
			r.logger.Info("worker loop stopping")
			return
		}
		job, err := r.jobs.Dequeue(ctx, r.poll, r.queues...)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.logger.Warn("dequeue error", zap.Error(err))
			r.sleep(ctx, r.backoff)
			continue
		}
		if job == nil {
			continue
		}
		if err := r.RunOnce(ctx, job); err != nil {
			r.sleep(ctx, r.backoff)
		}
	}
}

// RunOnce processes job and re-enqueues it on failure. It returns the processing error.
func (r *Runner) RunOnce(ctx context.Context, job *queue.Job) error {
	ctx, span := telemetry.Tracer().Start(ctx, "worker.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.type", string(job.Type)),
		attribute.Int("job.attempt", job.Attempt),
	)

	err := r.process(ctx, job)
	if err == nil {
		r.metrics.OutboxJobs.WithLabelValues(job.Queue, "ok").Inc()
		r.logger.Debug("job done", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return nil
	}
	span.RecordError(err)
	r.metrics.OutboxJobs.WithLabelValues(job.Queue, "error").Inc()
	r.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt), zap.Error(err))
	if reErr := r.jobs.Retry(ctx, job); reErr != nil {
		r.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
	}
	return err
}

func (r *Runner) process(ctx context.Context, job *queue.Job) error {
	p, ok := r.processors[job.Type]
	if !ok {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	return p.Process(ctx, job)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
