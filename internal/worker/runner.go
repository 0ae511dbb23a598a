package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a named periodic task. Run should honor ctx cancellation and return
// an error for logging; errors never stop the schedule.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner drives a set of jobs on independent tickers.
type Runner struct {
	jobs []Job
	log  *slog.Logger
}

func NewRunner(log *slog.Logger, jobs ...Job) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{jobs: jobs, log: log}
}

// Start runs every job on its own ticker and blocks until ctx is canceled.
// Each job also fires once immediately on startup.
func (r *Runner) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range r.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			r.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	log := r.log.With("job", job.Name)
	log.Info("job started", "interval", job.Interval.String())

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	r.runOnce(ctx, job, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("job stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx, job, log)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job, log *slog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("job panicked", "panic", rec)
		}
	}()
	if err := job.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("job run failed", "err", err)
	}
}
