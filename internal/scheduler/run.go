package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/railzwaylabs/paycore/internal/observability"
	"go.uber.org/zap"
)

type jobRun struct {
	name      string
	startedAt time.Time
	processed atomic.Int64
	failed    atomic.Int64
}

func (r *jobRun) AddProcessed(n int) { r.processed.Add(int64(n)) }
func (r *jobRun) AddFailed(n int)    { r.failed.Add(int64(n)) }

func (s *Scheduler) startRun(ctx context.Context, name string) *jobRun {
	run := &jobRun{name: name, startedAt: s.clock.Now(ctx)}
	s.log.Debug("job started", zap.String("job", name))
	return run
}

func (s *Scheduler) finishRun(run *jobRun, err error) {
	fields := []zap.Field{
		zap.String("job", run.name),
		zap.Int64("processed", run.processed.Load()),
		zap.Int64("failed", run.failed.Load()),
		zap.Duration("elapsed", time.Since(run.startedAt)),
	}
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
		s.log.Error("job failed", append(fields, zap.Error(err))...)
	case run.failed.Load() > 0:
		outcome = "partial"
		s.log.Warn("job finished with failures", fields...)
	default:
		s.log.Info("job finished", fields...)
	}
	observability.SchedulerJobRuns.WithLabelValues(run.name, outcome).Inc()
}
