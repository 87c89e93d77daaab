package cron

import (
	"cmp"
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

const (
	defaultTick       = time.Minute
	defaultJobTimeout = 10 * time.Minute
)

type jobMetrics interface {
	ObserveDuration(job string, duration time.Duration)
	IncSuccess(job string)
	IncFailure(job string)
}

// ServiceParams configure the cron service. JobTimeout bounds a single job
// run and should stay below the lock TTL.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Locker     Locker
	Metrics    jobMetrics
	Tick       time.Duration
	JobTimeout time.Duration
}

// Service wakes up every tick and runs the jobs that are due. Each job runs
// under its own lock, so replicas never run the same job concurrently.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	locker     Locker
	metrics    jobMetrics
	tick       time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Locker == nil:
		return nil, errors.New("locker required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		locker:     params.Locker,
		metrics:    params.Metrics,
		tick:       cmp.Or(params.Tick, defaultTick),
		jobTimeout: cmp.Or(params.JobTimeout, defaultJobTimeout),
		now:        time.Now,
	}, nil
}

// Run blocks until ctx is canceled. Jobs due at startup run immediately.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		s.runDue(ctx)
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runDue(ctx context.Context) {
	now := s.now()
	for _, job := range s.registry.Due(now) {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
		s.registry.markRun(job.Name(), now)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	release, acquired, err := s.locker.Acquire(ctx, name)
	switch {
	case err != nil:
		s.logg.Error(jobCtx, "lock acquire failed", err)
		s.finish(name, 0, err)
		return
	case !acquired:
		s.logg.Info(jobCtx, "job held by another worker; skipping")
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(jobCtx, "failed to release job lock", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err = job.Run(runCtx)
	elapsed := time.Since(start)
	s.finish(name, elapsed, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Info(jobCtx, "job completed")
}

// finish records one attempt. A zero duration means the job never started.
func (s *Service) finish(job string, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	if elapsed > 0 {
		s.metrics.ObserveDuration(job, elapsed)
	}
	if err != nil {
		s.metrics.IncFailure(job)
		return
	}
	s.metrics.IncSuccess(job)
}
