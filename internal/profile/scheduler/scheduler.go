// Package scheduler periodically re-synchronizes every known profile.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"showcase/internal/platform/logger"
	"showcase/internal/profile/models"
	"showcase/internal/profile/orchestrator"
	id "showcase/pkg/domain"
)

// Service is the part of the profile service the scheduler drives.
type Service interface {
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	Synchronize(ctx context.Context, subjectID id.SubjectID) (orchestrator.Result, error)
}

// Scheduler runs a sweep every interval. A zero interval disables it.
type Scheduler struct {
	service     Service
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
}

type Option func(*Scheduler)

// WithConcurrency bounds how many subjects sync at once during a sweep.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

func New(service Service, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		service:     service,
		interval:    interval,
		concurrency: 4,
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether Run does anything.
func (s *Scheduler) Enabled() bool {
	return s.interval > 0
}

// Run sweeps every interval until ctx ends. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Info("scheduled sync disabled")
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "scheduled sweep failed", "error", err)
			}
		}
	}
}

// Sweep synchronizes every profile once. Individual sync failures are logged
// and do not stop the sweep; only failing to list profiles is returned.
func (s *Scheduler) Sweep(ctx context.Context) error {
	profiles, err := s.service.ListProfiles(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range profiles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := s.service.Synchronize(gctx, p.SubjectID)
			if err != nil {
				s.logger.WarnContext(gctx, "scheduled sync failed", "subject_id", p.SubjectID, "error", err)
				return nil
			}
			s.logger.DebugContext(gctx, "scheduled sync finished",
				"subject_id", p.SubjectID, "run_id", res.RunID, "joined", res.Joined)
			return nil
		})
	}
	err = g.Wait()
	s.logger.InfoContext(ctx, "scheduled sweep finished",
		"profiles", len(profiles), "duration", time.Since(start))
	return err
}
