package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"coinchart/internal/ports"
)

// Refresher reloads history for the current selection.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshScheduler triggers periodic refreshes on a cron schedule.
type RefreshScheduler struct {
	cron     *cron.Cron
	target   Refresher
	logger   ports.Logger
	ctx      context.Context
	schedule string
}

// NewRefreshScheduler parses a standard 5-field spec or a descriptor such as "@every 5m".
func NewRefreshScheduler(ctx context.Context, schedule string, target Refresher, logger ports.Logger) (*RefreshScheduler, error) {
	if target == nil || logger == nil {
		return nil, fmt.Errorf("refresh target and logger are required")
	}
	s := &RefreshScheduler{
		cron:     cron.New(),
		target:   target,
		logger:   logger,
		ctx:      ctx,
		schedule: schedule,
	}
	if _, err := s.cron.AddFunc(schedule, s.refresh); err != nil {
		return nil, fmt.Errorf("%w: register refresh schedule %q: %w", ports.ErrConfigurationError, schedule, err)
	}
	return s, nil
}

func (s *RefreshScheduler) refresh() {
	if err := s.target.Refresh(s.ctx); err != nil {
		if errors.Is(err, ports.ErrControllerStopped) || errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn(s.ctx, "Scheduled refresh failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s.logger.Debug(s.ctx, "Scheduled refresh issued", map[string]interface{}{"schedule": s.schedule})
}

// Start starts the cron scheduler.
func (s *RefreshScheduler) Start() {
	s.cron.Start()
	s.logger.Info(s.ctx, "Refresh scheduler started", map[string]interface{}{"schedule": s.schedule})
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *RefreshScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info(context.Background(), "Refresh scheduler stopped")
}
