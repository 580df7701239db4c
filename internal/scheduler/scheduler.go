// Package scheduler drives recurring accrual ticks on a cron schedule.
package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/hashvault/mining-server/internal/service"
	"github.com/hashvault/mining-server/internal/utils"
)

// Scheduler runs the profit accrual sweep on a fixed schedule. A tick
// that is still running when the next one fires causes the new one to be
// skipped, so two sweeps never overlap.
type Scheduler struct {
	svc     service.Service
	log     *utils.Logger
	cron    *cron.Cron
	running atomic.Bool
}

// New creates a Scheduler that fires per spec (cron syntax, e.g.
// "@hourly" or "0 * * * *").
func New(svc service.Service, log *utils.Logger, spec string) (*Scheduler, error) {
	s := &Scheduler{
		svc:  svc,
		log:  log,
		cron: cron.New(),
	}
	if _, err := s.cron.AddFunc(spec, func() {
		s.RunTick(context.Background())
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins firing ticks in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("accrual scheduler started")
}

// Stop stops the schedule and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("accrual scheduler stopped")
}

// RunTick executes one accrual sweep unless one is already in flight, in
// which case it reports false and does nothing.
func (s *Scheduler) RunTick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("accrual tick skipped: previous tick still running")
		return false
	}
	defer s.running.Store(false)

	if _, err := s.svc.RunAccrualTick(ctx); err != nil {
		s.log.Error("accrual tick failed: %v", err)
	}
	return true
}
