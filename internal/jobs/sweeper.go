package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"signaling/internal/managers"
)

// RoomSweeper periodically removes rooms that only ever saw observer
// subscriptions. Rooms emptied by a leave are collected immediately by the
// registry, so the sweeper is the backstop for the subscribe-only path.
type RoomSweeper struct {
	reg      *managers.Registry
	log      *zap.Logger
	schedule string
	maxIdle  time.Duration
	cron     *cron.Cron
}

func NewRoomSweeper(reg *managers.Registry, log *zap.Logger, schedule string, maxIdle time.Duration) *RoomSweeper {
	return &RoomSweeper{
		reg:      reg,
		log:      log,
		schedule: schedule,
		maxIdle:  maxIdle,
		cron:     cron.New(),
	}
}

// Start schedules the sweep.
func (s *RoomSweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.RunOnce)
	if err != nil {
		return fmt.Errorf("failed to schedule room sweep: %w", err)
	}
	s.cron.Start()
	s.log.Info("room sweeper started",
		zap.String("schedule", s.schedule), zap.Duration("maxIdle", s.maxIdle))
	return nil
}

// Stop cancels the schedule.
func (s *RoomSweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunOnce performs a single sweep.
func (s *RoomSweeper) RunOnce() {
	if removed := s.reg.Sweep(s.maxIdle); removed > 0 {
		s.log.Info("swept abandoned rooms", zap.Int("removed", removed))
	}
}
