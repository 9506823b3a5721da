package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taskmaster/gtd/internal/infrastructure/logger"
)

type metaRebuilder interface {
	RebuildSubtasksMeta(ctx context.Context) (int, error)
}

// MaintenanceScheduler runs background upkeep on a cron schedule.
type MaintenanceScheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	timeout time.Duration
}

func NewMaintenanceScheduler(log *logger.Logger) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  log.WithComponent("scheduler"),
		timeout: 10 * time.Minute,
	}
}

// ScheduleMetaRebuild registers a subtasks_meta rebuild on the given
// five-field cron spec.
func (s *MaintenanceScheduler) ScheduleMetaRebuild(spec string, tasks metaRebuilder) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		n, err := tasks.RebuildSubtasksMeta(ctx)
		if err != nil {
			s.logger.Errorw("Scheduled subtasks meta rebuild failed", "error", err, "rebuilt", n)
			return
		}
		s.logger.Infow("Scheduled subtasks meta rebuild finished", "rebuilt", n, "duration", time.Since(start))
	})
	if err != nil {
		return 0, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return id, nil
}

func (s *MaintenanceScheduler) Start() {
	s.cron.Start()
}

func (s *MaintenanceScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
