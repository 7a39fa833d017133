package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"dataforge/internal/domain"
)

// Scheduler manages cron-based workflow execution. Scheduled triggers run
// as the workflow's creator.
type Scheduler struct {
	cron      *cron.Cron
	svc       *Service
	workflows domain.WorkflowRepository
	users     domain.UserRepository
	logger    *slog.Logger
	mu        sync.Mutex
	entries   map[string]cron.EntryID // workflow ID → cron entry
}

// NewScheduler creates a workflow scheduler.
func NewScheduler(svc *Service, workflows domain.WorkflowRepository, users domain.UserRepository, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		svc:       svc,
		workflows: workflows,
		users:     users,
		logger:    logger,
		entries:   make(map[string]cron.EntryID),
	}
}

// Start loads all scheduled workflows and starts the cron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadSchedules(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("workflow scheduler started")
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("workflow scheduler stopped")
}

// Reload clears all cron entries and reloads from the database.
// Implements the ScheduleReloader interface.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entryID := range s.entries {
		s.cron.Remove(entryID)
	}
	s.entries = make(map[string]cron.EntryID)

	return s.loadSchedules(ctx)
}

// Entries reports the number of active cron entries.
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// loadSchedules queries for unpaused scheduled workflows and adds them to cron.
func (s *Scheduler) loadSchedules(ctx context.Context) error {
	workflows, err := s.workflows.ListScheduled(ctx)
	if err != nil {
		return err
	}

	for _, w := range workflows {
		if w.ScheduleCron == nil {
			continue
		}
		schedule := *w.ScheduleCron
		workflowName := w.Name
		createdBy := w.CreatedBy

		entryID, err := s.cron.AddFunc(schedule, func() {
			ctx := context.Background()
			owner, err := s.users.GetByID(ctx, createdBy)
			if err != nil {
				s.logger.Warn("scheduled trigger skipped, owner not found",
					"workflow", workflowName,
					"user_id", createdBy,
					"error", err,
				)
				return
			}
			if _, err := s.svc.Trigger(ctx, owner, workflowName, domain.TriggerTypeScheduled); err != nil {
				s.logger.Warn("scheduled trigger failed",
					"workflow", workflowName,
					"error", err,
				)
			}
		})
		if err != nil {
			s.logger.Warn("invalid cron schedule",
				"workflow", workflowName,
				"schedule", schedule,
				"error", err,
			)
			continue
		}

		s.entries[w.ID] = entryID
		s.logger.Info("scheduled workflow", "workflow", workflowName, "schedule", schedule)
	}

	return nil
}

// Compile-time check that Scheduler implements ScheduleReloader.
var _ ScheduleReloader = (*Scheduler)(nil)
