// Package scheduler runs stored workflows on their cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// Runner executes a loaded workflow.
type Runner interface {
	Run(ctx context.Context, workflow *models.Workflow, inputs map[string]any, trigger string) (*models.ExecutionResult, error)
}

type entry struct {
	id       cron.EntryID
	schedule string
}

// Scheduler keeps one cron entry per scheduled workflow.
type Scheduler struct {
	cron        *cron.Cron
	runner      Runner
	persistence persistence.Persistence
	logger      *slog.Logger
	trigger     string

	mu      sync.Mutex
	entries map[string]entry
}

func New(logger *slog.Logger, persistence persistence.Persistence, runner Runner, trigger string) *Scheduler {
	logger = logger.With("module", "scheduler")
	cronLogger := slogAdapter{logger: logger}

	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		), cron.WithLogger(cronLogger)),
		runner:      runner,
		persistence: persistence,
		logger:      logger,
		trigger:     trigger,
		entries:     make(map[string]entry),
	}
}

// Sync aligns cron entries with the stored workflows: new schedules are
// added, changed ones replaced and removed ones dropped.
func (s *Scheduler) Sync(ctx context.Context) error {
	workflows, err := s.persistence.Workflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(workflows))

	for _, workflow := range workflows {
		if workflow.Schedule == "" {
			continue
		}

		seen[workflow.ID] = true

		current, exists := s.entries[workflow.ID]
		if exists && current.schedule == workflow.Schedule {
			continue
		}

		if exists {
			s.cron.Remove(current.id)
		}

		workflowID := workflow.ID

		id, err := s.cron.AddFunc(workflow.Schedule, func() { s.fire(workflowID) })
		if err != nil {
			delete(s.entries, workflow.ID)
			s.logger.ErrorContext(ctx, "Invalid workflow schedule", "workflow_id", workflow.ID, "schedule", workflow.Schedule, "error", err)

			continue
		}

		s.entries[workflow.ID] = entry{id: id, schedule: workflow.Schedule}
		s.logger.InfoContext(ctx, "Scheduled workflow", "workflow_id", workflow.ID, "schedule", workflow.Schedule)
	}

	for workflowID, current := range s.entries {
		if !seen[workflowID] {
			s.cron.Remove(current.id)
			delete(s.entries, workflowID)
			s.logger.InfoContext(ctx, "Unscheduled workflow", "workflow_id", workflowID)
		}
	}

	return nil
}

// Scheduled returns the number of workflows with a cron entry.
func (s *Scheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Next returns the next activation of a workflow, or the zero time when it is not scheduled.
func (s *Scheduler) Next(workflowID string) time.Time {
	s.mu.Lock()
	current, exists := s.entries[workflowID]
	s.mu.Unlock()

	if !exists {
		return time.Time{}
	}

	return s.cron.Entry(current.id).Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts activations and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Run syncs every interval until ctx is done, then stops and waits for running jobs.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if err := s.Sync(ctx); err != nil {
		return err
	}

	s.Start()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-s.Stop().Done()

			return nil
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Failed to sync schedules", "error", err)
			}
		}
	}
}

// fire reloads the workflow so edits since the last sync apply.
func (s *Scheduler) fire(workflowID string) {
	ctx := context.Background()
	logger := s.logger.With("workflow_id", workflowID)

	workflow, err := s.persistence.WorkflowByID(ctx, workflowID)
	if persistence.IsWorkflowNotFound(err) {
		logger.WarnContext(ctx, "Scheduled workflow no longer exists")

		return
	}

	if err != nil {
		logger.ErrorContext(ctx, "Failed to load scheduled workflow", "error", err)

		return
	}

	inputs := map[string]any{"scheduledAt": time.Now().UTC().Format(time.RFC3339)}

	result, err := s.runner.Run(ctx, workflow, inputs, s.trigger)
	if err != nil {
		logger.ErrorContext(ctx, "Scheduled run did not succeed", "error", err)

		return
	}

	logger.InfoContext(ctx, "Scheduled run finished", "execution_id", result.ID, "duration_ms", result.Metadata.Duration)
}

// slogAdapter lets cron log through slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...any) {
	a.logger.Error(msg, append(keysAndValues, "error", err)...)
}
