package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/usecases"
)

// WorkflowStarter is the part of client.Client the Starter needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Starter runs entrepreneur removals on a Temporal worker and waits for the
// outcome, so callers see the same result as the in-process RemovalService.
type Starter struct {
	client    WorkflowStarter
	taskQueue string
}

// NewStarter creates a Starter that schedules on taskQueue.
func NewStarter(c WorkflowStarter, taskQueue string) *Starter {
	return &Starter{client: c, taskQueue: taskQueue}
}

// RemoveEntrepreneur starts (or joins) the removal workflow of id and waits
// for it. A run that stopped on a failing step returns its result together
// with an error.
func (s *Starter) RemoveEntrepreneur(ctx context.Context, id string) (*usecases.RemovalResult, error) {
	if id == "" {
		return nil, fmt.Errorf("entrepreneur id: %w", domain.ErrInvalidInput)
	}

	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(id),
		TaskQueue: s.taskQueue,
	}, RemoveEntrepreneurWorkflow, RemovalInput{EntrepreneurID: id})
	if err != nil {
		return nil, fmt.Errorf("start removal of %s: %w", id, err)
	}

	var res usecases.RemovalResult
	if err := run.Get(ctx, &res); err != nil {
		return nil, fromWorkflowError(id, err)
	}
	if res.Status == usecases.SagaFailed {
		return &res, fmt.Errorf("removal of %s stopped at %s", id, failedStep(&res))
	}
	return &res, nil
}

// fromWorkflowError maps non-retryable application errors back to the
// domain errors they came from.
func fromWorkflowError(id string, err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case ErrTypeNotFound:
			return fmt.Errorf("remove %s: %s: %w", id, appErr.Error(), domain.ErrNotFound)
		case ErrTypeInvalidInput:
			return fmt.Errorf("remove %s: %s: %w", id, appErr.Error(), domain.ErrInvalidInput)
		}
	}
	return fmt.Errorf("removal workflow for %s: %w", id, err)
}

// Register adds the removal workflow and its activities to w.
func Register(w worker.Worker, acts *RemovalActivities) {
	w.RegisterWorkflow(RemoveEntrepreneurWorkflow)
	w.RegisterActivity(acts)
}
