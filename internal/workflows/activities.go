package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/usecases"
)

// Activity names as registered on the worker.
const (
	ActivityBeginRemoval    = "BeginRemoval"
	ActivityRunRemovalStep  = "RunRemovalStep"
	ActivityCompleteRemoval = "CompleteRemoval"
)

// Application error types that are not retried.
const (
	ErrTypeNotFound     = "NotFound"
	ErrTypeInvalidInput = "InvalidInput"
)

// RemovalActivities holds the activity implementations for the removal workflow.
type RemovalActivities struct {
	Removal *usecases.RemovalService
}

// BeginRemoval opens or resumes the progress log of an entrepreneur.
func (a *RemovalActivities) BeginRemoval(ctx context.Context, entrepreneurID string) (*usecases.RemovalState, error) {
	state, err := a.Removal.Begin(ctx, entrepreneurID)
	if err != nil {
		return nil, classify(err)
	}
	return state, nil
}

// RunRemovalStep executes one step and returns the number of documents deleted.
func (a *RemovalActivities) RunRemovalStep(ctx context.Context, entrepreneurID string, step usecases.RemovalStep) (int, error) {
	n, err := a.Removal.RunStep(ctx, entrepreneurID, step)
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

// CompleteRemoval marks the removal finished.
func (a *RemovalActivities) CompleteRemoval(ctx context.Context, entrepreneurID string) error {
	return classify(a.Removal.Complete(ctx, entrepreneurID))
}

// classify turns caller errors into non-retryable application errors so the
// workflow does not retry a request that can never succeed.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNotFound, err)
	case errors.Is(err, domain.ErrInvalidInput):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, err)
	}
	return err
}
