package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/halalway/halalway/internal/core/usecases"
)

// RemovalInput is the input for the entrepreneur removal workflow.
type RemovalInput struct {
	EntrepreneurID string
}

// WorkflowID is the workflow ID used for one entrepreneur. Concurrent
// requests for the same entrepreneur join the same run.
func WorkflowID(entrepreneurID string) string {
	return "remove-entrepreneur-" + entrepreneurID
}

// RemoveEntrepreneurWorkflow deletes an entrepreneur's services, campaign
// subscriptions, promotions and user record in order. Each step is an
// activity retried up to three times; a step that still fails stops the run
// and the result reports it with status "failed". Completed steps are kept in
// the progress log, so a later run resumes after them.
func RemoveEntrepreneurWorkflow(ctx workflow.Context, input RemovalInput) (*usecases.RemovalResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting entrepreneur removal", "entrepreneurId", input.EntrepreneurID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeNotFound, ErrTypeInvalidInput},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var state usecases.RemovalState
	if err := workflow.ExecuteActivity(ctx, ActivityBeginRemoval, input.EntrepreneurID).Get(ctx, &state); err != nil {
		return nil, err
	}

	res := &usecases.RemovalResult{
		EntrepreneurID: input.EntrepreneurID,
		Status:         state.Status,
		Attempts:       state.Attempts,
	}
	if state.Status == usecases.SagaCompleted {
		return res, nil
	}

	for _, step := range usecases.RemovalSteps {
		if state.Done(step) {
			res.Steps = append(res.Steps, usecases.StepResult{Step: step, Skipped: true})
			continue
		}
		var deleted int
		err := workflow.ExecuteActivity(ctx, ActivityRunRemovalStep, input.EntrepreneurID, step).Get(ctx, &deleted)
		if err != nil {
			logger.Warn("removal step failed", "step", step, "error", err)
			res.Steps = append(res.Steps, usecases.StepResult{Step: step, Deleted: deleted, Error: err.Error()})
			res.Status = usecases.SagaFailed
			return res, nil
		}
		res.Steps = append(res.Steps, usecases.StepResult{Step: step, Deleted: deleted})
	}

	if err := workflow.ExecuteActivity(ctx, ActivityCompleteRemoval, input.EntrepreneurID).Get(ctx, nil); err != nil {
		res.Status = usecases.SagaFailed
		res.Steps = append(res.Steps, usecases.StepResult{Step: "complete", Error: err.Error()})
		return res, nil
	}

	res.Status = usecases.SagaCompleted
	logger.Info("Entrepreneur removed", "entrepreneurId", input.EntrepreneurID)
	return res, nil
}

// failedStep returns the error recorded for the step that stopped a run.
func failedStep(res *usecases.RemovalResult) string {
	for _, s := range res.Steps {
		if s.Error != "" {
			return fmt.Sprintf("%s: %s", s.Step, s.Error)
		}
	}
	return "unknown step"
}
