package workflows

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/halalway/halalway/internal/adapters/memstore"
	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/usecases"
)

func seedEntrepreneur(t *testing.T, store *memstore.Store) {
	t.Helper()
	ctx := context.Background()
	seed := []struct {
		coll, id string
		doc      domain.Document
	}{
		{domain.CollectionUsers, "e1", domain.Document{"role": string(domain.RoleEntrepreneur)}},
		{domain.CollectionServices, "s1", domain.Document{"name": "Siam Halal", "entrepreneurId": "e1"}},
		{domain.CollectionServices, "s2", domain.Document{"name": "Halal Spa", "entrepreneurId": "e1"}},
		{domain.CollectionServices, "other", domain.Document{"name": "Not theirs", "entrepreneurId": "e2"}},
		{domain.CollectionPromotions, "p1", domain.Document{"title": "10% off", "serviceId": "s1"}},
		{domain.CollectionCampaignSubscriptions, "c1", domain.Document{"serviceId": "s1", "entrepreneurId": "e1", "status": "approved"}},
		{domain.CollectionCampaignReports, "c1", domain.Document{"impressions": 12}},
	}
	for _, s := range seed {
		require.NoError(t, store.Merge(ctx, s.coll, s.id, s.doc))
	}
}

func newEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *memstore.Store, *RemovalActivities) {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	store := memstore.New()
	acts := &RemovalActivities{Removal: usecases.NewRemovalService(store)}
	env.RegisterWorkflow(RemoveEntrepreneurWorkflow)
	env.RegisterActivity(acts)
	return env, store, acts
}

func TestRemoveEntrepreneurWorkflow_Completes(t *testing.T) {
	env, store, _ := newEnv(t)
	seedEntrepreneur(t, store)

	env.ExecuteWorkflow(RemoveEntrepreneurWorkflow, RemovalInput{EntrepreneurID: "e1"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var res usecases.RemovalResult
	require.NoError(t, env.GetWorkflowResult(&res))

	assert.Equal(t, usecases.SagaCompleted, res.Status)
	require.Len(t, res.Steps, len(usecases.RemovalSteps))
	assert.Equal(t, 2, res.Steps[0].Deleted, "services")

	ctx := context.Background()
	_, err := store.Get(ctx, domain.CollectionServices, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(ctx, domain.CollectionServices, "other")
	assert.NoError(t, err, "another entrepreneur's service must survive")
	_, err = store.Get(ctx, domain.CollectionCampaignReports, "c1")
	assert.NoError(t, err, "campaign reports are kept")
}

func TestRemoveEntrepreneurWorkflow_UnknownEntrepreneur(t *testing.T) {
	env, _, _ := newEnv(t)

	env.ExecuteWorkflow(RemoveEntrepreneurWorkflow, RemovalInput{EntrepreneurID: "ghost"})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrTypeNotFound, appErr.Type())
}

func TestRemoveEntrepreneurWorkflow_StepFailureIsRetriedThenReported(t *testing.T) {
	env, store, acts := newEnv(t)
	seedEntrepreneur(t, store)

	var promotionAttempts atomic.Int32
	env.OnActivity(ActivityRunRemovalStep, mock.Anything, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, id string, step usecases.RemovalStep) (int, error) {
			if step == usecases.StepPromotions {
				promotionAttempts.Add(1)
				return 0, errors.New("store offline")
			}
			return acts.RunRemovalStep(ctx, id, step)
		})

	env.ExecuteWorkflow(RemoveEntrepreneurWorkflow, RemovalInput{EntrepreneurID: "e1"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var res usecases.RemovalResult
	require.NoError(t, env.GetWorkflowResult(&res))

	assert.Equal(t, usecases.SagaFailed, res.Status)
	assert.EqualValues(t, 3, promotionAttempts.Load())
	last := res.Steps[len(res.Steps)-1]
	assert.Equal(t, usecases.StepPromotions, last.Step)
	assert.Contains(t, last.Error, "store offline")

	// The user step never ran.
	_, err := store.Get(context.Background(), domain.CollectionUsers, "e1")
	assert.NoError(t, err)
}

func TestRemoveEntrepreneurWorkflow_ResumesAfterFailure(t *testing.T) {
	store := memstore.New()
	seedEntrepreneur(t, store)
	svc := usecases.NewRemovalService(store)
	ctx := context.Background()

	// An earlier run finished the first two steps.
	_, err := svc.Begin(ctx, "e1")
	require.NoError(t, err)
	_, err = svc.RunStep(ctx, "e1", usecases.StepServices)
	require.NoError(t, err)
	_, err = svc.RunStep(ctx, "e1", usecases.StepSubscriptions)
	require.NoError(t, err)

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&RemovalActivities{Removal: svc})
	env.ExecuteWorkflow(RemoveEntrepreneurWorkflow, RemovalInput{EntrepreneurID: "e1"})

	require.NoError(t, env.GetWorkflowError())
	var res usecases.RemovalResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, usecases.SagaCompleted, res.Status)
	assert.True(t, res.Steps[0].Skipped)
	assert.True(t, res.Steps[1].Skipped)
	assert.False(t, res.Steps[2].Skipped)
	assert.EqualValues(t, 2, res.Attempts)

	// Promotions of services deleted in the earlier run are still found.
	_, err = store.Get(ctx, domain.CollectionPromotions, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- Starter ----

type fakeRun struct {
	client.WorkflowRun
	res *usecases.RemovalResult
	err error
}

func (r fakeRun) Get(_ context.Context, valuePtr interface{}) error {
	if r.err != nil {
		return r.err
	}
	*valuePtr.(*usecases.RemovalResult) = *r.res
	return nil
}

type fakeStarter struct {
	opts client.StartWorkflowOptions
	run  fakeRun
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, opts client.StartWorkflowOptions, _ interface{}, _ ...interface{}) (client.WorkflowRun, error) {
	f.opts = opts
	return f.run, nil
}

func TestStarter_RemoveEntrepreneur(t *testing.T) {
	fake := &fakeStarter{run: fakeRun{res: &usecases.RemovalResult{EntrepreneurID: "e1", Status: usecases.SagaCompleted}}}
	s := NewStarter(fake, "halalway-removal")

	res, err := s.RemoveEntrepreneur(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, usecases.SagaCompleted, res.Status)
	assert.Equal(t, "remove-entrepreneur-e1", fake.opts.ID)
	assert.Equal(t, "halalway-removal", fake.opts.TaskQueue)
}

func TestStarter_FailedRunKeepsResult(t *testing.T) {
	fake := &fakeStarter{run: fakeRun{res: &usecases.RemovalResult{
		Status: usecases.SagaFailed,
		Steps:  []usecases.StepResult{{Step: usecases.StepServices, Error: "boom"}},
	}}}

	res, err := NewStarter(fake, "q").RemoveEntrepreneur(context.Background(), "e1")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Contains(t, err.Error(), "services: boom")
}

func TestStarter_MapsApplicationErrors(t *testing.T) {
	for typ, want := range map[string]error{
		ErrTypeNotFound:     domain.ErrNotFound,
		ErrTypeInvalidInput: domain.ErrInvalidInput,
	} {
		fake := &fakeStarter{run: fakeRun{err: temporal.NewNonRetryableApplicationError("nope", typ, nil)}}
		res, err := NewStarter(fake, "q").RemoveEntrepreneur(context.Background(), "e1")
		assert.Nil(t, res)
		assert.ErrorIs(t, err, want, typ)
	}

	_, err := NewStarter(&fakeStarter{}, "q").RemoveEntrepreneur(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
