package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/halalway/halalway/internal/core/catalog"
	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
	"github.com/halalway/halalway/internal/pkg/metrics"
)

// RemovalStep names one idempotent stage of removing an entrepreneur.
type RemovalStep string

const (
	StepServices      RemovalStep = "services"
	StepSubscriptions RemovalStep = "campaign_subscriptions"
	StepPromotions    RemovalStep = "promotions"
	StepUser          RemovalStep = "user"
)

// RemovalSteps is the execution order. Campaign reports are never removed.
var RemovalSteps = []RemovalStep{StepServices, StepSubscriptions, StepPromotions, StepUser}

// Saga statuses.
const (
	SagaRunning   = "running"
	SagaFailed    = "failed"
	SagaCompleted = "completed"
)

// RemovalState is the progress log kept in removal_sagas/{entrepreneurId}.
type RemovalState struct {
	EntrepreneurID string        `json:"entrepreneurId"`
	Status         string        `json:"status"`
	CompletedSteps []RemovalStep `json:"completedSteps"`
	ServiceIDs     []string      `json:"serviceIds"`
	Attempts       int64         `json:"attempts"`
	LastError      string        `json:"lastError,omitempty"`
}

// Done reports whether step already completed in an earlier run.
func (s *RemovalState) Done(step RemovalStep) bool {
	for _, c := range s.CompletedSteps {
		if c == step {
			return true
		}
	}
	return false
}

// StepResult is the outcome of one step in a single run.
type StepResult struct {
	Step    RemovalStep `json:"step"`
	Deleted int         `json:"deleted"`
	Skipped bool        `json:"skipped,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RemovalResult summarises a RemoveEntrepreneur run.
type RemovalResult struct {
	EntrepreneurID string       `json:"entrepreneurId"`
	Status         string       `json:"status"`
	Attempts       int64        `json:"attempts"`
	Steps          []StepResult `json:"steps"`
}

// RemovalService deletes an entrepreneur and everything they own as an
// ordered, resumable sequence of steps.
type RemovalService struct {
	store ports.DocumentStore
}

// NewRemovalService creates a new RemovalService.
func NewRemovalService(store ports.DocumentStore) *RemovalService {
	return &RemovalService{store: store}
}

// RemoveEntrepreneur runs every step not yet completed, stopping at the first
// failure. Calling it again after a failure resumes at the failed step.
func (s *RemovalService) RemoveEntrepreneur(ctx context.Context, id string) (*RemovalResult, error) {
	state, err := s.Begin(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &RemovalResult{EntrepreneurID: id, Status: state.Status, Attempts: state.Attempts}
	if state.Status == SagaCompleted {
		return res, nil
	}

	for _, step := range RemovalSteps {
		if state.Done(step) {
			res.Steps = append(res.Steps, StepResult{Step: step, Skipped: true})
			continue
		}
		n, err := s.RunStep(ctx, id, step)
		if err != nil {
			res.Steps = append(res.Steps, StepResult{Step: step, Deleted: n, Error: err.Error()})
			res.Status = SagaFailed
			return res, err
		}
		res.Steps = append(res.Steps, StepResult{Step: step, Deleted: n})
	}

	if err := s.Complete(ctx, id); err != nil {
		return res, err
	}
	res.Status = SagaCompleted
	return res, nil
}

// Begin opens or resumes the progress log. A new removal requires an
// existing user with the Entrepreneur role; the ids of their services are
// captured up front so promotions can still be found after the services go.
func (s *RemovalService) Begin(ctx context.Context, id string) (*RemovalState, error) {
	if id == "" {
		return nil, fmt.Errorf("entrepreneur id: %w", domain.ErrInvalidInput)
	}

	state, err := s.State(ctx, id)
	switch {
	case err == nil:
		if state.Status == SagaCompleted {
			return state, nil
		}
		if err := s.store.Merge(ctx, domain.CollectionRemovalSagas, id, domain.Document{
			"status":    SagaRunning,
			"attempts":  ports.Increment(1),
			"updatedAt": ports.ServerTimestamp(),
		}); err != nil {
			return nil, fmt.Errorf("resume removal %s: %w", id, err)
		}
		state.Status = SagaRunning
		state.Attempts++
		slog.InfoContext(ctx, "resuming entrepreneur removal", "entrepreneur_id", id, "completed", state.CompletedSteps)
		return state, nil
	case !isNotFound(err):
		return nil, err
	}

	user, err := s.store.Get(ctx, domain.CollectionUsers, id)
	if err != nil {
		return nil, fmt.Errorf("load entrepreneur %s: %w", id, err)
	}
	if domain.ParseRole(user.String("role")) != domain.RoleEntrepreneur {
		return nil, fmt.Errorf("user %s is not an entrepreneur: %w", id, domain.ErrInvalidInput)
	}

	services, err := s.store.GetWhere(ctx, domain.CollectionServices, "entrepreneurId", ports.OpEqual, id)
	if err != nil {
		return nil, fmt.Errorf("list services of %s: %w", id, err)
	}
	serviceIDs := catalog.Values(services, domain.FieldID)

	if err := s.store.Merge(ctx, domain.CollectionRemovalSagas, id, domain.Document{
		"entrepreneurId": id,
		"status":         SagaRunning,
		"completedSteps": []string{},
		"serviceIds":     serviceIDs,
		"attempts":       ports.Increment(1),
		"startedAt":      ports.SetOnInsert(ports.ServerTimestamp()),
		"updatedAt":      ports.ServerTimestamp(),
	}); err != nil {
		return nil, fmt.Errorf("start removal %s: %w", id, err)
	}
	slog.InfoContext(ctx, "starting entrepreneur removal", "entrepreneur_id", id, "services", len(serviceIDs))

	return &RemovalState{
		EntrepreneurID: id,
		Status:         SagaRunning,
		ServiceIDs:     serviceIDs,
		Attempts:       1,
	}, nil
}

// State reads the progress log; domain.ErrNotFound if none exists.
func (s *RemovalService) State(ctx context.Context, id string) (*RemovalState, error) {
	doc, err := s.store.Get(ctx, domain.CollectionRemovalSagas, id)
	if err != nil {
		return nil, err
	}
	st := &RemovalState{
		EntrepreneurID: id,
		Status:         doc.String("status"),
		ServiceIDs:     stringList(doc["serviceIds"]),
		Attempts:       doc.Int("attempts"),
		LastError:      doc.String("lastError"),
	}
	for _, step := range stringList(doc["completedSteps"]) {
		st.CompletedSteps = append(st.CompletedSteps, RemovalStep(step))
	}
	return st, nil
}

// RunStep executes one step and records it in the progress log. It returns
// the number of documents deleted. Re-running a completed step is harmless.
func (s *RemovalService) RunStep(ctx context.Context, id string, step RemovalStep) (int, error) {
	state, err := s.State(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("load removal %s: %w", id, err)
	}

	n, err := s.execute(ctx, state, step)
	if err != nil {
		metrics.RemovalSteps.WithLabelValues(string(step), "error").Inc()
		slog.ErrorContext(ctx, "removal step failed", "entrepreneur_id", id, "step", step, "error", err)
		if merr := s.store.Merge(ctx, domain.CollectionRemovalSagas, id, domain.Document{
			"status":    SagaFailed,
			"lastError": fmt.Sprintf("%s: %v", step, err),
			"updatedAt": ports.ServerTimestamp(),
		}); merr != nil {
			slog.ErrorContext(ctx, "record removal failure", "entrepreneur_id", id, "error", merr)
		}
		return n, fmt.Errorf("remove %s of %s: %w", step, id, err)
	}

	if !state.Done(step) {
		completed := make([]string, 0, len(state.CompletedSteps)+1)
		for _, c := range state.CompletedSteps {
			completed = append(completed, string(c))
		}
		completed = append(completed, string(step))
		if err := s.store.Merge(ctx, domain.CollectionRemovalSagas, id, domain.Document{
			"completedSteps": completed,
			"updatedAt":      ports.ServerTimestamp(),
		}); err != nil {
			return n, fmt.Errorf("record step %s of %s: %w", step, id, err)
		}
	}

	metrics.RemovalSteps.WithLabelValues(string(step), "ok").Inc()
	slog.InfoContext(ctx, "removal step done", "entrepreneur_id", id, "step", step, "deleted", n)
	return n, nil
}

// Complete marks the removal finished.
func (s *RemovalService) Complete(ctx context.Context, id string) error {
	if err := s.store.Merge(ctx, domain.CollectionRemovalSagas, id, domain.Document{
		"status":      SagaCompleted,
		"lastError":   "",
		"completedAt": ports.ServerTimestamp(),
		"updatedAt":   ports.ServerTimestamp(),
	}); err != nil {
		return fmt.Errorf("complete removal %s: %w", id, err)
	}
	slog.InfoContext(ctx, "entrepreneur removed", "entrepreneur_id", id)
	return nil
}

func (s *RemovalService) execute(ctx context.Context, state *RemovalState, step RemovalStep) (int, error) {
	id := state.EntrepreneurID
	switch step {
	case StepServices:
		return s.deleteServices(ctx, state)
	case StepSubscriptions:
		return s.deleteWhere(ctx, domain.CollectionCampaignSubscriptions, "entrepreneurId", id)
	case StepPromotions:
		deleted := 0
		for _, chunk := range catalog.Chunk(catalog.UniqueIDs(state.ServiceIDs), catalog.MaxInQuery) {
			docs, err := s.store.GetWhereIn(ctx, domain.CollectionPromotions, "serviceId", chunk)
			if err != nil {
				return deleted, err
			}
			n, err := s.deleteAll(ctx, domain.CollectionPromotions, docs)
			deleted += n
			if err != nil {
				return deleted, err
			}
		}
		return deleted, nil
	case StepUser:
		if err := s.store.Delete(ctx, domain.CollectionUsers, id); err != nil {
			return 0, err
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("unknown removal step %q: %w", step, domain.ErrInvalidInput)
	}
}

// deleteServices removes every service of the entrepreneur, including ones
// created after Begin. Their ids are added to the progress log before any
// delete so the promotions step still finds their promotions.
func (s *RemovalService) deleteServices(ctx context.Context, state *RemovalState) (int, error) {
	docs, err := s.store.GetWhere(ctx, domain.CollectionServices, "entrepreneurId", ports.OpEqual, state.EntrepreneurID)
	if err != nil {
		return 0, err
	}

	known := catalog.UniqueIDs(state.ServiceIDs)
	ids := catalog.UniqueIDs(append(known, catalog.Values(docs, domain.FieldID)...))
	if len(ids) > len(known) {
		if err := s.store.Merge(ctx, domain.CollectionRemovalSagas, state.EntrepreneurID, domain.Document{
			"serviceIds": ids,
			"updatedAt":  ports.ServerTimestamp(),
		}); err != nil {
			return 0, fmt.Errorf("record services of %s: %w", state.EntrepreneurID, err)
		}
		state.ServiceIDs = ids
	}
	return s.deleteAll(ctx, domain.CollectionServices, docs)
}

func (s *RemovalService) deleteWhere(ctx context.Context, collection, field, value string) (int, error) {
	docs, err := s.store.GetWhere(ctx, collection, field, ports.OpEqual, value)
	if err != nil {
		return 0, err
	}
	return s.deleteAll(ctx, collection, docs)
}

func (s *RemovalService) deleteAll(ctx context.Context, collection string, docs []domain.Document) (int, error) {
	deleted := 0
	for _, d := range docs {
		if err := s.store.Delete(ctx, collection, d.ID()); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// stringList reads a string array field regardless of how the store decoded it.
func stringList(v any) []string {
	switch arr := v.(type) {
	case []string:
		return append([]string(nil), arr...)
	case []any:
		out := make([]string, 0, len(arr))
		for _, x := range arr {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
