package capture

import (
	"context"
	"errors"
	"time"

	"github.com/okian/competa/internal/adapters/mq/queue"
	"github.com/okian/competa/internal/adapters/mq/worker"
	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/pkg/logger"
	"github.com/okian/competa/pkg/metrics"
)

const defaultReconcileWorkers = 4

// Store is what reconciliation reads and writes.
type Store interface {
	GetEvaluation(ctx context.Context, id string) (model.EvaluationEvent, error)
	ListEvaluations(ctx context.Context, studentID string) ([]model.EvaluationEvent, error)
	UpdateEvaluation(ctx context.Context, id string, patch model.EvaluationPatch) (model.EvaluationEvent, error)
}

// ReconcileOptions tunes a reconciliation.
type ReconcileOptions struct {
	// Force tags events even when conflicts were detected.
	Force bool
}

// ReconcileResult reports per-event outcomes. Updates are not rolled back
// when some of them fail.
type ReconcileResult struct {
	Key       string           `json:"assignment_key"`
	Updated   []string         `json:"updated"`
	Failed    map[string]error `json:"-"`
	Conflicts []Conflict       `json:"conflicts,omitempty"`
}

// Partial reports whether some but not all events were tagged.
func (r ReconcileResult) Partial() bool {
	return len(r.Failed) > 0 && len(r.Updated) > 0
}

// Reconciler links evaluation events to an assignment key.
type Reconciler struct {
	store   Store
	workers int
	logger  logger.Logger
}

// NewReconciler creates a reconciler writing through store.
func NewReconciler(store Store, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:   store,
		workers: defaultReconcileWorkers,
		logger:  logger.Get().Named("reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile tags every event in ids with key. Conflicts abort the whole call
// with a *ConflictError unless opts.Force is set. Each write is conditional on
// the key observed while checking, and the call returns only once every
// write has been acknowledged.
func (r *Reconciler) Reconcile(ctx context.Context, ids []string, key string, opts ReconcileOptions) (ReconcileResult, error) {
	if key == "" {
		return ReconcileResult{}, ErrEmptyAssignment
	}
	res := ReconcileResult{Key: key, Updated: []string{}, Failed: make(map[string]error)}

	ids = unique(ids)
	events := make([]model.EvaluationEvent, 0, len(ids))
	for _, id := range ids {
		e, err := r.store.GetEvaluation(ctx, id)
		if err != nil {
			res.Failed[id] = err
			continue
		}
		events = append(events, e)
	}

	conflicts, err := r.conflicts(ctx, events, key)
	if err != nil {
		return res, err
	}
	res.Conflicts = conflicts
	if len(conflicts) > 0 && !opts.Force {
		metrics.RecordReconcileOutcome("conflict", len(conflicts))
		return res, &ConflictError{Key: key, Conflicts: conflicts}
	}

	var pending []queue.Task
	for _, e := range events {
		if e.AssignmentKey == key {
			res.Updated = append(res.Updated, e.ID)
			continue
		}
		observed := e.AssignmentKey
		target := key
		pending = append(pending, queue.Task{
			EventID: e.ID,
			Patch:   model.EvaluationPatch{AssignmentKey: &target, IfAssignmentKey: &observed},
		})
	}

	for id, err := range r.dispatch(ctx, pending) {
		if err != nil {
			res.Failed[id] = err
			continue
		}
		res.Updated = append(res.Updated, id)
	}
	res.Updated = inOrder(ids, res.Updated)

	metrics.RecordReconcileOutcome("updated", len(res.Updated))
	metrics.RecordReconcileOutcome("failed", len(res.Failed))
	r.logger.Info(ctx, "reconciled assignment",
		logger.String("assignment", key),
		logger.Int("updated", len(res.Updated)),
		logger.Int("failed", len(res.Failed)),
		logger.Bool("forced", opts.Force && len(conflicts) > 0),
	)
	return res, nil
}

// conflicts inspects the selection against key: events tagged elsewhere,
// events outside the selection already carrying key, and selected events
// sharing a (student, competency) pair.
func (r *Reconciler) conflicts(ctx context.Context, events []model.EvaluationEvent, key string) ([]Conflict, error) {
	var out []Conflict
	selected := make(map[string]struct{}, len(events))
	for _, e := range events {
		selected[e.ID] = struct{}{}
	}

	type pair struct{ student, code string }
	seen := make(map[pair]struct{})
	history := make(map[string][]model.EvaluationEvent)

	for _, e := range events {
		if e.AssignmentKey != "" && e.AssignmentKey != key {
			out = append(out, Conflict{
				EventID:        e.ID,
				StudentID:      e.StudentID,
				CompetencyCode: e.CompetencyCode,
				ExistingKey:    e.AssignmentKey,
				Reason:         ReasonTagged,
			})
		}

		p := pair{e.StudentID, e.CompetencyCode}
		if _, ok := seen[p]; ok {
			// A second selected event for the pair would give the
			// assignment two grades.
			out = append(out, Conflict{
				EventID:        e.ID,
				StudentID:      e.StudentID,
				CompetencyCode: e.CompetencyCode,
				ExistingKey:    e.AssignmentKey,
				Reason:         ReasonDuplicate,
			})
			continue
		}
		seen[p] = struct{}{}

		all, ok := history[e.StudentID]
		if !ok {
			var err error
			all, err = r.store.ListEvaluations(ctx, e.StudentID)
			if err != nil {
				return nil, err
			}
			history[e.StudentID] = all
		}
		for _, other := range all {
			if _, in := selected[other.ID]; in {
				continue
			}
			if other.CompetencyCode == e.CompetencyCode && other.AssignmentKey == key {
				out = append(out, Conflict{
					EventID:        other.ID,
					StudentID:      other.StudentID,
					CompetencyCode: other.CompetencyCode,
					ExistingKey:    key,
					Reason:         ReasonDuplicate,
				})
			}
		}
	}
	return out, nil
}

// dispatch runs tasks through a bounded pool and waits for every ack. Tasks
// still unacknowledged when ctx ends are reported with ctx's error.
func (r *Reconciler) dispatch(ctx context.Context, tasks []queue.Task) map[string]error {
	out := make(map[string]error, len(tasks))
	if len(tasks) == 0 {
		return out
	}

	acks := make(chan queue.Ack, len(tasks))
	q := queue.NewInMemoryQueue(queue.WithCapacity(len(tasks)))
	pool := worker.NewPool(min(r.workers, len(tasks)), q, r.store, worker.WithLogger(r.logger))
	pool.Start(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(shutdownCtx)
	}()

	waiting := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		t.Ack = acks
		if err := q.Enqueue(ctx, t); err != nil {
			out[t.EventID] = err
			continue
		}
		waiting[t.EventID] = struct{}{}
	}
	_ = q.Close()

	for len(waiting) > 0 {
		select {
		case a := <-acks:
			out[a.EventID] = a.Err
			delete(waiting, a.EventID)
		case <-ctx.Done():
			for id := range waiting {
				out[id] = ctx.Err()
			}
			return out
		}
	}
	return out
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// inOrder returns subset sorted by its position in ids.
func inOrder(ids, subset []string) []string {
	in := make(map[string]struct{}, len(subset))
	for _, id := range subset {
		in[id] = struct{}{}
	}
	out := make([]string, 0, len(subset))
	for _, id := range ids {
		if _, ok := in[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// IsConflict extracts the details of a refused reconciliation.
func IsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
