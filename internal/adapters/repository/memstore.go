package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/pkg/metrics"
)

type overrideKey struct {
	studentID string
	code      string
}

// MemStore is an in-memory Store guarded by a single RWMutex.
type MemStore struct {
	mu        sync.RWMutex
	events    map[string]model.EvaluationEvent
	overrides map[overrideKey]model.ManualOverride
	classes   map[string]map[string]struct{}
	opts      options
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	return &MemStore{
		events:    make(map[string]model.EvaluationEvent),
		overrides: make(map[overrideKey]model.ManualOverride),
		classes:   make(map[string]map[string]struct{}),
		opts:      buildOptions(opts),
	}
}

// ListEvaluations implements Store.
func (s *MemStore) ListEvaluations(ctx context.Context, studentID string) ([]model.EvaluationEvent, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.studentEvents(studentID), nil
}

// ListClassEvaluations implements Store.
func (s *MemStore) ListClassEvaluations(ctx context.Context, classID string) (map[string][]model.EvaluationEvent, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	roster := s.classes[classID]
	out := make(map[string][]model.EvaluationEvent, len(roster))
	for student := range roster {
		out[student] = s.studentEvents(student)
	}
	return out, nil
}

// GetEvaluation implements Store.
func (s *MemStore) GetEvaluation(ctx context.Context, id string) (model.EvaluationEvent, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.EvaluationEvent{}, ErrNotFound
	}
	return e, nil
}

// CreateEvaluation implements Store.
func (s *MemStore) CreateEvaluation(ctx context.Context, e model.EvaluationEvent) (model.EvaluationEvent, error) {
	defer observeUpdate(time.Now())

	if err := validateEvent(e); err != nil {
		return model.EvaluationEvent{}, err
	}
	if e.ID == "" {
		e.ID = s.opts.newID()
	}
	e.Timestamp = s.opts.stamp(e.Timestamp)

	s.mu.Lock()
	s.events[e.ID] = e
	n := len(s.events)
	s.mu.Unlock()

	metrics.UpdateRepositoryRecordsTotal(n)
	return e, nil
}

// UpdateEvaluation implements Store.
func (s *MemStore) UpdateEvaluation(ctx context.Context, id string, patch model.EvaluationPatch) (model.EvaluationEvent, error) {
	defer observeUpdate(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.EvaluationEvent{}, ErrNotFound
	}
	if !patch.Allows(e) {
		metrics.RecordErrorByComponent("repository", "conflict")
		return model.EvaluationEvent{}, ErrConflict
	}
	e = s.opts.stampPatch(patch).Apply(e)
	s.events[id] = e
	return e, nil
}

// DeleteEvaluation implements Store.
func (s *MemStore) DeleteEvaluation(ctx context.Context, id string) error {
	defer observeUpdate(time.Now())

	s.mu.Lock()
	if _, ok := s.events[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.events, id)
	n := len(s.events)
	s.mu.Unlock()

	metrics.UpdateRepositoryRecordsTotal(n)
	return nil
}

// ListManualOverrides implements Store.
func (s *MemStore) ListManualOverrides(ctx context.Context, studentID string) ([]model.ManualOverride, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ManualOverride
	for k, o := range s.overrides {
		if k.studentID == studentID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompetencyCode < out[j].CompetencyCode })
	return out, nil
}

// UpsertManualOverride implements Store.
func (s *MemStore) UpsertManualOverride(ctx context.Context, o model.ManualOverride) error {
	defer observeUpdate(time.Now())

	if err := validateOverride(o); err != nil {
		return err
	}
	o.Timestamp = s.opts.stamp(o.Timestamp)
	s.mu.Lock()
	s.overrides[overrideKey{studentID: o.StudentID, code: o.CompetencyCode}] = o
	s.mu.Unlock()
	return nil
}

// EnrollStudent implements Store.
func (s *MemStore) EnrollStudent(ctx context.Context, classID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster, ok := s.classes[classID]
	if !ok {
		roster = make(map[string]struct{})
		s.classes[classID] = roster
	}
	roster[studentID] = struct{}{}
	return nil
}

// Stats implements Store.
func (s *MemStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	students := make(map[string]struct{})
	for _, e := range s.events {
		students[e.StudentID] = struct{}{}
	}
	for _, roster := range s.classes {
		for id := range roster {
			students[id] = struct{}{}
		}
	}
	return Stats{
		Evaluations: len(s.events),
		Overrides:   len(s.overrides),
		Students:    len(students),
		Classes:     len(s.classes),
	}, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }

// studentEvents must be called with s.mu held.
func (s *MemStore) studentEvents(studentID string) []model.EvaluationEvent {
	out := []model.EvaluationEvent{}
	for _, e := range s.events {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out
}

// sortEvents orders events by timestamp, then id.
func sortEvents(events []model.EvaluationEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].ID < events[j].ID
	})
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
}
