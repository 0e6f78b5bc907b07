// Package service wires the rubric, the store and the domain calculators
// into the operations exposed by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/competa/internal/adapters/repository"
	"github.com/okian/competa/internal/domain/aggregate"
	"github.com/okian/competa/internal/domain/bilan"
	"github.com/okian/competa/internal/domain/capture"
	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/position"
	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/internal/domain/scoring"
	"github.com/okian/competa/internal/domain/types"
	"github.com/okian/competa/pkg/logger"
	"github.com/okian/competa/pkg/metrics"
)

// Service implements the API dependencies for competency tracking.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	rubric     *rubric.Rubric
	resolver   *position.Resolver
	aggregator *aggregate.Aggregator
	calculator *bilan.Calculator
	registry   *capture.Registry
	reconciler *capture.Reconciler

	// Configuration
	sessionCapacity  int
	reconcileWorkers int
	now              func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessionCapacity:  10000,
		reconcileWorkers: 4,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the domain components. A missing rubric falls back to the
// embedded default and a missing store to an in-memory one.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting competency service...")

	if s.rubric == nil {
		r, err := rubric.Default()
		if err != nil {
			return fmt.Errorf("default rubric: %w", err)
		}
		s.rubric = r
	}
	if s.store == nil {
		s.store = repository.NewMemStore()
		s.logger.Info(ctx, "using in-memory store")
	}

	s.resolver = position.NewResolver(s.rubric)
	s.aggregator = aggregate.New(s.resolver)
	s.calculator = bilan.NewCalculator(s.rubric, s.aggregator)
	s.registry = capture.NewRegistry(s.rubric,
		capture.WithCapacity(s.sessionCapacity),
		capture.WithLogger(s.logger.Named("capture")),
	)
	s.reconciler = capture.NewReconciler(s.store,
		capture.WithWorkers(s.reconcileWorkers),
		capture.WithReconcileLogger(s.logger.Named("reconcile")),
	)

	s.started = true
	s.logger.Info(ctx, "competency service started",
		logger.Int("rubricNodes", s.rubric.Len()),
		logger.Int("sessionCapacity", s.sessionCapacity),
		logger.Int("reconcileWorkers", s.reconcileWorkers),
	)
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping competency service...")
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "competency service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordComputationLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// Rubric returns the loaded rubric.
func (s *Service) Rubric(ctx context.Context) ([]model.CompetencyNode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.rubric.Nodes(), nil
}

// Positions computes every node's positioning and every skill's weighted
// mean for a student.
func (s *Service) Positions(ctx context.Context, studentID string) (types.StudentPositions, error) {
	if err := s.ready(); err != nil {
		return types.StudentPositions{}, err
	}
	if studentID == "" {
		return types.StudentPositions{}, fmt.Errorf("student id: %w", ErrInvalidRequest)
	}
	events, overrides, err := s.snapshot(ctx, studentID)
	if err != nil {
		return types.StudentPositions{}, err
	}

	defer observe("positions", time.Now())
	skills, err := s.aggregator.AggregateAll(events, overrides)
	if err != nil {
		return types.StudentPositions{}, err
	}
	return types.StudentPositions{
		StudentID: studentID,
		Positions: s.resolver.Overview(events, overrides),
		Skills:    skills,
	}, nil
}

// Bilan builds a student's report card. Progression is relative to the
// class when classID is set, otherwise to the student alone.
func (s *Service) Bilan(ctx context.Context, studentID, classID string) (bilan.Report, error) {
	if err := s.ready(); err != nil {
		return bilan.Report{}, err
	}
	if studentID == "" {
		return bilan.Report{}, fmt.Errorf("student id: %w", ErrInvalidRequest)
	}
	events, overrides, err := s.snapshot(ctx, studentID)
	if err != nil {
		return bilan.Report{}, err
	}

	group := map[string][]model.EvaluationEvent{}
	if classID != "" {
		group, err = s.store.ListClassEvaluations(ctx, classID)
		if err != nil {
			return bilan.Report{}, err
		}
	}

	defer observe("bilan", time.Now())
	return s.calculator.Report(studentID, events, group, overrides)
}

func (s *Service) snapshot(ctx context.Context, studentID string) ([]model.EvaluationEvent, []model.ManualOverride, error) {
	events, err := s.store.ListEvaluations(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	overrides, err := s.store.ListManualOverrides(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	return events, overrides, nil
}

// Capture selects the request's (student, competency) for its author and
// records the color through the author's session.
func (s *Service) Capture(ctx context.Context, req types.CaptureRequest) (types.CaptureResponse, error) {
	if err := s.ready(); err != nil {
		return types.CaptureResponse{}, err
	}
	session, err := s.registry.Select(req.AuthorID, req.StudentID, req.CompetencyCode)
	if err != nil {
		return types.CaptureResponse{}, err
	}
	res, err := session.Capture(ctx, s.store, req.Color, req.Comment, s.now())
	if err != nil {
		return types.CaptureResponse{}, err
	}
	return types.CaptureResponse{
		Event:   res.Event,
		Amended: res.Amended,
		Mode:    session.Mode().String(),
	}, nil
}

// NewEvaluation makes the author's next capture create a new event.
func (s *Service) NewEvaluation(ctx context.Context, authorID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	session, ok := s.registry.Active(authorID)
	if !ok {
		return fmt.Errorf("author %q: %w", authorID, capture.ErrNoSelection)
	}
	session.Reset()
	s.logger.Debug(ctx, "new evaluation requested", logger.String("author", authorID))
	return nil
}

// SetOverride stores a manual position. A zero timestamp is set to now.
func (s *Service) SetOverride(ctx context.Context, req types.OverrideRequest) (model.ManualOverride, error) {
	if err := s.ready(); err != nil {
		return model.ManualOverride{}, err
	}
	if err := scoring.Validate(req.Color); err != nil {
		return model.ManualOverride{}, err
	}
	if !s.rubric.Has(req.CompetencyCode) {
		return model.ManualOverride{}, fmt.Errorf("%q: %w", req.CompetencyCode, rubric.ErrUnknownCompetency)
	}
	o := model.ManualOverride{
		StudentID:      req.StudentID,
		CompetencyCode: req.CompetencyCode,
		Color:          req.Color,
		AuthorID:       req.AuthorID,
		Timestamp:      s.now(),
	}
	if err := s.store.UpsertManualOverride(ctx, o); err != nil {
		return model.ManualOverride{}, err
	}
	metrics.RecordOverrideSet()
	return o, nil
}

// Reconcile tags events with an assignment key.
func (s *Service) Reconcile(ctx context.Context, ids []string, key string, force bool) (capture.ReconcileResult, error) {
	if err := s.ready(); err != nil {
		return capture.ReconcileResult{}, err
	}
	defer observe("reconcile", time.Now())
	return s.reconciler.Reconcile(ctx, ids, key, capture.ReconcileOptions{Force: force})
}

// DeleteEvaluation removes one event from the history.
func (s *Service) DeleteEvaluation(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.store.DeleteEvaluation(ctx, id); err != nil {
		return err
	}
	metrics.RecordEvaluationDeleted()
	return nil
}

// Enroll adds a student to a class roster.
func (s *Service) Enroll(ctx context.Context, classID, studentID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if classID == "" || studentID == "" {
		return fmt.Errorf("class and student ids: %w", ErrInvalidRequest)
	}
	return s.store.EnrollStudent(ctx, classID, studentID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (types.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		Started:          s.started,
		SessionCapacity:  s.sessionCapacity,
		ReconcileWorkers: s.reconcileWorkers,
	}
	if !s.started {
		return stats, nil
	}

	st, err := s.store.Stats(ctx)
	if err != nil {
		return stats, err
	}
	stats.Evaluations = st.Evaluations
	stats.Overrides = st.Overrides
	stats.Students = st.Students
	stats.Classes = st.Classes
	stats.ActiveSessions = s.registry.Len()
	stats.RubricNodes = s.rubric.Len()

	metrics.UpdateRepositoryRecordsTotal(st.Evaluations)
	metrics.UpdateActiveSessions(stats.ActiveSessions)
	return stats, nil
}
