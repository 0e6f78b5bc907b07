package service

import (
	"time"

	"github.com/okian/competa/internal/adapters/repository"
	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the evaluation store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRubric sets the competency rubric.
func WithRubric(r *rubric.Rubric) Option {
	return func(s *Service) {
		if r != nil {
			s.rubric = r
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionCapacity bounds the number of live capture sessions.
func WithSessionCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sessionCapacity = n
		}
	}
}

// WithReconcileWorkers sets the reconcile pool size.
func WithReconcileWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.reconcileWorkers = n
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
