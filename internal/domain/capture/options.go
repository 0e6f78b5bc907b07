package capture

import "github.com/okian/competa/pkg/logger"

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithCapacity sets how many authors may hold a session at once.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// ReconcilerOption applies a configuration option to the Reconciler.
type ReconcilerOption func(*Reconciler)

// WithWorkers bounds how many conditional updates run concurrently.
func WithWorkers(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithReconcileLogger sets a custom logger for the reconciler.
func WithReconcileLogger(l logger.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}
