package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/competa/internal/domain/model"
)

type options struct {
	newID func() string
	now   func() time.Time
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithIDGenerator replaces the uuid generator used for new evaluations.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithClock sets the clock used to stamp records written without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{newID: uuid.NewString, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// stamp returns t, or the store clock in UTC when t is zero. Both stores
// persist nanosecond timestamps, which the zero time cannot round-trip.
func (o options) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return o.now().UTC()
	}
	return t
}

func (o options) stampPatch(p model.EvaluationPatch) model.EvaluationPatch {
	if p.Timestamp != nil && p.Timestamp.IsZero() {
		ts := o.now().UTC()
		p.Timestamp = &ts
	}
	return p
}
