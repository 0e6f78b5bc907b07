// Package seed fills a class with deterministic demo evaluations.
package seed

import (
	"context"
	"time"

	"github.com/okian/competa/internal/domain/types"
)

// Config holds the generation parameters.
type Config struct {
	ClassID  string // Class the students are enrolled in
	Students int    // Number of students to create
	Captures int    // Captures per student
	Workers  int    // Concurrent authors
	Seed     uint64 // Same seed, same data
}

// Target is where generated captures are written.
type Target interface {
	Enroll(ctx context.Context, classID, studentID string) error
	Capture(ctx context.Context, req types.CaptureRequest) (types.CaptureResponse, error)
	NewEvaluation(ctx context.Context, authorID string) error
}

// Stats holds run statistics.
type Stats struct {
	Students int           `json:"students"`
	Captures int           `json:"captures"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Defaults.
const (
	DefaultStudents = 24
	DefaultCaptures = 12
	DefaultWorkers  = 4
)

func (c Config) withDefaults() Config {
	if c.ClassID == "" {
		c.ClassID = "demo"
	}
	if c.Students <= 0 {
		c.Students = DefaultStudents
	}
	if c.Captures <= 0 {
		c.Captures = DefaultCaptures
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	return c
}
