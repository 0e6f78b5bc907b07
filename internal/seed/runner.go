package seed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/pkg/logger"
)

// Run enrolls the generated students and writes their captures. Each worker
// acts as its own author so sessions never interleave; every capture is
// followed by a new-evaluation request and therefore creates an event.
func Run(ctx context.Context, t Target, r *rubric.Rubric, cfg Config) (Stats, error) {
	cfg = cfg.withDefaults()
	start := time.Now()
	log := logger.Get().Named("seed")

	plans := Generate(r, cfg)
	log.Info(ctx, "seeding class",
		logger.String("class", cfg.ClassID),
		logger.Int("students", len(plans)),
		logger.Int("captures", cfg.Captures),
		logger.Int("workers", cfg.Workers),
	)

	for _, p := range plans {
		if err := t.Enroll(ctx, cfg.ClassID, p.StudentID); err != nil {
			return Stats{}, fmt.Errorf("enroll %s: %w", p.StudentID, err)
		}
	}

	// Returning early cancels the feeder and workers; no capture is sent
	// to the target once Run has returned.
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	workers := min(cfg.Workers, len(plans))
	jobs := make(chan Plan)
	results := make(chan planResult, len(plans))

	for w := 0; w < workers; w++ {
		author := fmt.Sprintf("seed-author-%d", w+1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				results <- runPlan(ctx, t, author, p, log)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range plans {
			select {
			case <-ctx.Done():
				return
			case jobs <- p:
			}
		}
	}()

	stats := Stats{Students: len(plans)}
	for range plans {
		select {
		case <-ctx.Done():
			return stats, fmt.Errorf("seeding cancelled: %w", ctx.Err())
		case res := <-results:
			if res.err != nil {
				return stats, res.err
			}
			stats.Captures += res.captures
			stats.Failed += res.failed
		}
	}
	stats.Duration = time.Since(start)

	log.Info(ctx, "seeded class",
		logger.Int("captures", stats.Captures),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

type planResult struct {
	captures int
	failed   int
	err      error
}

func runPlan(ctx context.Context, t Target, author string, p Plan, log logger.Logger) (res planResult) {
	for _, c := range p.Captures {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}
		c.AuthorID = author
		if _, err := t.Capture(ctx, c); err != nil {
			log.Warn(ctx, "capture failed",
				logger.String("student", c.StudentID),
				logger.String("competency", c.CompetencyCode),
				logger.Error(err),
			)
			res.failed++
			continue
		}
		res.captures++
		if err := t.NewEvaluation(ctx, author); err != nil {
			res.err = fmt.Errorf("new evaluation for %s: %w", author, err)
			return res
		}
	}
	return res
}
