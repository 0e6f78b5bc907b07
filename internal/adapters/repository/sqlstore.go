package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/pkg/metrics"
)

const evaluationColumns = `id, student_id, competency_code, color, ts, author_id, comment, assignment_key`

// SQLStore is a Store backed by database/sql. Queries use $n placeholders,
// which both the sqlite and pgx drivers accept.
type SQLStore struct {
	db   *sql.DB
	opts options
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open database whose schema already exists.
func NewSQLStore(db *sql.DB, opts ...Option) *SQLStore {
	return &SQLStore{db: db, opts: buildOptions(opts)}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(r rowScanner) (model.EvaluationEvent, error) {
	var (
		e     model.EvaluationEvent
		color string
		ts    int64
	)
	if err := r.Scan(&e.ID, &e.StudentID, &e.CompetencyCode, &color, &ts, &e.AuthorID, &e.Comment, &e.AssignmentKey); err != nil {
		return model.EvaluationEvent{}, err
	}
	e.Color = model.ColorLevel(color)
	e.Timestamp = time.Unix(0, ts).UTC()
	return e, nil
}

func (s *SQLStore) queryEvaluations(ctx context.Context, query string, args ...any) ([]model.EvaluationEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.EvaluationEvent{}
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListEvaluations implements Store.
func (s *SQLStore) ListEvaluations(ctx context.Context, studentID string) ([]model.EvaluationEvent, error) {
	defer observeQuery(time.Now())

	return s.queryEvaluations(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations WHERE student_id=$1 ORDER BY ts, id`, studentID)
}

// ListClassEvaluations implements Store.
func (s *SQLStore) ListClassEvaluations(ctx context.Context, classID string) (map[string][]model.EvaluationEvent, error) {
	defer observeQuery(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT student_id FROM enrollments WHERE class_id=$1`, classID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]model.EvaluationEvent)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		out[id] = []model.EvaluationEvent{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	events, err := s.queryEvaluations(ctx, `
		SELECT e.id, e.student_id, e.competency_code, e.color, e.ts, e.author_id, e.comment, e.assignment_key
		FROM evaluations e JOIN enrollments c ON c.student_id = e.student_id
		WHERE c.class_id=$1
		ORDER BY e.ts, e.id`, classID)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		out[e.StudentID] = append(out[e.StudentID], e)
	}
	return out, nil
}

// GetEvaluation implements Store.
func (s *SQLStore) GetEvaluation(ctx context.Context, id string) (model.EvaluationEvent, error) {
	defer observeQuery(time.Now())

	return s.get(ctx, s.db.QueryRowContext(ctx, `SELECT `+evaluationColumns+` FROM evaluations WHERE id=$1`, id))
}

func (s *SQLStore) get(ctx context.Context, row *sql.Row) (model.EvaluationEvent, error) {
	e, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.EvaluationEvent{}, ErrNotFound
	}
	return e, err
}

// CreateEvaluation implements Store.
func (s *SQLStore) CreateEvaluation(ctx context.Context, e model.EvaluationEvent) (model.EvaluationEvent, error) {
	defer observeUpdate(time.Now())

	if err := validateEvent(e); err != nil {
		return model.EvaluationEvent{}, err
	}
	if e.ID == "" {
		e.ID = s.opts.newID()
	}
	e.Timestamp = s.opts.stamp(e.Timestamp)
	_, err := s.db.ExecContext(ctx, `INSERT INTO evaluations (`+evaluationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.StudentID, e.CompetencyCode, string(e.Color), e.Timestamp.UnixNano(), e.AuthorID, e.Comment, e.AssignmentKey)
	if err != nil {
		return model.EvaluationEvent{}, fmt.Errorf("insert evaluation: %w", err)
	}
	s.refreshCount(ctx)
	return e, nil
}

// UpdateEvaluation implements Store. The guard check and the write happen in
// one transaction, and the UPDATE itself re-checks the observed key.
func (s *SQLStore) UpdateEvaluation(ctx context.Context, id string, patch model.EvaluationPatch) (out model.EvaluationEvent, err error) {
	defer observeUpdate(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.EvaluationEvent{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := s.get(ctx, tx.QueryRowContext(ctx, `SELECT `+evaluationColumns+` FROM evaluations WHERE id=$1`, id))
	if err != nil {
		return model.EvaluationEvent{}, err
	}
	if !patch.Allows(current) {
		metrics.RecordErrorByComponent("repository", "conflict")
		return model.EvaluationEvent{}, ErrConflict
	}

	next := s.opts.stampPatch(patch).Apply(current)
	res, err := tx.ExecContext(ctx, `UPDATE evaluations
		SET color=$1, ts=$2, comment=$3, assignment_key=$4
		WHERE id=$5 AND assignment_key=$6`,
		string(next.Color), next.Timestamp.UnixNano(), next.Comment, next.AssignmentKey, id, current.AssignmentKey)
	if err != nil {
		return model.EvaluationEvent{}, fmt.Errorf("update evaluation: %w", err)
	}
	if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
		err = ErrConflict
		return model.EvaluationEvent{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.EvaluationEvent{}, err
	}
	return next, nil
}

// DeleteEvaluation implements Store.
func (s *SQLStore) DeleteEvaluation(ctx context.Context, id string) error {
	defer observeUpdate(time.Now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	s.refreshCount(ctx)
	return nil
}

// ListManualOverrides implements Store.
func (s *SQLStore) ListManualOverrides(ctx context.Context, studentID string) ([]model.ManualOverride, error) {
	defer observeQuery(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT student_id, competency_code, color, ts, author_id
		FROM overrides WHERE student_id=$1 ORDER BY competency_code`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ManualOverride
	for rows.Next() {
		var (
			o     model.ManualOverride
			color string
			ts    int64
		)
		if err := rows.Scan(&o.StudentID, &o.CompetencyCode, &color, &ts, &o.AuthorID); err != nil {
			return nil, err
		}
		o.Color = model.ColorLevel(color)
		o.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpsertManualOverride implements Store.
func (s *SQLStore) UpsertManualOverride(ctx context.Context, o model.ManualOverride) error {
	defer observeUpdate(time.Now())

	if err := validateOverride(o); err != nil {
		return err
	}
	o.Timestamp = s.opts.stamp(o.Timestamp)
	_, err := s.db.ExecContext(ctx, `INSERT INTO overrides (student_id, competency_code, color, ts, author_id)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (student_id, competency_code)
		DO UPDATE SET color=EXCLUDED.color, ts=EXCLUDED.ts, author_id=EXCLUDED.author_id`,
		o.StudentID, o.CompetencyCode, string(o.Color), o.Timestamp.UnixNano(), o.AuthorID)
	return err
}

// EnrollStudent implements Store.
func (s *SQLStore) EnrollStudent(ctx context.Context, classID, studentID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO enrollments (class_id, student_id) VALUES ($1,$2)
		ON CONFLICT (class_id, student_id) DO NOTHING`, classID, studentID)
	return err
}

// Stats implements Store.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM evaluations),
		(SELECT COUNT(*) FROM overrides),
		(SELECT COUNT(*) FROM (
			SELECT student_id FROM evaluations UNION SELECT student_id FROM enrollments
		) AS s),
		(SELECT COUNT(DISTINCT class_id) FROM enrollments)`).
		Scan(&st.Evaluations, &st.Overrides, &st.Students, &st.Classes)
	return st, err
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) refreshCount(ctx context.Context) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evaluations`).Scan(&n); err == nil {
		metrics.UpdateRepositoryRecordsTotal(n)
	}
}
