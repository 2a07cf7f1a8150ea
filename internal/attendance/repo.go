package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"schoolattend/internal/store"
)

// Query selects records by scope and date range. Empty fields are ignored.
type Query struct {
	StudentID string
	ClassID   string
	SubjectID string
	TeacherID string
	Status    Status
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// Repository persists attendance records in Postgres.
type Repository struct {
	db store.Querier
}

// NewRepository creates a repo over db, which may be a live transaction.
func NewRepository(db store.Querier) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx store.Querier) *Repository {
	return &Repository{db: tx}
}

const recordColumns = "id, student_id, class_id, subject_id, teacher_id, att_date, session, status, marked_by, marked_at, last_modified_at"

// Insert writes a new record, filling id and timestamps when zero.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MarkedAt.IsZero() {
		rec.MarkedAt = time.Now().UTC()
	}
	rec.LastModifiedAt = rec.MarkedAt
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, rec.ID, rec.StudentID, rec.ClassID, rec.SubjectID, rec.TeacherID, rec.Date, rec.Session, string(rec.Status), rec.MarkedBy, rec.MarkedAt, rec.LastModifiedAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get returns a single record by id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound("attendance record %s not found", id)
	}
	return rec, err
}

// UpdateStatus rewrites the status of an existing record.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status, modifiedBy string, modifiedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET status = $2, marked_by = $3, last_modified_at = $4
		WHERE id = $1
	`, id, string(status), modifiedBy, modifiedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("attendance record %s not found", id)
	}
	return nil
}

// Delete removes a record by id. The paired audit entry keeps its history.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("attendance record %s not found", id)
	}
	return nil
}

// List returns records matching q, newest date first.
func (r *Repository) List(ctx context.Context, q Query) ([]Record, error) {
	if q.Limit <= 0 {
		q.Limit = 500
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}
	add := func(cond string, val any) {
		clauses = append(clauses, fmt.Sprintf(cond, len(args)+1))
		args = append(args, val)
	}
	if q.StudentID != "" {
		add("student_id = $%d", q.StudentID)
	}
	if q.ClassID != "" {
		add("class_id = $%d", q.ClassID)
	}
	if q.SubjectID != "" {
		add("subject_id = $%d", q.SubjectID)
	}
	if q.TeacherID != "" {
		add("teacher_id = $%d", q.TeacherID)
	}
	if q.Status != "" {
		add("status = $%d", string(q.Status))
	}
	if !q.From.IsZero() {
		add("att_date >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("att_date <= $%d", q.To)
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += fmt.Sprintf(" ORDER BY att_date DESC, session LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &rec.SubjectID, &rec.TeacherID,
		&rec.Date, &rec.Session, &rec.Status, &rec.MarkedBy, &rec.MarkedAt, &rec.LastModifiedAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
