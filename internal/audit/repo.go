package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"schoolattend/internal/store"
)

// Repository persists the audit trail in Postgres.
type Repository struct {
	db store.Querier
}

// NewRepository creates a repo over db, which may be a live transaction.
func NewRepository(db store.Querier) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx so an entry commits or rolls back
// together with the mutation it describes.
func (r *Repository) WithTx(tx store.Querier) *Repository {
	return &Repository{db: tx}
}

// Insert appends one entry to the trail. The id and timestamp are filled in
// when the caller left them zero.
func (r *Repository) Insert(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.PerformedAt.IsZero() {
		e.PerformedAt = time.Now().UTC()
	}
	oldJSON, err := marshalSnapshot(e.OldValues)
	if err != nil {
		return Entry{}, err
	}
	newJSON, err := marshalSnapshot(e.NewValues)
	if err != nil {
		return Entry{}, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, record_id, action, performed_by, performed_at, old_values, new_values, reason, batch_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, e.RecordID, string(e.Action), e.PerformedBy, e.PerformedAt, oldJSON, newJSON, nullable(e.Reason), nullable(e.BatchID))
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// normalize clamps pagination to the package bounds.
func (f Filter) normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// filterSQL builds the WHERE clause and its $n arguments for f. Search spans
// action, actor, record id and reason with one case-insensitive pattern.
func filterSQL(f Filter) (string, []any) {
	where := ""
	args := []any{}
	clauses := []string{}
	if !f.From.IsZero() {
		clauses = append(clauses, fmt.Sprintf("performed_at >= $%d", len(args)+1))
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		clauses = append(clauses, fmt.Sprintf("performed_at <= $%d", len(args)+1))
		args = append(args, f.To)
	}
	if f.Actor != "" {
		clauses = append(clauses, fmt.Sprintf("performed_by = $%d", len(args)+1))
		args = append(args, f.Actor)
	}
	if f.Action != "" {
		clauses = append(clauses, fmt.Sprintf("action = $%d", len(args)+1))
		args = append(args, string(f.Action))
	}
	if f.Search != "" {
		n := len(args) + 1
		clauses = append(clauses, fmt.Sprintf(
			"(action ILIKE $%d OR performed_by ILIKE $%d OR record_id ILIKE $%d OR COALESCE(reason,'') ILIKE $%d)", n, n, n, n))
		args = append(args, "%"+f.Search+"%")
	}
	for i, c := range clauses {
		if i == 0 {
			where = " WHERE " + c
		} else {
			where += " AND " + c
		}
	}
	return where, args
}

// List returns a page of entries matching f, newest first, plus the total
// match count for pagination.
func (r *Repository) List(ctx context.Context, f Filter) ([]Entry, int64, error) {
	f = f.normalize()
	where, args := filterSQL(f)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, record_id, action, performed_by, performed_at, old_values, new_values, reason, batch_id FROM audit_log` +
		where + fmt.Sprintf(" ORDER BY performed_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                Entry
			oldJSON, newJSON []byte
			reason, batchID  *string
		)
		if err := rows.Scan(&e.ID, &e.RecordID, &e.Action, &e.PerformedBy, &e.PerformedAt, &oldJSON, &newJSON, &reason, &batchID); err != nil {
			return nil, 0, err
		}
		if e.OldValues, err = unmarshalSnapshot(oldJSON); err != nil {
			return nil, 0, err
		}
		if e.NewValues, err = unmarshalSnapshot(newJSON); err != nil {
			return nil, 0, err
		}
		if reason != nil {
			e.Reason = *reason
		}
		if batchID != nil {
			e.BatchID = *batchID
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func unmarshalSnapshot(b []byte) (*Snapshot, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
