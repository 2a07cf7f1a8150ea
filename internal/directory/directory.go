package directory

import (
	"context"
	"fmt"

	"schoolattend/internal/store"
)

// Student is the subset of profile data analytics needs for labels.
type Student struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ClassID   string `json:"class_id"`
	ClassName string `json:"class_name"`
}

// Repository reads the student directory. It never writes: profile CRUD is
// owned elsewhere.
type Repository struct {
	db store.Querier
}

func NewRepository(db store.Querier) *Repository {
	return &Repository{db: db}
}

// Students resolves the given ids to profile data, keyed by id. Unknown ids
// are simply absent from the result.
func (r *Repository) Students(ctx context.Context, ids []string) (map[string]Student, error) {
	out := make(map[string]Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := ""
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, class_id, class_name
		FROM students WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.ClassID, &s.ClassName); err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}
