package audit

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Repository writes and lists audit entries. Bind it to a *sqlx.Tx so the
// entry commits or rolls back together with the change it records.
type Repository struct {
	db sqlx.ExtContext
}

func NewRepository(db sqlx.ExtContext) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if f.EntityType != "" {
		args = append(args, f.EntityType)
		where += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if f.EntityID != nil {
		args = append(args, *f.EntityID)
		where += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		where += fmt.Sprintf(" AND action = $%d", len(args))
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM audit_logs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, actor_id, action, entity_type, entity_id, details, created_at FROM audit_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)

	entries := make([]*Entry, 0)
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return entries, total, nil
}
