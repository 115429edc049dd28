package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store reads and writes lending transactions. The catalog owns these tables;
// this package only touches the columns the cancellation flow needs.
type Store struct {
	db sqlx.ExtContext
}

func NewStore(db sqlx.ExtContext) *Store {
	return &Store{db: db}
}

const selectTransaction = `
	SELECT t.id, t.book_id, t.borrower_id, t.lender_id, t.status, t.chat_id,
		b.minimum_credits, b.title AS book_title
	FROM transactions t
	JOIN books b ON b.id = t.book_id
	WHERE t.id = $1
`

// Get loads a transaction. Missing rows return ErrTransactionNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.get(ctx, selectTransaction, id)
}

// GetForUpdate loads a transaction and locks its row until the surrounding
// database transaction ends.
func (s *Store) GetForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.get(ctx, selectTransaction+` FOR UPDATE OF t`, id)
}

func (s *Store) get(ctx context.Context, query string, id uuid.UUID) (*Transaction, error) {
	var t Transaction
	if err := sqlx.GetContext(ctx, s.db, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("set transaction status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (s *Store) SetBookAvailable(ctx context.Context, bookID uuid.UUID, available bool) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE books SET is_available = $2 WHERE id = $1`, bookID, available); err != nil {
		return fmt.Errorf("set book availability: %w", err)
	}
	return nil
}
