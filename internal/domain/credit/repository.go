package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Ledger moves credits and records ledger rows. Bind it to a *sqlx.Tx to make
// the movement part of a larger unit of work; balance updates always lock the
// user row first.
type Ledger struct {
	db sqlx.ExtContext
}

func NewLedger(db sqlx.ExtContext) *Ledger {
	return &Ledger{db: db}
}

// Deduct removes up to amount credits, never taking the balance below zero.
func (l *Ledger) Deduct(ctx context.Context, userID uuid.UUID, amount int, meta TxMeta) (Balance, error) {
	if amount <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	return l.move(ctx, userID, -amount, TxTypePenalty, meta)
}

// Add credits a user. txType must be one of the known ledger types.
func (l *Ledger) Add(ctx context.Context, userID uuid.UUID, amount int, txType TxType, meta TxMeta) (Balance, error) {
	if amount <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	return l.move(ctx, userID, amount, txType, meta)
}

func (l *Ledger) move(ctx context.Context, userID uuid.UUID, delta int, txType TxType, meta TxMeta) (Balance, error) {
	if !txType.valid() {
		return Balance{}, ErrInvalidTxType
	}

	var old int
	err := sqlx.GetContext(ctx, l.db, &old, `SELECT credit_balance FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrUserNotFound
		}
		return Balance{}, fmt.Errorf("lock user row: %w", err)
	}

	next := old + delta
	if next < 0 {
		next = 0
	}

	if _, err := l.db.ExecContext(ctx, `UPDATE users SET credit_balance = $2 WHERE id = $1`, userID, next); err != nil {
		return Balance{}, fmt.Errorf("update user balance: %w", err)
	}

	bal := Balance{Old: old, New: next}
	if err := l.insertLedger(ctx, userID, bal, txType, meta); err != nil {
		return Balance{}, err
	}
	return bal, nil
}

func (l *Ledger) insertLedger(ctx context.Context, userID uuid.UUID, bal Balance, txType TxType, meta TxMeta) error {
	if strings.TrimSpace(meta.Description) == "" {
		meta.Description = "credit balance adjustment"
	}

	var entityType *string
	if meta.RelatedEntityType != "" {
		entityType = &meta.RelatedEntityType
	}
	entityID := uuid.NullUUID{UUID: meta.RelatedEntityID, Valid: meta.RelatedEntityID != uuid.Nil}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO credit_transactions (
			id, user_id, amount_delta, balance_before, balance_after, tx_type,
			related_entity_type, related_entity_id, description
		)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
	`, userID, bal.New-bal.Old, bal.Old, bal.New, string(txType), entityType, entityID, meta.Description)
	if err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	return nil
}

func (l *Ledger) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := sqlx.GetContext(ctx, l.db, &balance, `SELECT credit_balance FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// HasEntry reports whether a ledger row of txType already references the entity.
func (l *Ledger) HasEntry(ctx context.Context, txType TxType, entityType string, entityID uuid.UUID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, l.db, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM credit_transactions
			WHERE tx_type = $1 AND related_entity_type = $2 AND related_entity_id = $3
		)
	`, string(txType), entityType, entityID)
	if err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	return exists, nil
}

func (l *Ledger) ListTransactions(ctx context.Context, userID uuid.UUID, p Pagination) ([]CreditTransaction, int, error) {
	limit := p.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var total int
	if err := sqlx.GetContext(ctx, l.db, &total, `SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	transactions := make([]CreditTransaction, 0)
	err := sqlx.SelectContext(ctx, l.db, &transactions, `
		SELECT id, user_id, amount_delta, balance_before, balance_after, tx_type,
		       related_entity_type, related_entity_id, description, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, total, nil
}
