package cancellation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bookloop/bookloop-api/internal/domain/audit"
	"github.com/bookloop/bookloop-api/internal/domain/transaction"
	"github.com/bookloop/bookloop-api/internal/pkg/database"
)

// Store is the persistence port of the negotiator. Mutations happen inside
// RunInTx; the plain methods are read-only.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	GetLatestByTransaction(ctx context.Context, transactionID uuid.UUID) (*Request, error)
	ListHistory(ctx context.Context, cancellationID uuid.UUID) ([]*History, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
}

// Tx groups the operations that must share one database transaction.
// Mark* methods are conditional on the row still being pending and return
// false when another path got there first.
type Tx interface {
	LockTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	SetTransactionStatus(ctx context.Context, id uuid.UUID, status transaction.Status) error
	SetBookAvailable(ctx context.Context, bookID uuid.UUID, available bool) error

	HasActiveRequest(ctx context.Context, transactionID uuid.UUID) (bool, error)
	CreateRequest(ctx context.Context, r *Request) error
	LockRequest(ctx context.Context, id uuid.UUID) (*Request, error)
	LockExpired(ctx context.Context, now time.Time, limit int) ([]*Request, error)

	MarkAnswered(ctx context.Context, id uuid.UUID, consent bool, status Status, at time.Time, auto bool) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	AppendHistory(ctx context.Context, h *History) error
	Audit(ctx context.Context, e *audit.Entry) error
}

const requestColumns = `
	id, transaction_id, initiator_id, other_party_id, reason, description,
	refund_type, refund_amount, status, previous_status, other_confirmed,
	other_response_date, auto_resolved, expires_at, processed_at, created_at
`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(ctx, &pgTx{
			tx:    tx,
			txs:   transaction.NewStore(tx),
			audit: audit.NewRepository(tx),
		})
	})
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return getRequest(ctx, s.db, `SELECT `+requestColumns+` FROM cancellation_requests WHERE id = $1`, id)
}

func (s *PostgresStore) GetLatestByTransaction(ctx context.Context, transactionID uuid.UUID) (*Request, error) {
	return getRequest(ctx, s.db, `
		SELECT `+requestColumns+` FROM cancellation_requests
		WHERE transaction_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, transactionID)
}

func (s *PostgresStore) ListHistory(ctx context.Context, cancellationID uuid.UUID) ([]*History, error) {
	items := make([]*History, 0)
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, cancellation_id, action, actor_id, COALESCE(details, '{}'::jsonb) AS details, created_at
		FROM cancellation_history
		WHERE cancellation_id = $1
		ORDER BY created_at, id
	`, cancellationID)
	if err != nil {
		return nil, fmt.Errorf("list cancellation history: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return transaction.NewStore(s.db).Get(ctx, id)
}

func getRequest(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*Request, error) {
	var r Request
	if err := sqlx.GetContext(ctx, q, &r, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCancellationNotFound
		}
		return nil, fmt.Errorf("get cancellation request: %w", err)
	}
	return &r, nil
}

type pgTx struct {
	tx    *sqlx.Tx
	txs   *transaction.Store
	audit *audit.Repository
}

func (t *pgTx) LockTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return t.txs.GetForUpdate(ctx, id)
}

func (t *pgTx) SetTransactionStatus(ctx context.Context, id uuid.UUID, status transaction.Status) error {
	return t.txs.SetStatus(ctx, id, status)
}

func (t *pgTx) SetBookAvailable(ctx context.Context, bookID uuid.UUID, available bool) error {
	return t.txs.SetBookAvailable(ctx, bookID, available)
}

func (t *pgTx) HasActiveRequest(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM cancellation_requests
			WHERE transaction_id = $1 AND status IN ('pending', 'consented')
		)
	`, transactionID)
	if err != nil {
		return false, fmt.Errorf("check active cancellation: %w", err)
	}
	return exists, nil
}

func (t *pgTx) CreateRequest(ctx context.Context, r *Request) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO cancellation_requests (`+requestColumns+`)
		VALUES (
			:id, :transaction_id, :initiator_id, :other_party_id, :reason, :description,
			:refund_type, :refund_amount, :status, :previous_status, :other_confirmed,
			:other_response_date, :auto_resolved, :expires_at, :processed_at, :created_at
		)
	`, r)
	if err != nil {
		var pqErr *pq.Error
		// uq_cancellation_active: one pending or consented request per transaction
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrActiveRequestExists
		}
		return fmt.Errorf("insert cancellation request: %w", err)
	}
	return nil
}

func (t *pgTx) LockRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	return getRequest(ctx, t.tx, `SELECT `+requestColumns+` FROM cancellation_requests WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) LockExpired(ctx context.Context, now time.Time, limit int) ([]*Request, error) {
	items := make([]*Request, 0)
	err := t.tx.SelectContext(ctx, &items, `
		SELECT `+requestColumns+` FROM cancellation_requests
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select expired cancellations: %w", err)
	}
	return items, nil
}

func (t *pgTx) MarkAnswered(ctx context.Context, id uuid.UUID, consent bool, status Status, at time.Time, auto bool) (bool, error) {
	return t.casPending(ctx, `
		UPDATE cancellation_requests
		SET other_confirmed = $2, status = $3, other_response_date = $4, auto_resolved = $5
		WHERE id = $1 AND status = 'pending'
	`, id, consent, string(status), at, auto)
}

func (t *pgTx) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return t.casPending(ctx, `
		UPDATE cancellation_requests
		SET status = 'expired', auto_resolved = TRUE, processed_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, at)
}

func (t *pgTx) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE cancellation_requests
		SET status = 'processed', processed_at = $2
		WHERE id = $1 AND status = 'consented'
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark cancellation processed: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *pgTx) casPending(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update cancellation request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *pgTx) AppendHistory(ctx context.Context, h *History) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cancellation_history (id, cancellation_id, action, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, h.ID, h.CancellationID, string(h.Action), h.ActorID, []byte(h.Details), h.CreatedAt)
	if err != nil {
		return fmt.Errorf("append cancellation history: %w", err)
	}
	return nil
}

func (t *pgTx) Audit(ctx context.Context, e *audit.Entry) error {
	return t.audit.Insert(ctx, e)
}
