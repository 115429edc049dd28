package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bookloop/bookloop-api/internal/domain/audit"
	"github.com/bookloop/bookloop-api/internal/domain/credit"
	"github.com/bookloop/bookloop-api/internal/pkg/database"
)

// Store is the persistence port of the adjudicator.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetReport(ctx context.Context, id uuid.UUID) (*Report, error)
	ListSignals(ctx context.Context, reportID uuid.UUID) ([]*StoredSignal, error)
	ListByReporter(ctx context.Context, reporterID uuid.UUID, f ListFilter) ([]*Report, int, error)
	ListByReported(ctx context.Context, reportedID uuid.UUID, f ListFilter) ([]*Report, int, error)
	ListPendingAppeals(ctx context.Context, f ListFilter) ([]*Report, int, error)
	GetTrustScore(ctx context.Context, userID uuid.UUID) (*TrustScore, error)
}

// Tx groups the operations of one submission, appeal or resolution.
type Tx interface {
	// LockTrustScore returns the reporter's row, creating the default first.
	LockTrustScore(ctx context.Context, userID uuid.UUID, now time.Time) (*TrustScore, error)
	SaveTrustScore(ctx context.Context, t *TrustScore) error

	// LockSubmission serializes submissions sharing key until commit.
	LockSubmission(ctx context.Context, key string) error
	CountReportsBy(ctx context.Context, reporterID uuid.UUID, since time.Time) (int, error)
	FindDuplicate(ctx context.Context, key duplicateKey, since time.Time) (uuid.UUID, error)
	HistoryAgainst(ctx context.Context, reportedID uuid.UUID, since time.Time) (HistoryStats, error)
	ClusterInChat(ctx context.Context, reportedID, chatID uuid.UUID, since time.Time) (ClusterStats, error)

	CreateReport(ctx context.Context, r *Report) error
	CreateSignals(ctx context.Context, signals []*StoredSignal) error
	LockReport(ctx context.Context, id uuid.UUID) (*Report, error)
	UpdateReview(ctx context.Context, r *Report) error

	Ledger() Ledger
	Audit(ctx context.Context, e *audit.Entry) error
}

const reportColumns = `
	id, chat_id, reporter_id, reported_id, message_id, reason, description,
	confidence_score, signal_count, auto_resolved, status, penalty_applied,
	appeal_status, appeal_reason, appeal_date, appeal_outcome, created_at, updated_at
`

const trustColumns = `
	user_id, trust_score, total_reports, valid_reports, false_reports,
	is_flagged, cooldown_until, created_at, updated_at
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
			tx:     tx,
			ledger: credit.NewLedger(tx),
			audit:  audit.NewRepository(tx),
		})
	})
}

func (s *PostgresStore) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	return getReport(ctx, s.db, `SELECT `+reportColumns+` FROM chat_reports WHERE id = $1`, id)
}

func (s *PostgresStore) ListSignals(ctx context.Context, reportID uuid.UUID) ([]*StoredSignal, error) {
	items := make([]*StoredSignal, 0)
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, report_id, signal_type, signal_weight, COALESCE(signal_data, '{}'::jsonb) AS signal_data, created_at
		FROM report_signals
		WHERE report_id = $1
		ORDER BY created_at, id
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list report signals: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListByReporter(ctx context.Context, reporterID uuid.UUID, f ListFilter) ([]*Report, int, error) {
	return s.list(ctx, `reporter_id = $1`, f, reporterID)
}

func (s *PostgresStore) ListByReported(ctx context.Context, reportedID uuid.UUID, f ListFilter) ([]*Report, int, error) {
	return s.list(ctx, `reported_id = $1`, f, reportedID)
}

func (s *PostgresStore) ListPendingAppeals(ctx context.Context, f ListFilter) ([]*Report, int, error) {
	return s.list(ctx, `appeal_status = 'pending'`, f)
}

func (s *PostgresStore) list(ctx context.Context, where string, f ListFilter, args ...interface{}) ([]*Report, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM chat_reports WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM chat_reports WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		reportColumns, where, len(args)+1, len(args)+2)
	reports := make([]*Report, 0)
	if err := s.db.SelectContext(ctx, &reports, query, append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	return reports, total, nil
}

// GetTrustScore returns nil when the user has never reported anyone.
func (s *PostgresStore) GetTrustScore(ctx context.Context, userID uuid.UUID) (*TrustScore, error) {
	var t TrustScore
	err := s.db.GetContext(ctx, &t, `SELECT `+trustColumns+` FROM reporter_trust_scores WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get trust score: %w", err)
	}
	return &t, nil
}

func getReport(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*Report, error) {
	var r Report
	if err := sqlx.GetContext(ctx, q, &r, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &r, nil
}

type pgTx struct {
	tx     *sqlx.Tx
	ledger *credit.Ledger
	audit  *audit.Repository
}

func (t *pgTx) LockTrustScore(ctx context.Context, userID uuid.UUID, now time.Time) (*TrustScore, error) {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reporter_trust_scores (user_id, trust_score, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, DefaultTrustScore, now)
	if err != nil {
		return nil, fmt.Errorf("ensure trust score: %w", err)
	}

	var ts TrustScore
	if err := t.tx.GetContext(ctx, &ts, `SELECT `+trustColumns+` FROM reporter_trust_scores WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
		return nil, fmt.Errorf("lock trust score: %w", err)
	}
	return &ts, nil
}

func (t *pgTx) SaveTrustScore(ctx context.Context, ts *TrustScore) error {
	_, err := t.tx.NamedExecContext(ctx, `
		UPDATE reporter_trust_scores
		SET trust_score = :trust_score,
			total_reports = :total_reports,
			valid_reports = :valid_reports,
			false_reports = :false_reports,
			is_flagged = :is_flagged,
			cooldown_until = :cooldown_until,
			updated_at = :updated_at
		WHERE user_id = :user_id
	`, ts)
	if err != nil {
		return fmt.Errorf("save trust score: %w", err)
	}
	return nil
}

func (t *pgTx) LockSubmission(ctx context.Context, key string) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("lock submission: %w", err)
	}
	return nil
}

func (t *pgTx) CountReportsBy(ctx context.Context, reporterID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM chat_reports WHERE reporter_id = $1 AND created_at > $2`, reporterID, since)
	if err != nil {
		return 0, fmt.Errorf("count reports by reporter: %w", err)
	}
	return n, nil
}

func (t *pgTx) FindDuplicate(ctx context.Context, key duplicateKey, since time.Time) (uuid.UUID, error) {
	var id uuid.UUID
	err := t.tx.GetContext(ctx, &id, `
		SELECT id FROM chat_reports
		WHERE reporter_id = $1 AND reported_id = $2 AND chat_id = $3
			AND message_id IS NOT DISTINCT FROM $4::uuid
			AND reason = $5
			AND created_at > $6
			AND status <> 'closed'
		ORDER BY created_at DESC
		LIMIT 1
	`, key.ReporterID, key.ReportedID, key.ChatID, key.MessageID, string(key.Reason), since)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("find duplicate report: %w", err)
	}
	return id, nil
}

func (t *pgTx) HistoryAgainst(ctx context.Context, reportedID uuid.UUID, since time.Time) (HistoryStats, error) {
	var h HistoryStats
	err := t.tx.GetContext(ctx, &h, `
		SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE auto_resolved) AS auto_resolved
		FROM chat_reports
		WHERE reported_id = $1 AND created_at > $2
	`, reportedID, since)
	if err != nil {
		return HistoryStats{}, fmt.Errorf("report history: %w", err)
	}
	return h, nil
}

func (t *pgTx) ClusterInChat(ctx context.Context, reportedID, chatID uuid.UUID, since time.Time) (ClusterStats, error) {
	var c ClusterStats
	err := t.tx.GetContext(ctx, &c, `
		SELECT COUNT(*) AS prior_reports, COUNT(DISTINCT reporter_id) AS distinct_reporters
		FROM chat_reports
		WHERE reported_id = $1 AND chat_id = $2 AND created_at > $3
	`, reportedID, chatID, since)
	if err != nil {
		return ClusterStats{}, fmt.Errorf("report cluster: %w", err)
	}
	return c, nil
}

func (t *pgTx) CreateReport(ctx context.Context, r *Report) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO chat_reports (`+reportColumns+`)
		VALUES (
			:id, :chat_id, :reporter_id, :reported_id, :message_id, :reason, :description,
			:confidence_score, :signal_count, :auto_resolved, :status, :penalty_applied,
			:appeal_status, :appeal_reason, :appeal_date, :appeal_outcome, :created_at, :updated_at
		)
	`, r)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (t *pgTx) CreateSignals(ctx context.Context, signals []*StoredSignal) error {
	for _, s := range signals {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO report_signals (id, report_id, signal_type, signal_weight, signal_data, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.ID, s.ReportID, string(s.SignalType), s.SignalWeight, []byte(s.SignalData), s.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert report signal: %w", err)
		}
	}
	return nil
}

func (t *pgTx) LockReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	return getReport(ctx, t.tx, `SELECT `+reportColumns+` FROM chat_reports WHERE id = $1 FOR UPDATE`, id)
}

// UpdateReview writes the mutable review fields. Score fields are never updated.
func (t *pgTx) UpdateReview(ctx context.Context, r *Report) error {
	_, err := t.tx.NamedExecContext(ctx, `
		UPDATE chat_reports
		SET status = :status,
			appeal_status = :appeal_status,
			appeal_reason = :appeal_reason,
			appeal_date = :appeal_date,
			appeal_outcome = :appeal_outcome,
			updated_at = :updated_at
		WHERE id = :id
	`, r)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return nil
}

func (t *pgTx) Ledger() Ledger {
	return t.ledger
}

func (t *pgTx) Audit(ctx context.Context, e *audit.Entry) error {
	return t.audit.Insert(ctx, e)
}
