package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/domain/audit"
	"github.com/bookloop/bookloop-api/internal/domain/chat"
	"github.com/bookloop/bookloop-api/internal/domain/notification"
)

// ChatAccess checks report targets against the chat store.
type ChatAccess interface {
	RequireMember(ctx context.Context, chatID, userID uuid.UUID) error
	MessageInChat(ctx context.Context, chatID, messageID uuid.UUID) (*chat.Message, error)
}

// Notifier delivers in-app notifications without failing the caller.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string, category notification.Category, relatedID uuid.UUID)
}

// Service adjudicates chat reports and their appeals.
type Service struct {
	store    Store
	chats    ChatAccess
	notifier Notifier
	now      func() time.Time
}

// NewService creates the adjudicator. notifier may be nil.
func NewService(store Store, chats ChatAccess, notifier Notifier) *Service {
	return &Service{
		store:    store,
		chats:    chats,
		notifier: notifier,
		now:      time.Now,
	}
}

// SubmitInput is a report as filed by the reporter.
type SubmitInput struct {
	ChatID      uuid.UUID
	ReportedID  uuid.UUID
	MessageID   uuid.NullUUID
	Reason      Reason
	Description string
}

// SubmitResult is the adjudication outcome of one report.
type SubmitResult struct {
	ReportID       uuid.UUID
	AutoResolved   bool
	Confidence     float64
	SignalCount    int
	PenaltyApplied int
}

type notice struct {
	userID    uuid.UUID
	title     string
	body      string
	category  notification.Category
	relatedID uuid.UUID
}

func (s *Service) flush(ctx context.Context, notices []notice) {
	if s.notifier == nil {
		return
	}
	for _, n := range notices {
		s.notifier.Notify(ctx, n.userID, n.title, n.body, n.category, n.relatedID)
	}
}

// Submit files a report, scores it and, when the evidence is strong enough,
// penalizes the reported user in the same database transaction.
func (s *Service) Submit(ctx context.Context, reporterID uuid.UUID, in SubmitInput) (*SubmitResult, error) {
	if reporterID == in.ReportedID {
		return nil, ErrSelfReport
	}

	if err := s.chats.RequireMember(ctx, in.ChatID, reporterID); err != nil {
		return nil, err
	}
	if err := s.chats.RequireMember(ctx, in.ChatID, in.ReportedID); err != nil {
		if errors.Is(err, chat.ErrNotRoomMember) {
			return nil, ErrReportedNotInChat
		}
		return nil, err
	}
	var messageText *string
	if in.MessageID.Valid {
		msg, err := s.chats.MessageInChat(ctx, in.ChatID, in.MessageID.UUID)
		if err != nil {
			return nil, err
		}
		// Message signals must come from the reported user's own words.
		if !msg.SenderID.Valid || msg.SenderID.UUID != in.ReportedID {
			return nil, ErrMessageNotByReported
		}
		messageText = &msg.Content
	}

	var (
		result  *SubmitResult
		notices []notice
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		trust, err := tx.LockTrustScore(ctx, reporterID, now)
		if err != nil {
			return err
		}
		if trust.IsInCooldown(now) {
			return ErrReporterCooldown.WithMeta("cooldown_until", trust.CooldownUntil.Format(time.RFC3339))
		}

		recent, err := tx.CountReportsBy(ctx, reporterID, now.Add(-RateLimitWindow))
		if err != nil {
			return err
		}
		if recent >= MaxReportsPerWindow {
			return ErrReportRateLimit
		}

		key := duplicateKey{
			ReporterID: reporterID,
			ReportedID: in.ReportedID,
			ChatID:     in.ChatID,
			MessageID:  in.MessageID,
			Reason:     in.Reason,
		}
		if err := tx.LockSubmission(ctx, key.String()); err != nil {
			return err
		}
		existing, err := tx.FindDuplicate(ctx, key, now.Add(-DuplicateWindow))
		if err != nil {
			return err
		}
		if existing != uuid.Nil {
			return ErrDuplicateReport.WithMeta("existing_report_id", existing.String())
		}

		history, err := tx.HistoryAgainst(ctx, in.ReportedID, now.Add(-HistoryWindow))
		if err != nil {
			return err
		}
		cluster, err := tx.ClusterInChat(ctx, in.ReportedID, in.ChatID, now.Add(-ClusterWindow))
		if err != nil {
			return err
		}

		signals := CollectSignals(ReportContext{
			MessageText: messageText,
			History:     history,
			Cluster:     cluster,
		})
		confidence := Score(signals, trust.TrustScore)
		auto := ShouldAutoResolve(confidence, len(signals))

		report := &Report{
			ID:              uuid.New(),
			ChatID:          in.ChatID,
			ReporterID:      reporterID,
			ReportedID:      in.ReportedID,
			MessageID:       in.MessageID,
			Reason:          in.Reason,
			Description:     sql.NullString{String: in.Description, Valid: in.Description != ""},
			ConfidenceScore: confidence,
			SignalCount:     len(signals),
			AutoResolved:    auto,
			Status:          StatusPending,
			AppealStatus:    AppealNone,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		var penalty *Penalty
		if auto {
			report.Status = StatusChecked
			penalty, err = ApplyPenalty(ctx, tx.Ledger(), in.ReportedID, in.Reason, report.ID)
			if err != nil {
				return err
			}
			report.PenaltyApplied = penalty.Applied
		}

		if err := tx.CreateReport(ctx, report); err != nil {
			return err
		}
		if err := tx.CreateSignals(ctx, storedSignals(report.ID, signals, now)); err != nil {
			return err
		}

		decision := map[string]any{
			"confidence":    confidence,
			"signal_count":  len(signals),
			"auto_resolved": auto,
			"trust_score":   trust.TrustScore,
		}
		if err := tx.Audit(ctx, audit.NewEntry(reporterID, audit.ActionReportSubmitted, audit.EntityChatReport, report.ID, decision, now)); err != nil {
			return err
		}
		if penalty != nil {
			details := map[string]any{
				"reason":      report.Reason,
				"nominal":     penalty.Nominal,
				"applied":     penalty.Applied,
				"old_balance": penalty.Balance.Old,
				"new_balance": penalty.Balance.New,
			}
			if err := tx.Audit(ctx, audit.NewEntry(uuid.Nil, audit.ActionReportPenalty, audit.EntityChatReport, report.ID, details, now)); err != nil {
				return err
			}
			notices = append(notices, notice{
				userID:    in.ReportedID,
				title:     "Penalty applied",
				body:      fmt.Sprintf("A %s report against you was confirmed and %d credits were deducted. You can appeal this decision.", report.Reason, penalty.Applied),
				category:  notification.CategoryReportPenalty,
				relatedID: report.ID,
			})
		}

		trust.RecordSubmission(auto, now)
		if err := tx.SaveTrustScore(ctx, trust); err != nil {
			return err
		}

		result = &SubmitResult{
			ReportID:       report.ID,
			AutoResolved:   auto,
			Confidence:     confidence,
			SignalCount:    len(signals),
			PenaltyApplied: report.PenaltyApplied,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.flush(ctx, notices)
	return result, nil
}

// Appeal records the reported user's objection. It does not reverse anything.
func (s *Service) Appeal(ctx context.Context, reportID, userID uuid.UUID, reason string) (*Report, error) {
	if len([]rune(reason)) < MinAppealReasonLength {
		return nil, ErrAppealReasonLength
	}

	var report *Report
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.LockReport(ctx, reportID)
		if err != nil {
			return err
		}
		if r.ReportedID != userID {
			return ErrNotReportedUser
		}
		if r.AppealStatus != AppealNone {
			return ErrAlreadyAppealed
		}

		now := s.now().UTC()
		r.AppealStatus = AppealPending
		r.AppealReason = sql.NullString{String: reason, Valid: true}
		r.AppealDate = sql.NullTime{Time: now, Valid: true}
		r.UpdatedAt = now
		if err := tx.UpdateReview(ctx, r); err != nil {
			return err
		}

		details := map[string]any{"appeal_reason": reason}
		if err := tx.Audit(ctx, audit.NewEntry(userID, audit.ActionReportAppealed, audit.EntityChatReport, r.ID, details, now)); err != nil {
			return err
		}
		report = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ResolveAppeal closes a pending appeal. Overturning refunds the penalty and
// counts the report against the reporter.
func (s *Service) ResolveAppeal(ctx context.Context, adminID, reportID uuid.UUID, overturn bool, note string) (*Report, error) {
	var (
		report  *Report
		notices []notice
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.LockReport(ctx, reportID)
		if err != nil {
			return err
		}
		if r.AppealStatus != AppealPending {
			return ErrAppealNotPending
		}

		now := s.now().UTC()
		outcome := AppealUpheld
		r.AppealStatus = AppealResolved
		r.UpdatedAt = now

		var refunded int
		if overturn {
			outcome = AppealOverturned
			r.Status = StatusClosed

			refunded, err = RefundPenalty(ctx, tx.Ledger(), r)
			if err != nil {
				return err
			}

			trust, err := tx.LockTrustScore(ctx, r.ReporterID, now)
			if err != nil {
				return err
			}
			trust.RecordFalseReport(now)
			if err := tx.SaveTrustScore(ctx, trust); err != nil {
				return err
			}
		}
		r.AppealOutcome = sql.NullString{String: string(outcome), Valid: true}

		if err := tx.UpdateReview(ctx, r); err != nil {
			return err
		}

		details := map[string]any{
			"outcome":  outcome,
			"refunded": refunded,
			"note":     note,
		}
		if err := tx.Audit(ctx, audit.NewEntry(adminID, audit.ActionAppealResolved, audit.EntityChatReport, r.ID, details, now)); err != nil {
			return err
		}

		reportedBody := "Your appeal was reviewed and the original decision stands."
		reporterBody := "A report you filed was reviewed on appeal and upheld."
		if overturn {
			reportedBody = fmt.Sprintf("Your appeal was accepted and %d credits were returned.", refunded)
			reporterBody = "A report you filed was overturned on appeal. Further false reports may limit your ability to report."
		}
		notices = append(notices,
			notice{userID: r.ReportedID, title: "Appeal resolved", body: reportedBody, category: notification.CategoryAppealResolved, relatedID: r.ID},
			notice{userID: r.ReporterID, title: "Report reviewed", body: reporterBody, category: notification.CategoryAppealResolved, relatedID: r.ID},
		)
		report = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.flush(ctx, notices)
	return report, nil
}

// ListMyReports returns reports filed by userID.
func (s *Service) ListMyReports(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Report, int, error) {
	return s.store.ListByReporter(ctx, userID, f)
}

// ListAgainstMe returns reports filed against userID.
func (s *Service) ListAgainstMe(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Report, int, error) {
	return s.store.ListByReported(ctx, userID, f)
}

// ListPendingAppeals returns appeals waiting for an admin.
func (s *Service) ListPendingAppeals(ctx context.Context, f ListFilter) ([]*Report, int, error) {
	return s.store.ListPendingAppeals(ctx, f)
}

// GetTrustScore returns the stored score or the default for a new reporter.
func (s *Service) GetTrustScore(ctx context.Context, userID uuid.UUID) (*TrustScore, error) {
	t, err := s.store.GetTrustScore(ctx, userID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return NewTrustScore(userID, s.now().UTC()), nil
	}
	return t, nil
}

// GetReportDetail returns a report with its signals.
func (s *Service) GetReportDetail(ctx context.Context, reportID uuid.UUID) (*Report, []*StoredSignal, error) {
	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	signals, err := s.store.ListSignals(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	return r, signals, nil
}
