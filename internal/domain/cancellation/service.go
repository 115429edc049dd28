package cancellation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/domain/audit"
	"github.com/bookloop/bookloop-api/internal/domain/chat"
	"github.com/bookloop/bookloop-api/internal/domain/notification"
	"github.com/bookloop/bookloop-api/internal/domain/transaction"
	"github.com/bookloop/bookloop-api/internal/pkg/logger"
)

// DefaultWindow is how long the other party has to answer.
const DefaultWindow = 48 * time.Hour

// Service runs the two-party consent protocol for cancelling a transaction.
type Service struct {
	store     Store
	transport MessageTransport
	notifier  Notifier
	window    time.Duration
	now       func() time.Time
}

// NewService creates the negotiator. transport and notifier may be nil.
func NewService(store Store, transport MessageTransport, notifier Notifier, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		store:     store,
		transport: transport,
		notifier:  notifier,
		window:    window,
		now:       time.Now,
	}
}

// InitiateInput carries the initiator's choices.
type InitiateInput struct {
	TransactionID uuid.UUID
	Reason        Reason
	Description   string
	RefundType    RefundType
	RefundAmount  *int
}

// Initiate opens a cancellation request and moves the transaction to
// cancellation_pending.
func (s *Service) Initiate(ctx context.Context, initiatorID uuid.UUID, in InitiateInput) (*Request, error) {
	var (
		req *Request
		fx  effects
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		t, err := tx.LockTransaction(ctx, in.TransactionID)
		if err != nil {
			return err
		}
		if !t.IsParty(initiatorID) {
			return ErrNotTransactionParty
		}

		active, err := tx.HasActiveRequest(ctx, t.ID)
		if err != nil {
			return err
		}
		if active {
			return ErrActiveRequestExists
		}
		if !t.Status.Cancellable() {
			return ErrNotCancellable
		}

		refund, err := CalculateRefund(in.RefundType, t.MinimumCredits, in.RefundAmount)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		req = &Request{
			ID:             uuid.New(),
			TransactionID:  t.ID,
			InitiatorID:    initiatorID,
			OtherPartyID:   t.Counterpart(initiatorID),
			Reason:         in.Reason,
			Description:    in.Description,
			RefundType:     in.RefundType,
			RefundAmount:   refund,
			Status:         StatusPending,
			PreviousStatus: t.Status,
			ExpiresAt:      now.Add(s.window),
			CreatedAt:      now,
		}
		if err := tx.CreateRequest(ctx, req); err != nil {
			return err
		}
		if err := tx.SetTransactionStatus(ctx, t.ID, transaction.StatusCancellationPending); err != nil {
			return err
		}

		details := map[string]any{
			"reason":       req.Reason,
			"refundType":   req.RefundType,
			"refundAmount": req.RefundAmount,
		}
		if err := tx.AppendHistory(ctx, newHistory(req.ID, ActionInitiated, initiatorID, details, now)); err != nil {
			return err
		}
		if err := tx.Audit(ctx, audit.NewEntry(initiatorID, audit.ActionCancellationInitiate, audit.EntityCancellation, req.ID, details, now)); err != nil {
			return err
		}

		fx.notify(notice{
			userID:    req.OtherPartyID,
			title:     "Cancellation requested",
			body:      fmt.Sprintf("The other party wants to cancel the transaction for %q. Please respond before %s.", t.BookTitle, req.ExpiresAt.Format(time.RFC1123)),
			category:  notification.CategoryCancellationRequest,
			relatedID: req.ID,
		})
		fx.post(t.ChatID, initiatorID, chat.CancellationRequestPayload{
			CancellationID: req.ID,
			TransactionID:  t.ID,
			InitiatorID:    initiatorID,
			Reason:         string(req.Reason),
			RefundType:     string(req.RefundType),
			RefundAmount:   req.RefundAmount,
			ExpiresAt:      req.ExpiresAt,
			BookTitle:      t.BookTitle,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.LogInfo(ctx, "Cancellation initiated",
		"cancellation_id", req.ID.String(),
		"transaction_id", req.TransactionID.String(),
	)
	fx.flush(ctx, s.transport, s.notifier)
	return req, nil
}

// Respond records the other party's answer. A response after the deadline
// closes the request as expired, finalizes the cancellation and returns
// ErrRequestExpired.
func (s *Service) Respond(ctx context.Context, cancellationID, responderID uuid.UUID, consent bool) (*Request, error) {
	var (
		req     *Request
		fx      effects
		expired bool
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		req, err = tx.LockRequest(ctx, cancellationID)
		if err != nil {
			return err
		}
		if responderID != req.OtherPartyID {
			return ErrNotResponder
		}

		switch {
		case req.AutoResolved || req.Status == StatusExpired:
			return ErrRequestExpired
		case req.Answered():
			return ErrAlreadyResponded
		case req.Status != StatusPending:
			return ErrNotPending
		}

		t, err := tx.LockTransaction(ctx, req.TransactionID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if req.Expired(now) {
			expired = true
			return s.expire(ctx, tx, req, t, now, &fx)
		}

		status, action := StatusRejected, ActionRejected
		if consent {
			status, action = StatusConsented, ActionConsented
		}
		ok, err := tx.MarkAnswered(ctx, req.ID, consent, status, now, false)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPending
		}
		req.OtherConfirmed = &consent
		req.OtherResponseDate = &now
		req.Status = status

		if err := tx.AppendHistory(ctx, newHistory(req.ID, action, responderID, nil, now)); err != nil {
			return err
		}
		if err := tx.Audit(ctx, audit.NewEntry(responderID, audit.ActionCancellationRespond, audit.EntityCancellation, req.ID,
			map[string]any{"consent": consent}, now)); err != nil {
			return err
		}

		if consent {
			if err := s.process(ctx, tx, req, t, now); err != nil {
				return err
			}
		} else {
			restore := req.PreviousStatus
			if restore == "" {
				restore = transaction.StatusApproved
			}
			if err := tx.SetTransactionStatus(ctx, t.ID, restore); err != nil {
				return err
			}
		}

		label := "rejected"
		if consent {
			label = "approved"
		}
		fx.notify(notice{
			userID:    req.InitiatorID,
			title:     "Cancellation " + label,
			body:      fmt.Sprintf("Your cancellation request for %q was %s.", t.BookTitle, label),
			category:  notification.CategoryCancellationResponse,
			relatedID: req.ID,
		})
		fx.post(t.ChatID, responderID, chat.CancellationResponsePayload{
			CancellationID: req.ID,
			TransactionID:  t.ID,
			ResponderID:    responderID,
			Status:         label,
			BookTitle:      t.BookTitle,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.flush(ctx, s.transport, s.notifier)
	if expired {
		logger.LogInfo(ctx, "Late cancellation response closed request as expired",
			"cancellation_id", req.ID.String(),
		)
		return nil, ErrRequestExpired
	}
	logger.LogInfo(ctx, "Cancellation answered",
		"cancellation_id", req.ID.String(),
		"status", string(req.Status),
	)
	return req, nil
}

// process finishes a consented request: the request becomes processed, the
// transaction cancelled and the book available again. The refund amount is
// only recorded; the credit ledger applies it.
func (s *Service) process(ctx context.Context, tx Tx, req *Request, t *transaction.Transaction, now time.Time) error {
	ok, err := tx.MarkProcessed(ctx, req.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotPending
	}
	req.Status = StatusProcessed
	req.ProcessedAt = &now

	if err := s.finalizeTransaction(ctx, tx, t); err != nil {
		return err
	}

	details := map[string]any{"event": EventCompleted, "refundAmount": req.RefundAmount}
	if err := tx.AppendHistory(ctx, newHistory(req.ID, ActionSystem, uuid.Nil, details, now)); err != nil {
		return err
	}
	return tx.Audit(ctx, audit.NewEntry(uuid.Nil, audit.ActionCancellationProcess, audit.EntityCancellation, req.ID, details, now))
}

// expire closes a pending request whose window lapsed before anyone acted on
// it. Silence counts as consent, so the transaction is still cancelled.
func (s *Service) expire(ctx context.Context, tx Tx, req *Request, t *transaction.Transaction, now time.Time, fx *effects) error {
	ok, err := tx.MarkExpired(ctx, req.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRequestExpired
	}
	req.Status = StatusExpired
	req.AutoResolved = true
	req.ProcessedAt = &now

	if err := s.finalizeTransaction(ctx, tx, t); err != nil {
		return err
	}

	details := map[string]any{"event": EventExpired, "refundAmount": req.RefundAmount}
	if err := tx.AppendHistory(ctx, newHistory(req.ID, ActionSystem, uuid.Nil, details, now)); err != nil {
		return err
	}
	if err := tx.Audit(ctx, audit.NewEntry(uuid.Nil, audit.ActionCancellationExpire, audit.EntityCancellation, req.ID, details, now)); err != nil {
		return err
	}

	s.autoApprovedEffects(fx, req, t)
	return nil
}

func (s *Service) finalizeTransaction(ctx context.Context, tx Tx, t *transaction.Transaction) error {
	if err := tx.SetTransactionStatus(ctx, t.ID, transaction.StatusCancelled); err != nil {
		return err
	}
	return tx.SetBookAvailable(ctx, t.BookID, true)
}

func (s *Service) autoApprovedEffects(fx *effects, req *Request, t *transaction.Transaction) {
	fx.notify(notice{
		userID:    req.InitiatorID,
		title:     "Cancellation approved automatically",
		body:      fmt.Sprintf("The response window for %q lapsed, so your cancellation was processed.", t.BookTitle),
		category:  notification.CategoryCancellationExpired,
		relatedID: req.ID,
	})
	fx.post(t.ChatID, uuid.Nil, chat.CancellationAutoApprovedPayload{
		CancellationID: req.ID,
		TransactionID:  t.ID,
		RefundAmount:   req.RefundAmount,
		BookTitle:      t.BookTitle,
	})
}

// GetLatestByTransaction returns the newest request for a transaction the
// caller takes part in.
func (s *Service) GetLatestByTransaction(ctx context.Context, transactionID, userID uuid.UUID) (*Request, error) {
	t, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !t.IsParty(userID) {
		return nil, ErrNotTransactionParty
	}
	return s.store.GetLatestByTransaction(ctx, transactionID)
}

// History returns the audit trail of a request to one of its parties.
func (s *Service) History(ctx context.Context, cancellationID, userID uuid.UUID) ([]*History, error) {
	req, err := s.store.GetByID(ctx, cancellationID)
	if err != nil {
		return nil, err
	}
	if !req.IsParty(userID) {
		return nil, ErrNotTransactionParty
	}
	return s.store.ListHistory(ctx, cancellationID)
}
