package cancellation

import (
	"context"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/domain/audit"
	"github.com/bookloop/bookloop-api/internal/pkg/logger"
)

// DefaultSweepBatch bounds how many requests one sweep resolves.
const DefaultSweepBatch = 200

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Processed       int         `json:"processed"`
	CancellationIDs []uuid.UUID `json:"cancellationIds"`
}

// Sweep auto-approves pending requests whose window has lapsed. Rows are
// claimed with SKIP LOCKED and moved by a pending-only update, so concurrent
// sweeps and late responses never resolve the same request twice. Chat posts
// and notifications go out only after the batch commits.
func (s *Service) Sweep(ctx context.Context, batch int) (*SweepResult, error) {
	if batch <= 0 {
		batch = DefaultSweepBatch
	}

	var (
		result = &SweepResult{CancellationIDs: []uuid.UUID{}}
		fx     effects
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		result.Processed = 0
		result.CancellationIDs = result.CancellationIDs[:0]
		fx = effects{}

		now := s.now().UTC()
		expired, err := tx.LockExpired(ctx, now, batch)
		if err != nil {
			return err
		}

		for _, req := range expired {
			ok, err := tx.MarkAnswered(ctx, req.ID, true, StatusConsented, now, true)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			confirmed := true
			req.OtherConfirmed = &confirmed
			req.Status = StatusConsented
			req.AutoResolved = true

			details := map[string]any{"event": EventAutoApproved, "expiresAt": req.ExpiresAt}
			if err := tx.AppendHistory(ctx, newHistory(req.ID, ActionSystem, uuid.Nil, details, now)); err != nil {
				return err
			}
			if err := tx.Audit(ctx, audit.NewEntry(uuid.Nil, audit.ActionCancellationExpire, audit.EntityCancellation, req.ID, details, now)); err != nil {
				return err
			}

			t, err := tx.LockTransaction(ctx, req.TransactionID)
			if err != nil {
				return err
			}
			if err := s.process(ctx, tx, req, t, now); err != nil {
				return err
			}

			s.autoApprovedEffects(&fx, req, t)
			result.Processed++
			result.CancellationIDs = append(result.CancellationIDs, req.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Processed > 0 {
		logger.LogInfo(ctx, "Expired cancellation requests auto-approved", "count", result.Processed)
	}
	fx.flush(ctx, s.transport, s.notifier)
	return result, nil
}
