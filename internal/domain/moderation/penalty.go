package moderation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bookloop/bookloop-api/internal/domain/audit"
	"github.com/bookloop/bookloop-api/internal/domain/credit"
)

// Ledger is the slice of the credit ledger adjudication needs.
type Ledger interface {
	Deduct(ctx context.Context, userID uuid.UUID, amount int, meta credit.TxMeta) (credit.Balance, error)
	Add(ctx context.Context, userID uuid.UUID, amount int, txType credit.TxType, meta credit.TxMeta) (credit.Balance, error)
	HasEntry(ctx context.Context, txType credit.TxType, entityType string, entityID uuid.UUID) (bool, error)
}

// Penalty is the outcome of one deduction.
type Penalty struct {
	Nominal int
	Applied int
	Balance credit.Balance
}

// PenaltyFor returns the table amount for reason.
func PenaltyFor(reason Reason) int {
	if amount, ok := PenaltyTable[reason]; ok {
		return amount
	}
	return PenaltyTable[ReasonOther]
}

// ApplyPenalty deducts the table amount from the reported user. The balance
// never goes below zero, so Applied may be less than Nominal.
func ApplyPenalty(ctx context.Context, ledger Ledger, reportedID uuid.UUID, reason Reason, reportID uuid.UUID) (*Penalty, error) {
	nominal := PenaltyFor(reason)
	bal, err := ledger.Deduct(ctx, reportedID, nominal, credit.TxMeta{
		RelatedEntityType: audit.EntityChatReport,
		RelatedEntityID:   reportID,
		Description:       fmt.Sprintf("Penalty for %s report", reason),
	})
	if err != nil {
		return nil, fmt.Errorf("apply penalty: %w", err)
	}
	return &Penalty{Nominal: nominal, Applied: bal.Applied(), Balance: bal}, nil
}

// RefundPenalty returns a previously applied penalty once.
func RefundPenalty(ctx context.Context, ledger Ledger, report *Report) (int, error) {
	if report.PenaltyApplied <= 0 {
		return 0, nil
	}
	done, err := ledger.HasEntry(ctx, credit.TxTypePenaltyRefund, audit.EntityChatReport, report.ID)
	if err != nil {
		return 0, err
	}
	if done {
		return 0, nil
	}
	_, err = ledger.Add(ctx, report.ReportedID, report.PenaltyApplied, credit.TxTypePenaltyRefund, credit.TxMeta{
		RelatedEntityType: audit.EntityChatReport,
		RelatedEntityID:   report.ID,
		Description:       "Penalty refunded after successful appeal",
	})
	if err != nil {
		return 0, fmt.Errorf("refund penalty: %w", err)
	}
	return report.PenaltyApplied, nil
}
