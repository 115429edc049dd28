package credit

import (
	"time"

	"github.com/google/uuid"
)

// TxType defines supported credit transaction types.
type TxType string

const (
	TxTypePenalty       TxType = "penalty"
	TxTypePenaltyRefund TxType = "penalty_refund"
	TxTypeAdminGrant    TxType = "admin_grant"
)

func (t TxType) valid() bool {
	switch t {
	case TxTypePenalty, TxTypePenaltyRefund, TxTypeAdminGrant:
		return true
	}
	return false
}

// TxMeta references the entity that caused a ledger movement.
type TxMeta struct {
	RelatedEntityType string
	RelatedEntityID   uuid.UUID
	Description       string
}

// Balance is the before/after pair of a single movement.
type Balance struct {
	Old int `json:"old_balance"`
	New int `json:"new_balance"`
}

// Applied is the absolute amount that actually moved.
func (b Balance) Applied() int {
	if b.New > b.Old {
		return b.New - b.Old
	}
	return b.Old - b.New
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}

// CreditTransaction is a ledger row.
type CreditTransaction struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	UserID            uuid.UUID     `db:"user_id" json:"user_id"`
	AmountDelta       int           `db:"amount_delta" json:"amount_delta"`
	BalanceBefore     int           `db:"balance_before" json:"balance_before"`
	BalanceAfter      int           `db:"balance_after" json:"balance_after"`
	TxType            string        `db:"tx_type" json:"tx_type"`
	RelatedEntityType *string       `db:"related_entity_type" json:"related_entity_type,omitempty"`
	RelatedEntityID   uuid.NullUUID `db:"related_entity_id" json:"related_entity_id"`
	Description       string        `db:"description" json:"description"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
}
