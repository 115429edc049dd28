package transaction

import (
	"github.com/google/uuid"
)

// Status of a lending transaction
type Status string

const (
	StatusWaiting             Status = "waiting"
	StatusApproved            Status = "approved"
	StatusOngoing             Status = "ongoing"
	StatusCancellationPending Status = "cancellation_pending"
	StatusCancelled           Status = "cancelled"
	StatusCompleted           Status = "completed"
)

// Cancellable reports whether a cancellation may be opened from this status.
func (s Status) Cancellable() bool {
	switch s {
	case StatusWaiting, StatusApproved, StatusOngoing:
		return true
	}
	return false
}

// Transaction is a borrow of one book between a borrower and a lender,
// joined with the book fields the cancellation flow needs.
type Transaction struct {
	ID             uuid.UUID     `db:"id"`
	BookID         uuid.UUID     `db:"book_id"`
	BorrowerID     uuid.UUID     `db:"borrower_id"`
	LenderID       uuid.UUID     `db:"lender_id"`
	Status         Status        `db:"status"`
	ChatID         uuid.NullUUID `db:"chat_id"`
	MinimumCredits int           `db:"minimum_credits"`
	BookTitle      string        `db:"book_title"`
}

// IsParty reports whether userID is the borrower or the lender.
func (t *Transaction) IsParty(userID uuid.UUID) bool {
	return userID == t.BorrowerID || userID == t.LenderID
}

// Counterpart returns the other party, or uuid.Nil if userID takes no part.
func (t *Transaction) Counterpart(userID uuid.UUID) uuid.UUID {
	switch userID {
	case t.BorrowerID:
		return t.LenderID
	case t.LenderID:
		return t.BorrowerID
	}
	return uuid.Nil
}
