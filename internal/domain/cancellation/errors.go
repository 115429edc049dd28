package cancellation

import "github.com/bookloop/bookloop-api/internal/pkg/apperr"

var (
	ErrCancellationNotFound = apperr.New(apperr.NotFound, "CANCELLATION_NOT_FOUND", "cancellation request not found")
	ErrNotTransactionParty  = apperr.New(apperr.Forbidden, "NOT_TRANSACTION_PARTY", "you are not a party to this transaction")
	ErrNotResponder         = apperr.New(apperr.Forbidden, "NOT_DESIGNATED_RESPONDER", "only the other party can respond to this cancellation")
	ErrActiveRequestExists  = apperr.New(apperr.Conflict, "ACTIVE_CANCELLATION_EXISTS", "an active cancellation request already exists for this transaction")
	ErrAlreadyResponded     = apperr.New(apperr.Conflict, "ALREADY_RESPONDED", "this cancellation request has already been answered")
	ErrNotCancellable       = apperr.New(apperr.InvalidState, "TRANSACTION_NOT_CANCELLABLE", "transaction cannot be cancelled in its current status")
	ErrNotPending           = apperr.New(apperr.InvalidState, "CANCELLATION_NOT_PENDING", "cancellation request is no longer pending")
	ErrRequestExpired       = apperr.New(apperr.Gone, "CANCELLATION_EXPIRED", "the response window for this cancellation has closed")

	ErrInvalidRefundAmount = &apperr.Error{
		Kind:    apperr.Validation,
		Code:    "INVALID_REFUND_AMOUNT",
		Message: "invalid refund amount",
		Fields:  map[string]string{"refundAmount": "Must be between 0 and the book's minimum credits"},
	}
	ErrInvalidRefundType = &apperr.Error{
		Kind:    apperr.Validation,
		Code:    "INVALID_REFUND_TYPE",
		Message: "invalid refund type",
		Fields:  map[string]string{"refundType": "Invalid refund type. Must be: full, partial, or none"},
	}
)
