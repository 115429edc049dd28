package credit

import "github.com/bookloop/bookloop-api/internal/pkg/apperr"

var (
	ErrInvalidAmount = apperr.ValidationErr("invalid amount", map[string]string{"amount": "must be greater than 0"})
	ErrUserNotFound  = apperr.New(apperr.NotFound, "USER_NOT_FOUND", "user not found")
	ErrInvalidTxType = apperr.New(apperr.Internal, "INVALID_TX_TYPE", "unsupported credit transaction type")
)
