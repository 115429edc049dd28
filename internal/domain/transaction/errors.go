package transaction

import "github.com/bookloop/bookloop-api/internal/pkg/apperr"

var ErrTransactionNotFound = apperr.New(apperr.NotFound, "TRANSACTION_NOT_FOUND", "transaction not found")
