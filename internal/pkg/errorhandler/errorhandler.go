package errorhandler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bookloop/bookloop-api/internal/pkg/apperr"
	"github.com/bookloop/bookloop-api/internal/pkg/logger"
	"github.com/bookloop/bookloop-api/internal/pkg/response"
)

// Respond maps err to the response envelope.
// Domain errors keep their public message; anything else becomes a generic 500.
func Respond(ctx context.Context, w http.ResponseWriter, err error) {
	ae, ok := apperr.As(err)
	if !ok || ae.Kind == apperr.Internal {
		log.Error().
			Str("request_id", logger.RequestID(ctx)).
			Err(err).
			Msg("Request failed")
		response.InternalError(w)
		return
	}

	status := apperr.HTTPStatus(ae.Kind)
	log.Debug().
		Str("request_id", logger.RequestID(ctx)).
		Str("error_code", ae.Code).
		Int("status_code", status).
		Err(err).
		Msg("Request rejected")

	details := ae.Fields
	if len(ae.Meta) > 0 {
		details = make(map[string]string, len(ae.Fields)+len(ae.Meta))
		for k, v := range ae.Fields {
			details[k] = v
		}
		for k, v := range ae.Meta {
			details[k] = v
		}
	}

	if len(details) > 0 {
		response.ErrorWithDetails(w, status, ae.Code, ae.Message, details)
		return
	}
	response.Error(w, status, ae.Code, ae.Message)
}

// LogValidationError logs validation errors with details
func LogValidationError(ctx context.Context, fieldErrors map[string]string) {
	errJSON, _ := json.Marshal(fieldErrors)
	log.Warn().
		Str("request_id", logger.RequestID(ctx)).
		RawJSON("validation_errors", errJSON).
		Msg("Validation error")
}
