package moderation

import "github.com/bookloop/bookloop-api/internal/pkg/apperr"

var (
	ErrSelfReport         = apperr.New(apperr.SelfReport, "SELF_REPORT", "you cannot report yourself")
	ErrReporterCooldown   = apperr.New(apperr.Cooldown, "REPORTER_COOLDOWN", "you cannot submit reports right now, please try again later")
	ErrReportRateLimit    = apperr.New(apperr.RateLimited, "REPORT_RATE_LIMIT", "you have reached the daily report limit")
	ErrDuplicateReport    = apperr.New(apperr.Conflict, "DUPLICATE_REPORT", "you have already reported this")
	ErrReportNotFound     = apperr.New(apperr.NotFound, "REPORT_NOT_FOUND", "report not found")
	ErrReportedNotInChat  = apperr.New(apperr.NotFound, "REPORTED_USER_NOT_IN_CHAT", "the reported user is not a member of this chat")
	ErrNotReportedUser    = apperr.New(apperr.Forbidden, "NOT_REPORTED_USER", "only the reported user can appeal this report")
	ErrAlreadyAppealed    = apperr.New(apperr.Conflict, "ALREADY_APPEALED", "this report has already been appealed")
	ErrAppealNotPending   = apperr.New(apperr.Conflict, "APPEAL_NOT_PENDING", "this report has no pending appeal")
	ErrAppealReasonLength = &apperr.Error{
		Kind:    apperr.Validation,
		Code:    "APPEAL_REASON_TOO_SHORT",
		Message: "appeal reason is too short",
		Fields:  map[string]string{"appealReason": "Value is too short (min: 20)"},
	}
	ErrMessageNotByReported = &apperr.Error{
		Kind:    apperr.Validation,
		Code:    "MESSAGE_NOT_BY_REPORTED_USER",
		Message: "the reported message was not sent by the reported user",
		Fields:  map[string]string{"messageId": "Message must be sent by the reported user"},
	}
)
