package chat

import "github.com/bookloop/bookloop-api/internal/pkg/apperr"

var (
	ErrRoomNotFound    = apperr.New(apperr.NotFound, "CHAT_NOT_FOUND", "chat not found")
	ErrNotRoomMember   = apperr.New(apperr.Forbidden, "NOT_CHAT_MEMBER", "you are not a member of this chat")
	ErrMessageNotFound = apperr.New(apperr.NotFound, "MESSAGE_NOT_FOUND", "message not found in this chat")
)
