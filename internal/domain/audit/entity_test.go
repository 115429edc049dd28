package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntrySystemActor(t *testing.T) {
	now := time.Now().UTC()
	e := NewEntry(uuid.Nil, ActionCancellationExpire, EntityCancellation, uuid.New(), map[string]int{"refund_amount": 10}, now)

	assert.False(t, e.ActorID.Valid)
	assert.Equal(t, now, e.CreatedAt)

	var details map[string]int
	require.NoError(t, json.Unmarshal(e.Details, &details))
	assert.Equal(t, 10, details["refund_amount"])
}

func TestNewEntryUserActor(t *testing.T) {
	actor := uuid.New()
	e := NewEntry(actor, ActionReportSubmitted, EntityChatReport, uuid.New(), nil, time.Now())

	assert.True(t, e.ActorID.Valid)
	assert.Equal(t, actor, e.ActorID.UUID)
	assert.Nil(t, e.Details)
}
