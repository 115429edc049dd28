package moderation

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Reason represents the category of a report
type Reason string

const (
	ReasonSpam  Reason = "spam"
	ReasonAbuse Reason = "abuse"
	ReasonScam  Reason = "scam"
	ReasonOther Reason = "other"
)

// Status represents the review state of a report
type Status string

const (
	StatusPending Status = "pending"
	StatusChecked Status = "checked"
	StatusClosed  Status = "closed"
)

// AppealStatus tracks the reported user's appeal
type AppealStatus string

const (
	AppealNone     AppealStatus = "none"
	AppealPending  AppealStatus = "pending"
	AppealResolved AppealStatus = "resolved"
)

// AppealOutcome is set when an admin resolves an appeal
type AppealOutcome string

const (
	AppealUpheld     AppealOutcome = "upheld"
	AppealOverturned AppealOutcome = "overturned"
)

// Report is a chat abuse report. ConfidenceScore is fixed at creation and
// AutoResolved never goes back to false.
type Report struct {
	ID              uuid.UUID      `db:"id"`
	ChatID          uuid.UUID      `db:"chat_id"`
	ReporterID      uuid.UUID      `db:"reporter_id"`
	ReportedID      uuid.UUID      `db:"reported_id"`
	MessageID       uuid.NullUUID  `db:"message_id"`
	Reason          Reason         `db:"reason"`
	Description     sql.NullString `db:"description"`
	ConfidenceScore float64        `db:"confidence_score"`
	SignalCount     int            `db:"signal_count"`
	AutoResolved    bool           `db:"auto_resolved"`
	Status          Status         `db:"status"`
	PenaltyApplied  int            `db:"penalty_applied"`
	AppealStatus    AppealStatus   `db:"appeal_status"`
	AppealReason    sql.NullString `db:"appeal_reason"`
	AppealDate      sql.NullTime   `db:"appeal_date"`
	AppealOutcome   sql.NullString `db:"appeal_outcome"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// StoredSignal is one persisted signal row of a report.
type StoredSignal struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	ReportID     uuid.UUID       `db:"report_id" json:"report_id"`
	SignalType   SignalType      `db:"signal_type" json:"signal_type"`
	SignalWeight float64         `db:"signal_weight" json:"signal_weight"`
	SignalData   json.RawMessage `db:"signal_data" json:"signal_data"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

func storedSignals(reportID uuid.UUID, signals []Signal, now time.Time) []*StoredSignal {
	out := make([]*StoredSignal, len(signals))
	for i, s := range signals {
		data, _ := json.Marshal(s.Data)
		out[i] = &StoredSignal{
			ID:           uuid.New(),
			ReportID:     reportID,
			SignalType:   s.Type,
			SignalWeight: s.Weight,
			SignalData:   data,
			CreatedAt:    now,
		}
	}
	return out
}

// duplicateKey identifies reports that count as the same submission.
type duplicateKey struct {
	ReporterID uuid.UUID
	ReportedID uuid.UUID
	ChatID     uuid.UUID
	MessageID  uuid.NullUUID
	Reason     Reason
}

func (k duplicateKey) String() string {
	msg := "none"
	if k.MessageID.Valid {
		msg = k.MessageID.UUID.String()
	}
	return "report:" + k.ReporterID.String() + ":" + k.ReportedID.String() + ":" + k.ChatID.String() + ":" + msg + ":" + string(k.Reason)
}

// ListFilter for paginated report lists
type ListFilter struct {
	Limit  int
	Offset int
}
