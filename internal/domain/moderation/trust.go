package moderation

import (
	"time"

	"github.com/google/uuid"
)

// TrustScore is a reporter's reputation. TrustScore stays within
// [MinTrustScore, MaxTrustScore].
type TrustScore struct {
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	TrustScore    float64    `db:"trust_score" json:"trust_score"`
	TotalReports  int        `db:"total_reports" json:"total_reports"`
	ValidReports  int        `db:"valid_reports" json:"valid_reports"`
	FalseReports  int        `db:"false_reports" json:"false_reports"`
	IsFlagged     bool       `db:"is_flagged" json:"is_flagged"`
	CooldownUntil *time.Time `db:"cooldown_until" json:"cooldown_until"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// NewTrustScore returns the default entry for a first-time reporter.
func NewTrustScore(userID uuid.UUID, now time.Time) *TrustScore {
	return &TrustScore{
		UserID:     userID,
		TrustScore: DefaultTrustScore,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsInCooldown reports whether cooldownUntil is set and still ahead of now.
func IsInCooldown(cooldownUntil *time.Time, now time.Time) bool {
	return cooldownUntil != nil && cooldownUntil.After(now)
}

func (t *TrustScore) IsInCooldown(now time.Time) bool {
	return IsInCooldown(t.CooldownUntil, now)
}

// RecordSubmission updates counters after a report was adjudicated. Only an
// auto-resolved report moves the score.
func (t *TrustScore) RecordSubmission(autoResolved bool, now time.Time) {
	t.TotalReports++
	if autoResolved {
		t.ValidReports++
		t.TrustScore = clampTrust(t.TrustScore + ValidReportTrustBonus)
	}
	t.UpdatedAt = now
}

// RecordFalseReport applies the penalty for a report overturned on appeal.
func (t *TrustScore) RecordFalseReport(now time.Time) {
	t.FalseReports++
	t.TrustScore = clampTrust(t.TrustScore - FalseReportTrustPenalty)
	until := now.Add(FalseReportCooldown)
	t.CooldownUntil = &until
	if t.TrustScore < FlagTrustThreshold {
		t.IsFlagged = true
	}
	t.UpdatedAt = now
}

func clampTrust(v float64) float64 {
	if v < MinTrustScore {
		return MinTrustScore
	}
	if v > MaxTrustScore {
		return MaxTrustScore
	}
	return v
}
