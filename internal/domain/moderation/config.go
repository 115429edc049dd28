package moderation

import "time"

// Adjudication tuning. These are fixed so every report is judged by the same rules.
const (
	// Trust
	DefaultTrustScore       = 50.0
	MinTrustScore           = 0.0
	MaxTrustScore           = 100.0
	ValidReportTrustBonus   = 5.0
	FalseReportTrustPenalty = 10.0
	FlagTrustThreshold      = 20.0
	FalseReportCooldown     = 15 * time.Minute

	// Scoring
	SignalShare           = 0.7
	TrustShare            = 0.3
	TrustScoreWeight      = 0.3
	MaxConfidence         = 100.0
	AutoResolveConfidence = 70.0
	AutoResolveMinSignals = 2

	// Submission limits
	MaxReportsPerWindow = 10
	RateLimitWindow     = 24 * time.Hour
	DuplicateWindow     = 24 * time.Hour

	// Signals
	KeywordWeightPerMatch = 30.0
	KeywordMaxWeight      = 40.0
	PatternWeight         = 25.0
	UppercaseRatio        = 0.7
	SpecialCharRatio      = 0.3
	ShortURLMessageLength = 50
	HistoryWindow         = 30 * 24 * time.Hour
	HistoryMinReports     = 3
	HistoryMaxWeight      = 20.0
	ClusterWindow         = time.Hour
	ClusterMinReports     = 2
	MultipleReportsWeight = 35.0
	MinAppealReasonLength = 20
	MaxDescriptionLength  = 1000
)

// PenaltyTable is the flat credit deduction per reason.
var PenaltyTable = map[Reason]int{
	ReasonSpam:  50,
	ReasonAbuse: 100,
	ReasonScam:  200,
	ReasonOther: 25,
}
