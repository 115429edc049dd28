package moderation

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// SignalType names one kind of evidence.
type SignalType string

const (
	SignalKeywordMatch    SignalType = "keyword_match"
	SignalPatternMatch    SignalType = "pattern_match"
	SignalUserHistory     SignalType = "user_history"
	SignalMultipleReports SignalType = "multiple_reports"
)

// Signal is one weighted piece of evidence. Data holds the raw counts behind
// the weight.
type Signal struct {
	Type   SignalType     `json:"type"`
	Weight float64        `json:"weight"`
	Data   map[string]any `json:"data"`
}

// HistoryStats counts earlier reports against the reported user.
type HistoryStats struct {
	Total        int `db:"total"`
	AutoResolved int `db:"auto_resolved"`
}

// ClusterStats counts recent reports against the reported user in one chat.
type ClusterStats struct {
	PriorReports      int `db:"prior_reports"`
	DistinctReporters int `db:"distinct_reporters"`
}

// ReportContext is everything the collector looks at. MessageText is nil
// when the report does not point at a message.
type ReportContext struct {
	MessageText *string
	History     HistoryStats
	Cluster     ClusterStats
}

type keywordGroup struct {
	name    string
	pattern *regexp.Regexp
}

var keywordGroups = []keywordGroup{
	{"fraud", regexp.MustCompile(`(?i)\b(scam+(er|ming)?|fraud\w*|fake)\b`)},
	{"payment", regexp.MustCompile(`(?i)\b(pay\s*pal|venmo|zelle|cash\s*app|western\s+union|wire\s+(me|transfer|money)|bank\s+transfer|send\s+(me\s+)?(money|payment|cash)|pay\s+(me\s+)?(first|upfront|in\s+advance))\b`)},
	{"personal_info", regexp.MustCompile(`(?i)\b(password|passcode|credit\s*card|card\s+number|cvv|ssn|social\s+security|bank\s+(account|details)|login\s+details)\b`)},
	{"harassment", regexp.MustCompile(`(?i)\b(kill\s+you|hurt\s+you|i\s+will\s+find\s+you|threat\w*|stupid|idiot|loser|shut\s+up|hate\s+you)\b`)},
	{"spam", regexp.MustCompile(`(?i)\b(buy\s+now|click\s+(here|this\s+link)|limited\s+offer|free\s+money|promo\s+code|subscribe|advert\w*|earn\s+\$?\d+)\b`)},
}

var urlPattern = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)

const specialChars = "!@#$%^&*"

// CollectSignals returns the signals whose conditions hold. A signal that
// does not fire is absent rather than present with zero weight.
func CollectSignals(rc ReportContext) []Signal {
	signals := make([]Signal, 0, 4)

	if rc.MessageText != nil {
		if s, ok := keywordSignal(*rc.MessageText); ok {
			signals = append(signals, s)
		}
		if s, ok := patternSignal(*rc.MessageText); ok {
			signals = append(signals, s)
		}
	}
	if s, ok := historySignal(rc.History); ok {
		signals = append(signals, s)
	}
	if s, ok := clusterSignal(rc.Cluster); ok {
		signals = append(signals, s)
	}
	return signals
}

func keywordSignal(text string) (Signal, bool) {
	var matched []string
	for _, g := range keywordGroups {
		if g.pattern.MatchString(text) {
			matched = append(matched, g.name)
		}
	}
	if len(matched) == 0 {
		return Signal{}, false
	}
	return Signal{
		Type:   SignalKeywordMatch,
		Weight: math.Min(KeywordWeightPerMatch*float64(len(matched)), KeywordMaxWeight),
		Data:   map[string]any{"matches": len(matched), "groups": matched},
	}, true
}

func patternSignal(text string) (Signal, bool) {
	var letters, upper, special, total int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if strings.ContainsRune(specialChars, r) {
			special++
		}
	}
	if total == 0 {
		return Signal{}, false
	}

	var upperRatio float64
	if letters > 0 {
		upperRatio = float64(upper) / float64(letters)
	}
	specialRatio := float64(special) / float64(total)
	shortLink := urlPattern.MatchString(text) && total < ShortURLMessageLength

	var triggers []string
	if upperRatio > UppercaseRatio {
		triggers = append(triggers, "uppercase")
	}
	if specialRatio > SpecialCharRatio {
		triggers = append(triggers, "special_characters")
	}
	if shortLink {
		triggers = append(triggers, "short_link")
	}
	if len(triggers) == 0 {
		return Signal{}, false
	}

	return Signal{
		Type:   SignalPatternMatch,
		Weight: PatternWeight,
		Data: map[string]any{
			"triggers":      triggers,
			"uppercase":     round2(upperRatio),
			"special_chars": round2(specialRatio),
			"length":        total,
		},
	}, true
}

// historySignal weighs how often earlier reports against the user held up.
// It stays silent when none did, since a zero weight carries no evidence.
func historySignal(h HistoryStats) (Signal, bool) {
	if h.Total < HistoryMinReports {
		return Signal{}, false
	}
	ratio := float64(h.AutoResolved) / float64(h.Total)
	weight := HistoryMaxWeight * ratio
	if weight <= 0 {
		return Signal{}, false
	}
	return Signal{
		Type:   SignalUserHistory,
		Weight: weight,
		Data: map[string]any{
			"prior_reports":       h.Total,
			"prior_auto_resolved": h.AutoResolved,
			"ratio":               round2(ratio),
		},
	}, true
}

func clusterSignal(c ClusterStats) (Signal, bool) {
	if c.PriorReports < ClusterMinReports {
		return Signal{}, false
	}
	return Signal{
		Type:   SignalMultipleReports,
		Weight: MultipleReportsWeight,
		Data: map[string]any{
			"recent_reports":     c.PriorReports,
			"distinct_reporters": c.DistinctReporters,
			"window_minutes":     int(ClusterWindow.Minutes()),
		},
	}, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
