package moderation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string) *string { return &s }

func signalOf(signals []Signal, typ SignalType) (Signal, bool) {
	for _, s := range signals {
		if s.Type == typ {
			return s, true
		}
	}
	return Signal{}, false
}

func TestKeywordSignal(t *testing.T) {
	tests := []struct {
		name   string
		msg    string
		weight float64
		fires  bool
	}{
		{"clean", "Is the book still available for Saturday?", 0, false},
		{"one group", "this listing is a scam", 30, true},
		{"two groups capped", "scam alert, wire me the deposit", 40, true},
		{"three groups capped", "you idiot, send me money on venmo, this is a scam", 40, true},
		{"credential harvesting", "what is your password", 30, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := keywordSignal(tt.msg)
			require.Equal(t, tt.fires, ok)
			if ok {
				assert.Equal(t, tt.weight, s.Weight)
				assert.NotEmpty(t, s.Data["groups"])
			}
		})
	}
}

func TestPatternSignal(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		fires   bool
		trigger string
	}{
		{"plain", "See you at the library tomorrow", false, ""},
		{"shouting", "GIVE IT BACK RIGHT NOW", true, "uppercase"},
		{"symbols", "!!! $$$ ### ***", true, "special_characters"},
		{"short link", "look at bit.ly www.x.co/a", true, "short_link"},
		{"long message with link", "Here is the publisher page I mentioned yesterday: https://example.com/books/42", false, ""},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := patternSignal(tt.msg)
			require.Equal(t, tt.fires, ok)
			if ok {
				assert.Equal(t, PatternWeight, s.Weight)
				assert.Contains(t, s.Data["triggers"], tt.trigger)
			}
		})
	}
}

func TestHistorySignal(t *testing.T) {
	_, ok := historySignal(HistoryStats{Total: 2, AutoResolved: 2})
	assert.False(t, ok, "below minimum history")

	_, ok = historySignal(HistoryStats{Total: 5, AutoResolved: 0})
	assert.False(t, ok, "zero weight is not emitted")

	s, ok := historySignal(HistoryStats{Total: 4, AutoResolved: 2})
	require.True(t, ok)
	assert.Equal(t, 10.0, s.Weight)
	assert.Equal(t, 0.5, s.Data["ratio"])
}

func TestClusterSignal(t *testing.T) {
	_, ok := clusterSignal(ClusterStats{PriorReports: 1, DistinctReporters: 1})
	assert.False(t, ok)

	s, ok := clusterSignal(ClusterStats{PriorReports: 2, DistinctReporters: 1})
	require.True(t, ok)
	assert.Equal(t, MultipleReportsWeight, s.Weight)
	assert.Equal(t, 1, s.Data["distinct_reporters"])
}

func TestCollectSignalsWithoutMessage(t *testing.T) {
	signals := CollectSignals(ReportContext{
		History: HistoryStats{Total: 3, AutoResolved: 3},
		Cluster: ClusterStats{PriorReports: 3, DistinctReporters: 2},
	})

	require.Len(t, signals, 2)
	_, ok := signalOf(signals, SignalKeywordMatch)
	assert.False(t, ok)
	h, _ := signalOf(signals, SignalUserHistory)
	assert.Equal(t, HistoryMaxWeight, h.Weight)
}

func TestCollectSignalsWithMessage(t *testing.T) {
	signals := CollectSignals(ReportContext{MessageText: text("SCAM send money via paypal http://x.co")})

	require.Len(t, signals, 2)
	k, ok := signalOf(signals, SignalKeywordMatch)
	require.True(t, ok)
	assert.Equal(t, KeywordMaxWeight, k.Weight)
	_, ok = signalOf(signals, SignalPatternMatch)
	assert.True(t, ok)

	assert.Empty(t, CollectSignals(ReportContext{MessageText: text(strings.Repeat("fine ", 20))}))
}
