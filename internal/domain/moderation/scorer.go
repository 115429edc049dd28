package moderation

import "math"

// Score combines signal weights and the reporter's trust into a confidence
// in [0, MaxConfidence]. No signals means no confidence.
func Score(signals []Signal, trustScore float64) float64 {
	if len(signals) == 0 {
		return 0
	}

	var signalScore float64
	for _, s := range signals {
		signalScore += s.Weight
	}
	trustFactor := (clampTrust(trustScore) / MaxTrustScore) * TrustScoreWeight * 100

	final := signalScore*SignalShare + trustFactor*TrustShare
	return math.Max(0, math.Min(final, MaxConfidence))
}

// ShouldAutoResolve requires both enough confidence and corroboration from
// more than one signal.
func ShouldAutoResolve(confidence float64, signalCount int) bool {
	return confidence >= AutoResolveConfidence && signalCount >= AutoResolveMinSignals
}
