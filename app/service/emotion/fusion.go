package emotion

import (
	"emoai/app/service/state"
	"math"
)

// Fuse smooths a fresh observation against the most recent fused entry so a
// single noisy classification cannot swing the running emotional state.
//
// Check order matters: the low-confidence check pre-empts everything else,
// then the sign-flip spike guard, then meta damping, then plain smoothing.
func Fuse(label string, valence, confidence float64, history []state.EmotionPoint, metaMode bool) (string, float64) {
	if len(history) == 0 {
		return label, valence
	}

	prev := history[len(history)-1]

	if confidence < 0.5 {
		return prev.Label, prev.Valence
	}

	delta := math.Abs(valence - prev.Valence)
	signFlipped := (valence > 0 && prev.Valence < 0) || (valence < 0 && prev.Valence > 0)

	if delta > 0.6 && signFlipped {
		fused := 0.7*prev.Valence + 0.3*valence

		fusedLabel := label
		if math.Abs(prev.Valence) > math.Abs(valence) {
			fusedLabel = prev.Label
		}

		return fusedLabel, fused
	}

	if metaMode {
		return prev.Label, 0.95*prev.Valence + 0.05*valence
	}

	return label, 0.6*prev.Valence + 0.4*valence
}
