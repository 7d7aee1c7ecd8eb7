package domain

// ConfidenceLevel is the discrete band derived from a fused verification
// score. Invariant: bands are boundary-inclusive on the lower edge.
type ConfidenceLevel string

const (
	ConfidenceVeryHigh ConfidenceLevel = "VERY_HIGH"
	ConfidenceHigh     ConfidenceLevel = "HIGH"
	ConfidenceMedium   ConfidenceLevel = "MEDIUM"
	ConfidenceLow      ConfidenceLevel = "LOW"
)

// ConfidenceForScore buckets a fused score into its confidence band.
func ConfidenceForScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.90:
		return ConfidenceVeryHigh
	case score >= 0.80:
		return ConfidenceHigh
	case score >= 0.75:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (c ConfidenceLevel) String() string { return string(c) }

// Modality names a biometric channel.
type Modality string

const (
	ModalityFace     Modality = "face"
	ModalityVoice    Modality = "voice"
	ModalityDocument Modality = "document"
)
