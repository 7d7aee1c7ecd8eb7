package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchorid/pkg/domain"
)

func TestWeightsValidate(t *testing.T) {
	require.NoError(t, DefaultWeights.Validate())
	require.NoError(t, Weights{Face: 0.3334, Voice: 0.3333, Doc: 0.3333}.Validate())

	require.Error(t, Weights{Face: 0.5, Voice: 0.5, Doc: 0.5}.Validate())
	require.Error(t, Weights{}.Validate())
	require.Error(t, Weights{Face: 0.40, Voice: 0.35, Doc: 0.2511}.Validate())
}

func TestFuseDeterministicScenarios(t *testing.T) {
	engine := NewEngine(DefaultWeights, DefaultThreshold)

	t.Run("strong match verifies with very high confidence", func(t *testing.T) {
		out := engine.Fuse(Scores{
			Face:     0.95,
			Voice:    0.90,
			Document: DocumentCheck{Score: 0.85},
		})
		assert.InDelta(t, 0.9075, out.FinalScore, 1e-9)
		assert.True(t, out.Verified)
		assert.Equal(t, domain.ConfidenceVeryHigh, out.Confidence)
	})

	t.Run("weak match fails with low confidence", func(t *testing.T) {
		out := engine.Fuse(Scores{
			Face:     0.60,
			Voice:    0.50,
			Document: DocumentCheck{Score: 0.40},
		})
		assert.InDelta(t, 0.515, out.FinalScore, 1e-9)
		assert.False(t, out.Verified)
		assert.Equal(t, domain.ConfidenceLow, out.Confidence)
	})
}

func TestFuseClampsComponents(t *testing.T) {
	engine := NewEngine(DefaultWeights, DefaultThreshold)

	out := engine.Fuse(Scores{
		Face:     1.4,
		Voice:    -0.3,
		Document: DocumentCheck{Score: 2.0},
	})
	assert.Equal(t, 1.0, out.Scores.Face)
	assert.Equal(t, 0.0, out.Scores.Voice)
	assert.Equal(t, 1.0, out.Scores.Document.Score)
	assert.LessOrEqual(t, out.FinalScore, 1.0)
	assert.GreaterOrEqual(t, out.FinalScore, 0.0)
}

func TestFuseMonotonic(t *testing.T) {
	engine := NewEngine(DefaultWeights, DefaultThreshold)
	base := Scores{Face: 0.5, Voice: 0.5, Document: DocumentCheck{Score: 0.5}}
	baseline := engine.Fuse(base).FinalScore

	steps := []float64{0.55, 0.7, 0.9, 1.0}
	for _, v := range steps {
		face := base
		face.Face = v
		assert.GreaterOrEqual(t, engine.Fuse(face).FinalScore, baseline)

		voice := base
		voice.Voice = v
		assert.GreaterOrEqual(t, engine.Fuse(voice).FinalScore, baseline)

		doc := base
		doc.Document.Score = v
		assert.GreaterOrEqual(t, engine.Fuse(doc).FinalScore, baseline)
	}
}

func TestConfidenceBandBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.ConfidenceLevel
	}{
		{0.749999, domain.ConfidenceLow},
		{0.75, domain.ConfidenceMedium},
		{0.799999, domain.ConfidenceMedium},
		{0.80, domain.ConfidenceHigh},
		{0.899999, domain.ConfidenceHigh},
		{0.90, domain.ConfidenceVeryHigh},
		{1.0, domain.ConfidenceVeryHigh},
		{0.0, domain.ConfidenceLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.ConfidenceForScore(tc.score), "score %v", tc.score)
	}
}

func TestThresholdBoundary(t *testing.T) {
	engine := NewEngine(Weights{Face: 1, Voice: 0, Doc: 0}, DefaultThreshold)

	pass := engine.Fuse(Scores{Face: 0.75})
	assert.True(t, pass.Verified, "threshold is inclusive on the lower edge")

	fail := engine.Fuse(Scores{Face: 0.749999})
	assert.False(t, fail.Verified)
}

func TestNewEngineDefaultsThreshold(t *testing.T) {
	engine := NewEngine(DefaultWeights, 0)
	assert.Equal(t, DefaultThreshold, engine.Threshold())
}
