package fusion

import (
	"fmt"
	"math"

	"anchorid/pkg/domain"
)

// DefaultThreshold is the pass/fail cut applied to the fused score.
const DefaultThreshold = 0.75

// Weights are the fixed per-modality fusion weights.
// Invariant: Face + Voice + Doc == 1.0 within 0.001; validated once at
// startup, never at call time.
type Weights struct {
	Face  float64
	Voice float64
	Doc   float64
}

// DefaultWeights mirror the shipped model calibration.
var DefaultWeights = Weights{Face: 0.40, Voice: 0.35, Doc: 0.25}

// Validate enforces the weight-sum invariant. A violation is a deployment
// error, not a runtime error.
func (w Weights) Validate() error {
	sum := w.Face + w.Voice + w.Doc
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("fusion weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// Scores are the per-modality component scores feeding fusion, plus the
// document check's internal sub-scores for auditability.
type Scores struct {
	Face     float64
	Voice    float64
	Document DocumentCheck
}

// Outcome is the deterministic result of fusing component scores.
type Outcome struct {
	Scores     Scores
	FinalScore float64
	Verified   bool
	Confidence domain.ConfidenceLevel
}

// Engine fuses per-modality scores into a single calibrated decision. Pure
// domain logic: no I/O, no side effects, safe for unrestricted parallelism.
type Engine struct {
	weights   Weights
	threshold float64
}

// NewEngine constructs a fusion engine. Callers must have validated the
// weights at startup.
func NewEngine(weights Weights, threshold float64) *Engine {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Engine{weights: weights, threshold: threshold}
}

// Fuse combines component scores into the final decision.
//
// Each component is independently clamped to [0, 1] before weighting, so the
// fused score is always in [0, 1] and needs no further clamping. Fusion is
// monotonic: raising any component never lowers the final score.
func (e *Engine) Fuse(scores Scores) Outcome {
	scores.Face = Clamp01(scores.Face)
	scores.Voice = Clamp01(scores.Voice)
	scores.Document.Score = Clamp01(scores.Document.Score)

	final := e.weights.Face*scores.Face +
		e.weights.Voice*scores.Voice +
		e.weights.Doc*scores.Document.Score

	return Outcome{
		Scores:     scores,
		FinalScore: final,
		Verified:   final >= e.threshold,
		Confidence: domain.ConfidenceForScore(final),
	}
}

// Threshold reports the configured pass/fail cut.
func (e *Engine) Threshold() float64 { return e.threshold }
