// Package verification implements the verify flow: matching fresh captures
// against an enrolled identity and recording the attempt.
package verification

import (
	"time"

	"anchorid/internal/fusion"
	id "anchorid/pkg/domain"
)

// Attempt is one verification outcome. Attempts are append-only; they are
// never mutated or deleted.
type Attempt struct {
	ID  string
	DID id.DID

	FaceScore    float64
	VoiceScore   float64
	DocScore     float64
	DocTextScore float64
	DocFaceScore float64
	DocMode      fusion.CrossCheckMode

	FinalScore float64
	Verified   bool
	Confidence id.ConfidenceLevel

	// Receipt is set only for passing outcomes that were anchored.
	Receipt      string
	AnchorStatus string

	CreatedAt time.Time
}

// Captures are the evidence uploads for one verification request. DocImage
// is optional; when absent the stored-document cross-check policy runs.
type Captures struct {
	FaceImage   []byte
	VoiceSample []byte
	DocImage    []byte
}

// Result is returned to the caller after a verification.
type Result struct {
	Attempt Attempt
}
