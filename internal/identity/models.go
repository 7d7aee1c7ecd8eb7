// Package identity implements enrollment: extracting embeddings from the
// three evidence captures, committing the canonical registration payload,
// and persisting the sealed biometric record.
package identity

import (
	"time"

	"anchorid/internal/anchor"
	id "anchorid/pkg/domain"
)

// Identity is the stored enrollment record. Embeddings and document text
// are sealed with AES-256-GCM; only the verification flow opens them.
type Identity struct {
	UserID id.UserID
	DID    id.DID

	// Sealed embedding blobs (nonce || ciphertext+tag).
	SealedFace     []byte
	SealedVoice    []byte
	SealedDocument []byte
	SealedDocText  []byte

	Evidence      anchor.EvidenceHashes
	PayloadDigest string
	ModelVersion  string

	// CID is the content identifier of the pinned canonical payload.
	// Empty when pinning was unavailable.
	CID string
	// Receipt is the ledger receipt for the registration digest. Empty when
	// anchoring was skipped or failed.
	Receipt      string
	AnchorStatus string

	CreatedAt time.Time
}

// Captures are the three raw evidence uploads for one enrollment or
// verification request.
type Captures struct {
	FaceImage   []byte
	VoiceSample []byte
	DocImage    []byte
}

// RegisterResult is returned to the caller after a successful enrollment.
type RegisterResult struct {
	UserID        id.UserID
	DID           id.DID
	PayloadDigest string
	CID           string
	Receipt       string
	AnchorStatus  string
}
