package anchor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"anchorid/pkg/domain"
)

// Digest is the 32-byte commitment derived from a canonical payload. It is
// the only thing that ever crosses the ledger interface.
type Digest [sha256.Size]byte

// Hex returns the lowercase hex encoding of the digest.
func (d Digest) Hex() string { return hex.EncodeToString(d[:]) }

// EvidenceDigest hashes raw uploaded evidence bytes. The hex form is
// embedded in registration payloads so any party holding the same bytes can
// reproduce the commitment.
func EvidenceDigest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// EvidenceHashes are the hex SHA-256 digests of the three raw uploads.
type EvidenceHashes struct {
	Face     string
	Voice    string
	Document string
}

// RegistrationPayload is the canonical description of an enrollment event.
type RegistrationPayload struct {
	ModelVersion string
	Evidence     EvidenceHashes
	Timestamp    int64
}

// VerificationPayload is the canonical description of a passing verification
// outcome.
type VerificationPayload struct {
	DID       domain.DID
	Face      float64
	Voice     float64
	Document  float64
	Final     float64
	Verified  bool
	Timestamp int64
}

// Canonical serializes the registration payload deterministically: JSON with
// lexicographically sorted keys, so independent constructors of the same
// logical payload produce byte-identical output.
func (p RegistrationPayload) Canonical() ([]byte, error) {
	return canonicalJSON(map[string]any{
		"action":        "register",
		"model_version": p.ModelVersion,
		"evidence_hashes": map[string]any{
			"face":     p.Evidence.Face,
			"voice":    p.Evidence.Voice,
			"document": p.Evidence.Document,
		},
		"timestamp": p.Timestamp,
	})
}

// Digest hashes the canonical serialization.
func (p RegistrationPayload) Digest() (Digest, error) {
	return digest(p)
}

// Canonical serializes the verification payload deterministically.
// Non-finite scores are rejected before hashing; an upstream fusion failure
// must never reach payload construction.
func (p VerificationPayload) Canonical() ([]byte, error) {
	for name, v := range map[string]float64{
		"face": p.Face, "voice": p.Voice, "document": p.Document, "final": p.Final,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("score %q is not finite", name)
		}
	}
	return canonicalJSON(map[string]any{
		"action": "verify",
		"did":    p.DID.String(),
		"scores": map[string]any{
			"face":     p.Face,
			"voice":    p.Voice,
			"document": p.Document,
			"final":    p.Final,
		},
		"verified":  p.Verified,
		"timestamp": p.Timestamp,
	})
}

// Digest hashes the canonical serialization.
func (p VerificationPayload) Digest() (Digest, error) {
	return digest(p)
}

type canonicalizer interface {
	Canonical() ([]byte, error)
}

func digest(p canonicalizer) (Digest, error) {
	raw, err := p.Canonical()
	if err != nil {
		return Digest{}, err
	}
	return sha256.Sum256(raw), nil
}

// canonicalJSON marshals a payload map. encoding/json sorts map keys
// lexicographically at every nesting level, which is exactly the canonical
// form the anchoring protocol requires.
func canonicalJSON(payload map[string]any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return raw, nil
}
