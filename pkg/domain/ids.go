package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	dErrors "anchorid/pkg/domain-errors"
)

// DIDMethod is the method segment of every DID minted by this service.
const DIDMethod = "anchorid"

// UserID identifies an enrolled subject. Stored as the canonical string form
// "user_<12 hex>" to stay stable across systems that cannot carry UUIDs.
type UserID string

// NewUserID mints a fresh subject identifier.
func NewUserID() UserID {
	return UserID("user_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}

// ParseUserID validates an externally supplied user ID.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id cannot be empty")
	}
	if !strings.HasPrefix(s, "user_") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed user id")
	}
	return UserID(s), nil
}

func (u UserID) String() string { return string(u) }

// DID is a decentralized identifier for an enrolled subject, of the form
// did:anchorid:<user-id>:<16 hex>. Opaque beyond its syntax; never reissued.
type DID string

// NewDID mints a DID bound to the given user ID.
func NewDID(userID UserID) DID {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return DID(fmt.Sprintf("did:%s:%s:%s", DIDMethod, userID, hex.EncodeToString(buf)))
}

// ParseDID validates an externally supplied DID string.
//
// Usage: call at trust boundaries (handlers); services assume a valid DID.
func ParseDID(s string) (DID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "did cannot be empty")
	}
	parts := strings.Split(s, ":")
	if len(parts) < 3 || parts[0] != "did" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed did")
	}
	return DID(s), nil
}

func (d DID) String() string { return string(d) }
