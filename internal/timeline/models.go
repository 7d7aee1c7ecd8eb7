// Package timeline reconciles the audit history of an identity: the local
// append-only attempt log merged with ledger corroboration on read.
package timeline

import (
	"time"

	id "anchorid/pkg/domain"
)

// EntryType names the kind of timeline entry.
type EntryType string

const (
	EntryRegistration EntryType = "registration"
	EntryVerification EntryType = "verification"
)

// Entry is one event in an identity's reconciled history. Ledger
// corroboration attaches position metadata only; the local record is the
// source of the entry itself.
type Entry struct {
	Type      EntryType
	Timestamp time.Time

	// Verification fields; zero-valued for registration entries.
	Verified   bool
	FinalScore float64
	Confidence id.ConfidenceLevel

	// Receipt is the ledger receipt, when the event was anchored.
	Receipt string
	// LedgerPosition is set when a ledger event with a matching receipt was
	// found. Missing corroboration is not an error.
	LedgerPosition *uint64
}

// Stats aggregates an identity's verification history.
type Stats struct {
	Total        int
	Passed       int
	Failed       int
	AverageScore float64
	SuccessRate  float64
}
