package store

import (
	"context"
	"database/sql"
	"fmt"

	"anchorid/internal/fusion"
	"anchorid/internal/verification"
	id "anchorid/pkg/domain"
)

// PostgresStore persists verification attempts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the attempts table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS verification_attempts (
    id             UUID PRIMARY KEY,
    did            TEXT             NOT NULL,
    face_score     DOUBLE PRECISION NOT NULL,
    voice_score    DOUBLE PRECISION NOT NULL,
    doc_score      DOUBLE PRECISION NOT NULL,
    doc_text_score DOUBLE PRECISION NOT NULL,
    doc_face_score DOUBLE PRECISION NOT NULL,
    doc_mode       TEXT             NOT NULL,
    final_score    DOUBLE PRECISION NOT NULL,
    verified       BOOLEAN          NOT NULL,
    confidence     TEXT             NOT NULL,
    receipt        TEXT             NOT NULL DEFAULT '',
    anchor_status  TEXT             NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ      NOT NULL
);
CREATE INDEX IF NOT EXISTS verification_attempts_did_ts_idx ON verification_attempts (did, created_at);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure attempts schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, attempt *verification.Attempt) error {
	const q = `
INSERT INTO verification_attempts (
    id, did, face_score, voice_score, doc_score, doc_text_score, doc_face_score,
    doc_mode, final_score, verified, confidence, receipt, anchor_status, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.db.ExecContext(ctx, q,
		attempt.ID,
		attempt.DID.String(),
		attempt.FaceScore,
		attempt.VoiceScore,
		attempt.DocScore,
		attempt.DocTextScore,
		attempt.DocFaceScore,
		string(attempt.DocMode),
		attempt.FinalScore,
		attempt.Verified,
		string(attempt.Confidence),
		attempt.Receipt,
		attempt.AnchorStatus,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDID(ctx context.Context, did id.DID) ([]verification.Attempt, error) {
	const q = `
SELECT id, did, face_score, voice_score, doc_score, doc_text_score, doc_face_score,
       doc_mode, final_score, verified, confidence, receipt, anchor_status, created_at
FROM verification_attempts
WHERE did = $1
ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, q, did.String())
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []verification.Attempt
	for rows.Next() {
		var (
			a          verification.Attempt
			didStr     string
			docMode    string
			confidence string
		)
		if err := rows.Scan(
			&a.ID, &didStr, &a.FaceScore, &a.VoiceScore, &a.DocScore,
			&a.DocTextScore, &a.DocFaceScore, &docMode, &a.FinalScore,
			&a.Verified, &confidence, &a.Receipt, &a.AnchorStatus, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.DID = id.DID(didStr)
		a.DocMode = fusion.CrossCheckMode(docMode)
		a.Confidence = id.ConfidenceLevel(confidence)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
