package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"anchorid/internal/identity"
	id "anchorid/pkg/domain"
	dErrors "anchorid/pkg/domain-errors"
)

// PostgresStore persists enrollment records in PostgreSQL. Uniqueness is
// enforced by the primary key constraint, not by a read-then-write check.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the identities table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS identities (
    did             TEXT PRIMARY KEY,
    user_id         TEXT        NOT NULL UNIQUE,
    sealed_face     BYTEA       NOT NULL,
    sealed_voice    BYTEA       NOT NULL,
    sealed_document BYTEA       NOT NULL,
    sealed_doc_text BYTEA       NOT NULL,
    face_hash       TEXT        NOT NULL,
    voice_hash      TEXT        NOT NULL,
    document_hash   TEXT        NOT NULL,
    payload_digest  TEXT        NOT NULL,
    model_version   TEXT        NOT NULL,
    cid             TEXT        NOT NULL DEFAULT '',
    receipt         TEXT        NOT NULL DEFAULT '',
    anchor_status   TEXT        NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure identities schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, record *identity.Identity) error {
	const q = `
INSERT INTO identities (
    did, user_id, sealed_face, sealed_voice, sealed_document, sealed_doc_text,
    face_hash, voice_hash, document_hash, payload_digest, model_version,
    cid, receipt, anchor_status, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := s.db.ExecContext(ctx, q,
		record.DID.String(),
		record.UserID.String(),
		record.SealedFace,
		record.SealedVoice,
		record.SealedDocument,
		record.SealedDocText,
		record.Evidence.Face,
		record.Evidence.Voice,
		record.Evidence.Document,
		record.PayloadDigest,
		record.ModelVersion,
		record.CID,
		record.Receipt,
		record.AnchorStatus,
		record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return dErrors.Wrap(dErrors.CodeConflict, "identity already registered", err)
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByDID(ctx context.Context, did id.DID) (*identity.Identity, error) {
	const q = `
SELECT did, user_id, sealed_face, sealed_voice, sealed_document, sealed_doc_text,
       face_hash, voice_hash, document_hash, payload_digest, model_version,
       cid, receipt, anchor_status, created_at
FROM identities
WHERE did = $1`
	var (
		record  identity.Identity
		didStr  string
		userStr string
	)
	err := s.db.QueryRowContext(ctx, q, did.String()).Scan(
		&didStr,
		&userStr,
		&record.SealedFace,
		&record.SealedVoice,
		&record.SealedDocument,
		&record.SealedDocText,
		&record.Evidence.Face,
		&record.Evidence.Voice,
		&record.Evidence.Document,
		&record.PayloadDigest,
		&record.ModelVersion,
		&record.CID,
		&record.Receipt,
		&record.AnchorStatus,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	record.DID = id.DID(didStr)
	record.UserID = id.UserID(userStr)
	return &record, nil
}
