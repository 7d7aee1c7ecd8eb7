// Package cipher provides authenticated encryption for biometric embeddings
// at rest.
//
// AES-256-GCM keyed by an HKDF-derived subkey of the 256-bit master key.
// Decryption fails loudly on tampered ciphertext or a wrong key; it never
// returns garbage plaintext.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// keyInfo domain-separates the storage key from any future derived keys.
const keyInfo = "anchorid/embedding-storage/v1"

// Box seals and opens embedding blobs.
type Box struct {
	aead stdcipher.AEAD
}

// New derives the storage key from the hex-encoded 256-bit master key and
// builds the AEAD. Key-length errors are startup-fatal by design.
func New(masterKeyHex string) (*Box, error) {
	master, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key is not hex: %w", err)
	}
	if len(master) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes (256 bits), got %d", len(master))
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive storage key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext. Output layout: nonce || ciphertext+tag.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. Returns an error on truncated
// input, tampering, or a mismatched key.
func (b *Box) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < b.aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, ciphertext := sealed[:b.aead.NonceSize()], sealed[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt embedding: %w", err)
	}
	return plaintext, nil
}
