// Package dataformat implements the DataFormat contract (§4.2): a
// symmetric, opaque-blob codec used to materialize opaque credential
// handles (authorization codes, opaque access/refresh tokens).
package dataformat

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// MinKeyLength is the minimum required key length for AES-256.
const MinKeyLength = 32

// ErrKeyTooShort is returned when a format is constructed with too short a key.
var ErrKeyTooShort = errors.New("dataformat: key must be at least 32 bytes")

// Format is the DataFormat contract of §4.2: protect/unprotect over raw
// bytes. unprotect never returns an error on failure — it returns ok=false
// so normal issuance/redemption flow never has to special-case a thrown
// exception, matching "never throws in normal flow".
type Format interface {
	Protect(payload []byte) (string, error)
	Unprotect(blob string) (payload []byte, ok bool)
}

// AEADFormat is the default Format: AES-256-GCM with a random per-message
// nonce prepended to the ciphertext, base64url-encoded for wire safety.
// Adapted from the teacher's EncryptionService, generalized from a
// fixed "API key string" codec to an arbitrary byte-payload codec.
type AEADFormat struct {
	key []byte
}

// NewAEADFormat constructs an AEADFormat from a 32+ byte key. Keys longer
// than 32 bytes are truncated, matching the teacher's key-normalization.
func NewAEADFormat(key []byte) (*AEADFormat, error) {
	if len(key) < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	k := key
	if len(k) > MinKeyLength {
		k = k[:MinKeyLength]
	}
	return &AEADFormat{key: k}, nil
}

// Protect encrypts payload with AES-256-GCM and returns a base64url string.
func (f *AEADFormat) Protect(payload []byte) (string, error) {
	block, err := aes.NewCipher(f.key)
	if err != nil {
		return "", fmt.Errorf("dataformat: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("dataformat: new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("dataformat: generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, payload, nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Unprotect decrypts a blob produced by Protect. Any failure — malformed
// base64, truncated framing, or a failed GCM tag check — collapses to
// ok=false rather than propagating an error, per §4.2 and §7
// (SerializationFailed is logged as a warning, never thrown).
func (f *AEADFormat) Unprotect(blob string) ([]byte, bool) {
	data, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		log.Warn().Err(err).Msg("dataformat: invalid base64 blob")
		return nil, false
	}

	block, err := aes.NewCipher(f.key)
	if err != nil {
		log.Warn().Err(err).Msg("dataformat: new cipher")
		return nil, false
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		log.Warn().Err(err).Msg("dataformat: new gcm")
		return nil, false
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		log.Warn().Msg("dataformat: ciphertext shorter than nonce")
		return nil, false
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		log.Warn().Err(err).Msg("dataformat: decryption failed")
		return nil, false
	}
	return plaintext, true
}
