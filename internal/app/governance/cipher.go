// Package governance is the persistence and crypto coordinator: every
// identifiable field passes through it on the way to storage, every
// sensitive action leaves an audit trace through it.
package governance

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// DecryptErrSentinel is returned for ciphertext that cannot be opened
// (corrupted, truncated, or written under a foreign key). Decrypt never
// fails outright; history rendering must survive bad rows.
const DecryptErrSentinel = "[ENCRYPTED_DATA_ERROR]"

// FieldCipher does AES-256-GCM field encryption with a process-wide key.
// Both directions are identity on the empty string.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher builds a cipher from a hex-encoded 32-byte key. Key
// problems are fatal at startup, never at request time.
func NewFieldCipher(hexKey string) (*FieldCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("building cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building GCM: %w", err)
	}
	return &FieldCipher{aead: aead}, nil
}

func (c *FieldCipher) Encrypt(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		// rand.Reader failing means the process is unusable anyway.
		panic(fmt.Sprintf("reading nonce: %v", err))
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed)
}

func (c *FieldCipher) Decrypt(ciphertext string) string {
	if ciphertext == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < c.aead.NonceSize() {
		return DecryptErrSentinel
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return DecryptErrSentinel
	}
	return string(plain)
}
