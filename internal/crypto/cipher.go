package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher encrypts ticket content at rest. A nil *Cipher is valid and
// stores content in the clear; callers should log that degraded mode.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a base64-encoded 32-byte key. An empty key
// returns (nil, nil): encryption disabled.
func New(key string) (*Cipher, error) {
	if key == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(raw) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(raw))
	}

	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plain for storage. Empty input and the nil (disabled)
// cipher pass through verbatim.
func (c *Cipher) Seal(plain string) string {
	if c == nil || plain == "" {
		return plain
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		// rand.Read only fails when the OS entropy source is broken.
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed)
}

// Open decrypts a stored value. On any failure it returns the stored
// value unchanged with ok=false so the caller can log and carry on.
func (c *Cipher) Open(stored string) (plain string, ok bool) {
	if c == nil || stored == "" {
		return stored, true
	}

	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) < c.aead.NonceSize() {
		return stored, false
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	out, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return stored, false
	}
	return string(out), true
}
