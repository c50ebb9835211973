// Package crypto implements authenticated encryption for stored OAuth tokens.
//
// Blobs are AES-256-GCM with a random 16-byte nonce per call, laid out as
// base64(nonce || tag || ciphertext). The layout matches what the token
// table already holds, so the key is the only moving part.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/jobpilot/jobpilot/internal/errs"
)

// Sizes of the blob parts. KeySize is fixed: a key of any other length is a
// configuration error, never silently accepted.
const (
	KeySize   = 32
	NonceSize = 16
	TagSize   = 16
)

// Cipher encrypts and decrypts short opaque secrets with one static key.
// Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a raw 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// NewFromBase64 builds a Cipher from a base64-encoded 32-byte key, the form
// the key takes in process configuration.
func NewFromBase64(encoded string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return New(key)
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Encrypt seals plaintext under a fresh random nonce. Two calls with the
// same plaintext yield different blobs.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce, err := RandBytes(NonceSize)
	if err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	// Seal appends the tag after the ciphertext; the stored layout wants it
	// between nonce and ciphertext.
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	blob := make([]byte, 0, NonceSize+TagSize+len(ct))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. A malformed blob or a failed
// authentication tag yields errs.ErrIntegrity, never garbage plaintext.
func (c *Cipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", errs.ErrIntegrity
	}
	if len(raw) < NonceSize+TagSize {
		return "", errs.ErrIntegrity
	}
	nonce := raw[:NonceSize]
	tag := raw[NonceSize : NonceSize+TagSize]
	ct := raw[NonceSize+TagSize:]

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errs.ErrIntegrity
	}
	return string(plain), nil
}
