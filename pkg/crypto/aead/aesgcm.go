// Package aead implements the mandatory LEO ciphersuite: AES-256-GCM with
// a fresh random 96-bit nonce per message. Wire layout of a sealed blob is
// nonce(12) || ciphertext || tag(16), matching spec §4.1.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes (96 bits).
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
	// MinBlobSize is the minimum valid sealed blob length: an empty
	// plaintext still yields nonce || tag.
	MinBlobSize = NonceSize + TagSize
)

var (
	// ErrInvalidKeySize indicates a key that is not exactly KeySize bytes.
	ErrInvalidKeySize = errors.New("aead: key must be 32 bytes")
	// ErrBlobTooShort indicates a ciphertext blob shorter than MinBlobSize.
	ErrBlobTooShort = errors.New("aead: ciphertext blob shorter than minimum")
	// ErrAuthenticationFailed indicates the GCM tag did not verify.
	ErrAuthenticationFailed = errors.New("aead: authentication failed")
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aead: new gcm: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext under key with a fresh random nonce, returning
// nonce || ciphertext || tag. No associated data is used.
func Seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("aead: generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts and authenticates a nonce || ciphertext || tag blob sealed
// by Seal, returning the plaintext.
func Open(key, blob []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < MinBlobSize {
		return nil, ErrBlobTooShort
	}

	nonce, ciphertext := blob[:NonceSize], blob[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return plaintext, nil
}
