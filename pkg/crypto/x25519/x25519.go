// Package x25519 provides X25519 Diffie-Hellman key agreement (RFC 7748)
// for the LEO handshake.
package x25519

import (
	"crypto/ecdh"
	"crypto/rand"
	"errors"
	"fmt"
)

// KeySize is the length in bytes of an X25519 public or private key.
const KeySize = 32

var (
	// ErrInvalidKeySize indicates a key that is not exactly KeySize bytes.
	ErrInvalidKeySize = errors.New("x25519: key must be 32 bytes")
	// ErrKeyGenerationFailed indicates the system entropy source failed.
	ErrKeyGenerationFailed = errors.New("x25519: key generation failed")
	// ErrExchangeFailed indicates the ECDH operation itself failed.
	ErrExchangeFailed = errors.New("x25519: key exchange failed")
)

// Keypair is an X25519 keypair with raw 32-byte encodings on both halves.
// The wire serialization used by both endpoints is these raw bytes,
// base64-encoded by the protocol layer.
type Keypair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// Generate produces a fresh X25519 keypair using system entropy.
func Generate() (*Keypair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGenerationFailed, err)
	}
	return &Keypair{
		PublicKey:  priv.PublicKey().Bytes(),
		PrivateKey: priv.Bytes(),
	}, nil
}

// Exchange performs X25519 Diffie-Hellman between a local private key and
// a peer's public key, returning the 32-byte shared secret.
func Exchange(privateKey, peerPublicKey []byte) ([]byte, error) {
	if len(privateKey) != KeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes", ErrInvalidKeySize, len(privateKey))
	}
	if len(peerPublicKey) != KeySize {
		return nil, fmt.Errorf("%w: peer public key is %d bytes", ErrInvalidKeySize, len(peerPublicKey))
	}

	priv, err := ecdh.X25519().NewPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrExchangeFailed, err)
	}
	pub, err := ecdh.X25519().NewPublicKey(peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: parse peer public key: %v", ErrExchangeFailed, err)
	}

	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return secret, nil
}
