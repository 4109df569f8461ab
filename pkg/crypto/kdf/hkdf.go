// Package kdf derives the per-session directional AEAD keys from an X25519
// shared secret, per spec §4.1: HKDF-SHA256, empty salt, info
// "LEO-SESSION-<sessionID>", 64 bytes of output split into c2s || s2c.
package kdf

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DirectionalKeySize is the length in bytes of each of c2s and s2c.
const DirectionalKeySize = 32

// sessionKeyMaterialSize is the total HKDF output length: c2s || s2c.
const sessionKeyMaterialSize = 2 * DirectionalKeySize

// DeriveSessionKeys derives the client->server and server->client AEAD
// keys from the X25519 shared secret and the session identifier. Both
// endpoints call this with the same (sharedSecret, sessionID) pair and
// obtain identical keys in identical order; separating the two keys by
// direction is what makes a reflected ciphertext fail to decrypt.
func DeriveSessionKeys(sharedSecret []byte, sessionID string) (c2s, s2c []byte, err error) {
	info := []byte(fmt.Sprintf("LEO-SESSION-%s", sessionID))
	reader := hkdf.New(sha256.New, sharedSecret, nil, info)

	material := make([]byte, sessionKeyMaterialSize)
	if _, err := io.ReadFull(reader, material); err != nil {
		return nil, nil, fmt.Errorf("kdf: derive session keys: %w", err)
	}

	c2s = material[:DirectionalKeySize]
	s2c = material[DirectionalKeySize:]
	return c2s, s2c, nil
}
