package aead

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("hello leo"),
		bytes.Repeat([]byte{0xAB}, 70000),
	}

	key := testKey(t)
	for _, plaintext := range cases {
		blob, err := Seal(key, plaintext)
		if err != nil {
			t.Fatalf("Seal() failed: %v", err)
		}
		if len(blob) < MinBlobSize {
			t.Fatalf("blob shorter than minimum: %d", len(blob))
		}

		got, err := Open(key, blob)
		if err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestSealUsesFreshNonces(t *testing.T) {
	key := testKey(t)
	a, err := Seal(key, []byte("same plaintext"))
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	b, err := Seal(key, []byte("same plaintext"))
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if bytes.Equal(a[:NonceSize], b[:NonceSize]) {
		t.Fatal("two seals under the same key produced the same nonce")
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := testKey(t)
	blob, err := Seal(key, []byte("integrity matters"))
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	blob[len(blob)-1] ^= 0xFF

	if _, err := Open(key, blob); err == nil {
		t.Fatal("expected authentication failure on tampered ciphertext")
	}
}

func TestOpenRejectsShortBlob(t *testing.T) {
	key := testKey(t)
	if _, err := Open(key, make([]byte, MinBlobSize-1)); err == nil {
		t.Fatal("expected error for blob shorter than minimum")
	}
}

func TestRejectsBadKeySize(t *testing.T) {
	if _, err := Seal(make([]byte, 16), []byte("x")); err == nil {
		t.Fatal("expected error for 16-byte key")
	}
	if _, err := Open(make([]byte, 16), make([]byte, MinBlobSize)); err == nil {
		t.Fatal("expected error for 16-byte key")
	}
}
