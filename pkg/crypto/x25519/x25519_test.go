package x25519

import "testing"

func TestGenerateProducesDistinctKeys(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if len(a.PublicKey) != KeySize || len(a.PrivateKey) != KeySize {
		t.Fatalf("unexpected key sizes: pub=%d priv=%d", len(a.PublicKey), len(a.PrivateKey))
	}

	b, err := Generate()
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	if string(a.PrivateKey) == string(b.PrivateKey) {
		t.Fatal("two independent keypairs produced the same private key")
	}
}

func TestExchangeIsSymmetric(t *testing.T) {
	alice, err := Generate()
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	bob, err := Generate()
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	secretA, err := Exchange(alice.PrivateKey, bob.PublicKey)
	if err != nil {
		t.Fatalf("Exchange(alice, bob) failed: %v", err)
	}
	secretB, err := Exchange(bob.PrivateKey, alice.PublicKey)
	if err != nil {
		t.Fatalf("Exchange(bob, alice) failed: %v", err)
	}

	if string(secretA) != string(secretB) {
		t.Fatal("DH shared secrets do not match between parties")
	}
	if len(secretA) != KeySize {
		t.Fatalf("shared secret size = %d, want %d", len(secretA), KeySize)
	}
}

func TestExchangeRejectsBadKeySizes(t *testing.T) {
	if _, err := Exchange([]byte{1, 2, 3}, make([]byte, KeySize)); err == nil {
		t.Fatal("expected error for short private key")
	}
	if _, err := Exchange(make([]byte, KeySize), []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short public key")
	}
}
