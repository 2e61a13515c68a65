package kms

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func newTestLocalProvider(t *testing.T) *LocalProvider {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate test master key: %v", err)
	}
	p, err := NewLocalProvider(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	return p
}

// TestEnvelopeRoundTrip checks encrypt then decrypt returns the
// original plaintext under the same key version.
func TestEnvelopeRoundTrip(t *testing.T) {
	p := newTestLocalProvider(t)
	plaintext := []byte("a 64 byte ed25519 secret key placeholder.......................")

	blob, keyVersion, err := p.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if keyVersion != localKeyVersion {
		t.Errorf("expected key version %q, got %q", localKeyVersion, keyVersion)
	}

	got, err := p.Decrypt(context.Background(), blob, keyVersion)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round-tripped plaintext mismatch: got %q want %q", got, plaintext)
	}
}

// TestDecryptRejectsTamperedBlob checks that flipping a byte in the
// ciphertext fails the GCM tag check, never silently decrypts garbage.
func TestDecryptRejectsTamperedBlob(t *testing.T) {
	p := newTestLocalProvider(t)
	blob, keyVersion, err := p.Encrypt(context.Background(), []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("decode blob: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := p.Decrypt(context.Background(), tampered, keyVersion); err == nil {
		t.Error("expected tampered blob to fail decryption")
	}
}

func TestEncryptProducesDistinctBlobsForSamePlaintext(t *testing.T) {
	p := newTestLocalProvider(t)
	plaintext := []byte("same secret every time")

	blobA, _, err := p.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	blobB, _, err := p.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if blobA == blobB {
		t.Error("expected distinct blobs for repeated encryption of the same plaintext (fresh DEK + IV each time)")
	}
}
