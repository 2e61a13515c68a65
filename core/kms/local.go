package kms

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/ledgerwire/core/errs"
)

// localKeyVersion is fixed: the local provider has exactly one master key,
// loaded from configuration, never rotated.
const localKeyVersion = "local-v1"

// LocalProvider is the non-production Provider: a 32-byte symmetric master
// key from configuration, wrapping the DEK with raw AES-GCM. Never use in
// production; there is no external key custody boundary.
type LocalProvider struct {
	masterKey []byte
}

// NewLocalProvider decodes a base64-encoded 32-byte master key.
func NewLocalProvider(base64MasterKey string) (*LocalProvider, error) {
	key, err := base64.StdEncoding.DecodeString(base64MasterKey)
	if err != nil {
		return nil, errs.Internal("KeyManagement__LocalDevelopmentKey is not valid base64", err)
	}
	if len(key) != 32 {
		return nil, errs.New(errs.KindInternal, "KeyManagement__LocalDevelopmentKey must decode to 32 bytes")
	}
	return &LocalProvider{masterKey: key}, nil
}

func (p *LocalProvider) Encrypt(ctx context.Context, plaintext []byte) (string, string, error) {
	return encryptWithWrapper(ctx, p, plaintext)
}

func (p *LocalProvider) Decrypt(ctx context.Context, blob, keyVersion string) ([]byte, error) {
	return decryptWithWrapper(ctx, p, blob, keyVersion)
}

func (p *LocalProvider) wrapDEK(ctx context.Context, dek []byte) ([]byte, string, error) {
	block, err := aes.NewCipher(p.masterKey)
	if err != nil {
		return nil, "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, "", err
	}
	wrapped := gcm.Seal(nonce, nonce, dek, nil)
	return wrapped, localKeyVersion, nil
}

func (p *LocalProvider) unwrapDEK(ctx context.Context, wrapped []byte, keyVersion string) ([]byte, error) {
	block, err := aes.NewCipher(p.masterKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(wrapped) < gcm.NonceSize() {
		return nil, errs.New(errs.KindCryptoAuth, "wrapped dek too short")
	}
	nonce := wrapped[:gcm.NonceSize()]
	ciphertext := wrapped[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
