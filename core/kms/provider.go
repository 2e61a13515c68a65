// Package kms wraps/unwraps a 32-byte data encryption key (DEK) under a
// master key held by an external key-management system, and uses the
// plaintext DEK to AES-256-GCM the caller's payload. Every provider shares
// the same wire blob format so core/walletcrypto never needs to know
// which one is in play.
package kms

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/shared/config"
)

// Provider wraps/unwraps payloads behind a master key it never exposes.
type Provider interface {
	Encrypt(ctx context.Context, plaintext []byte) (blob string, keyVersion string, err error)
	Decrypt(ctx context.Context, blob string, keyVersion string) (plaintext []byte, err error)
}

// NewProvider selects the configured Provider via the
// KeyManagement__Provider switch, one environment key driving one switch
// statement, the same provider-per-environment pattern used for other
// pluggable concerns in this codebase.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.KeyManagementProvider {
	case config.ProviderAzureKeyVault:
		return NewAzureKeyVaultProvider(cfg.AzureKeyVaultURI, cfg.AzureKeyName)
	case config.ProviderAwsKms:
		return NewAwsKmsProvider(context.Background(), cfg.AwsRegion, cfg.AwsKmsKeyID)
	case config.ProviderLocal, "":
		return NewLocalProvider(cfg.LocalDevelopmentKey)
	default:
		return nil, fmt.Errorf("unknown key management provider %q", cfg.KeyManagementProvider)
	}
}

// dekWrapper is the provider-specific half of the contract: wrap a fresh
// plaintext DEK into an opaque blob, or unwrap one back. Encrypt/Decrypt
// in this file handle the envelope (IV, GCM, blob layout) uniformly;
// each Provider only supplies wrapDEK/unwrapDEK and its key_version.
type dekWrapper interface {
	wrapDEK(ctx context.Context, dek []byte) (wrapped []byte, keyVersion string, err error)
	unwrapDEK(ctx context.Context, wrapped []byte, keyVersion string) (dek []byte, err error)
}

// encryptWithWrapper implements the shared blob format:
// base64(u32le dek_len | wrapped_dek | iv(12) | ciphertext | tag(16)).
func encryptWithWrapper(ctx context.Context, w dekWrapper, plaintext []byte) (string, string, error) {
	dek := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return "", "", errs.Internal("failed to generate data key", err)
	}
	defer zero(dek)

	wrapped, keyVersion, err := w.wrapDEK(ctx, dek)
	if err != nil {
		return "", "", errs.CryptoAuth("failed to wrap data key").WithErr(err)
	}

	blob, err := sealWithDEK(dek, wrapped, plaintext)
	if err != nil {
		return "", "", err
	}
	return blob, keyVersion, nil
}

// sealWithDEK AES-256-GCM-seals plaintext under dek and assembles the
// shared blob format: base64(u32le wrapped_len | wrapped | iv(12) | ciphertext | tag(16)).
// Used both by the wrapDEK-based providers and by AwsKmsProvider, whose
// GenerateDataKey call already returns the wrapped form directly.
func sealWithDEK(dek, wrapped, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return "", errs.Internal("failed to init cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errs.Internal("failed to init gcm", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", errs.Internal("failed to generate iv", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)

	buf := make([]byte, 4+len(wrapped)+len(iv)+len(sealed))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(wrapped)))
	off := 4
	off += copy(buf[off:], wrapped)
	off += copy(buf[off:], iv)
	copy(buf[off:], sealed)

	return base64.StdEncoding.EncodeToString(buf), nil
}

// openWithDEK reverses sealWithDEK given the already-unwrapped dek and the
// iv|ciphertext|tag remainder (the blob with its wrapped-dek prefix stripped).
func openWithDEK(dek, rest []byte) ([]byte, error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, errs.CryptoAuth("failed to init cipher").WithErr(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.CryptoAuth("failed to init gcm").WithErr(err)
	}
	if len(rest) < gcm.NonceSize() {
		return nil, errs.CryptoAuth("blob missing iv/ciphertext")
	}
	iv := rest[:gcm.NonceSize()]
	ciphertext := rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, errs.CryptoAuth("gcm tag mismatch")
	}
	return plaintext, nil
}

func decryptWithWrapper(ctx context.Context, w dekWrapper, blob, keyVersion string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, errs.CryptoAuth("blob is not valid base64")
	}
	if len(raw) < 4 {
		return nil, errs.CryptoAuth("blob too short")
	}
	dekLen := int(binary.LittleEndian.Uint32(raw[0:4]))
	if dekLen < 0 || 4+dekLen > len(raw) {
		return nil, errs.CryptoAuth("blob wrapped-dek length out of range")
	}
	wrapped := raw[4 : 4+dekLen]
	rest := raw[4+dekLen:]

	dek, err := w.unwrapDEK(ctx, wrapped, keyVersion)
	if err != nil {
		return nil, errs.CryptoAuth("failed to unwrap data key").WithErr(err)
	}
	defer zero(dek)

	return openWithDEK(dek, rest)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
