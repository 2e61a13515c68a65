// Package walletcrypto generates and envelope-encrypts custodial Ed25519
// wallets. It never persists or transmits a secret key; every operation
// that materializes one zeroes it before returning.
package walletcrypto

import (
	"context"
	"crypto/ed25519"
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/core/kms"
	"github.com/ledgerwire/shared/models"
)

const (
	payloadMagic   = "PPWK"
	payloadVersion = byte(1)
	payloadSize    = 4 + 1 + 8 + 16 + 64 // magic | version | timestamp | user_id | secret_key
	keyAlgorithm   = "AES-256-GCM"
)

// Wallet is a custodial keypair, never holding the plaintext secret.
type Wallet struct {
	UserID              string
	PublicKey           string // base58
	EncryptedPrivateKey string // base64-encoded encrypted payload
	KeyVersion          string
	KeyAlgorithm        string
}

// Service generates, decrypts, rotates and validates custodial wallets.
type Service struct {
	provider kms.Provider
}

func New(provider kms.Provider) *Service {
	return &Service{provider: provider}
}

// Generate creates a fresh Ed25519 keypair for userID and envelope-encrypts
// the secret key via the configured KMS provider.
func (s *Service) Generate(ctx context.Context, userID string) (*Wallet, error) {
	pub, secret, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errs.Internal("failed to generate ed25519 keypair", err)
	}
	defer zero(secret)

	payload := encodePayload(userID, secret)
	defer zero(payload)

	blob, keyVersion, err := s.provider.Encrypt(ctx, payload)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		UserID:              userID,
		PublicKey:           base58Encode(pub),
		EncryptedPrivateKey: blob,
		KeyVersion:          keyVersion,
		KeyAlgorithm:        keyAlgorithm,
	}, nil
}

// Decrypt recovers the 64-byte secret key bound to w. The caller owns the
// returned slice and must zero it on every exit path.
func (s *Service) Decrypt(ctx context.Context, w *Wallet) ([]byte, error) {
	payload, err := s.provider.Decrypt(ctx, w.EncryptedPrivateKey, w.KeyVersion)
	if err != nil {
		return nil, err
	}
	defer zero(payload)

	userID, secret, err := decodePayload(payload)
	if err != nil {
		return nil, err
	}
	if userID != fingerprint(w.UserID) {
		return nil, errs.ErrUserMismatch
	}

	out := make([]byte, len(secret))
	copy(out, secret)
	return out, nil
}

// Rotate decrypts under the wallet's current key_version and re-encrypts,
// which picks whatever the provider's current master key version is. The
// public key is unchanged.
func (s *Service) Rotate(ctx context.Context, w *Wallet) (*Wallet, error) {
	secret, err := s.Decrypt(ctx, w)
	if err != nil {
		return nil, err
	}
	defer zero(secret)

	pub := ed25519.PrivateKey(secret).Public().(ed25519.PublicKey)
	if base58Encode(pub) != w.PublicKey {
		return nil, errs.ErrKeyMismatch
	}

	payload := encodePayload(w.UserID, secret)
	defer zero(payload)

	blob, keyVersion, err := s.provider.Encrypt(ctx, payload)
	if err != nil {
		return nil, err
	}

	rotated := *w
	rotated.EncryptedPrivateKey = blob
	rotated.KeyVersion = keyVersion
	return &rotated, nil
}

// Validate runs Decrypt and discards the result; true iff no error.
func (s *Service) Validate(ctx context.Context, w *Wallet) bool {
	secret, err := s.Decrypt(ctx, w)
	if err != nil {
		return false
	}
	zero(secret)
	return true
}

func encodePayload(userID string, secret []byte) []byte {
	buf := make([]byte, payloadSize)
	copy(buf[0:4], payloadMagic)
	buf[4] = payloadVersion
	binary.BigEndian.PutUint64(buf[5:13], uint64(time.Now().Unix()))
	copy(buf[13:29], fingerprintBytes(userID))
	copy(buf[29:93], secret)
	return buf
}

// decodePayload returns the embedded user_id fingerprint and the 64-byte
// secret. It validates magic, version and length before touching the
// fingerprint or secret windows.
func decodePayload(payload []byte) (userIDFingerprint [16]byte, secret []byte, err error) {
	if len(payload) != payloadSize {
		return userIDFingerprint, nil, errs.ErrInvalidPayload
	}
	if string(payload[0:4]) != payloadMagic {
		return userIDFingerprint, nil, errs.ErrWalletInvalid
	}
	if payload[4] != payloadVersion {
		return userIDFingerprint, nil, errs.ErrUnsupportedVersion
	}
	copy(userIDFingerprint[:], payload[13:29])
	secret = make([]byte, 64)
	copy(secret, payload[29:93])
	return userIDFingerprint, secret, nil
}

// fingerprint packs a user ID string into the payload's fixed 16-byte
// user_id field. It is a binding check, not a secrecy boundary — GCM's tag
// already authenticates the whole payload; this only proves the payload
// was minted for this specific user.
func fingerprint(userID string) [16]byte {
	var out [16]byte
	copy(out[:], fingerprintBytes(userID))
	return out
}

func fingerprintBytes(userID string) []byte {
	sum := md5.Sum([]byte(userID))
	return sum[:]
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// base58Encode is the Bitcoin/Solana base58 alphabet encoding used for
// public keys throughout the chain facade.
func base58Encode(b []byte) string {
	zero := 0
	for zero < len(b) && b[zero] == 0 {
		zero++
	}

	size := (len(b)-zero)*138/100 + 1
	buf := make([]byte, size)
	length := 0
	for _, c := range b[zero:] {
		carry := int(c)
		i := 0
		for j := size - 1; (carry != 0 || i < length) && j >= 0; j-- {
			carry += 256 * int(buf[j])
			buf[j] = byte(carry % 58)
			carry /= 58
			i++
		}
		length = i
	}

	i := size - length
	for i < size && buf[i] == 0 {
		i++
	}

	out := make([]byte, 0, zero+(size-i))
	for j := 0; j < zero; j++ {
		out = append(out, base58Alphabet[0])
	}
	for ; i < size; i++ {
		out = append(out, base58Alphabet[buf[i]])
	}
	return string(out)
}

// FromModel adapts a models.Wallet row into the Service's Wallet shape.
func FromModel(w *models.Wallet) *Wallet {
	return &Wallet{
		UserID:              w.UserID,
		PublicKey:           w.PublicKey,
		EncryptedPrivateKey: w.EncryptedPrivateKey,
		KeyVersion:          w.KeyVersion,
		KeyAlgorithm:        w.KeyAlgorithm,
	}
}
