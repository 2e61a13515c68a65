package kms

import (
	"context"
	"encoding/base64"
	"encoding/binary"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	coreerrs "github.com/ledgerwire/core/errs"
)

// AwsKmsProvider uses GenerateDataKey for encrypt (one round trip returns
// both the plaintext DEK and its wrapped ciphertext) and Decrypt to
// unwrap it back, against a symmetric CMK identified by AwsKmsKeyId.
type AwsKmsProvider struct {
	client *kms.Client
	keyID  string
}

func NewAwsKmsProvider(ctx context.Context, region, keyID string) (*AwsKmsProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, coreerrs.Internal("failed to load aws config", err)
	}
	return &AwsKmsProvider{client: kms.NewFromConfig(cfg), keyID: keyID}, nil
}

// Encrypt overrides the shared envelope helper: AWS GenerateDataKey
// already returns the plaintext DEK, so there is no separate wrapDEK
// round trip to perform before sealing the payload.
func (p *AwsKmsProvider) Encrypt(ctx context.Context, plaintext []byte) (string, string, error) {
	out, err := p.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(p.keyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return "", "", coreerrs.CryptoAuth("failed to generate data key").WithErr(err)
	}
	dek := out.Plaintext
	defer zero(dek)

	blob, err := sealWithDEK(dek, out.CiphertextBlob, plaintext)
	if err != nil {
		return "", "", err
	}
	return blob, aws.ToString(out.KeyId), nil
}

func (p *AwsKmsProvider) Decrypt(ctx context.Context, blob, keyVersion string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, coreerrs.CryptoAuth("blob is not valid base64")
	}
	if len(raw) < 4 {
		return nil, coreerrs.CryptoAuth("blob too short")
	}
	dekLen := int(binary.LittleEndian.Uint32(raw[0:4]))
	if dekLen < 0 || 4+dekLen > len(raw) {
		return nil, coreerrs.CryptoAuth("blob wrapped-dek length out of range")
	}
	wrapped := raw[4 : 4+dekLen]
	rest := raw[4+dekLen:]

	out, err := p.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: wrapped,
		KeyId:          aws.String(p.keyID),
	})
	if err != nil {
		return nil, coreerrs.CryptoAuth("failed to unwrap data key").WithErr(err)
	}
	dek := out.Plaintext
	defer zero(dek)

	return openWithDEK(dek, rest)
}
