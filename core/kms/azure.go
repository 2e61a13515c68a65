package kms

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azkeys"

	"github.com/ledgerwire/core/errs"
)

// AzureKeyVaultProvider wraps the DEK via Key Vault's WrapKey/UnwrapKey
// RPCs with RSA-OAEP-256, so the master key never leaves the vault.
type AzureKeyVaultProvider struct {
	client  *azkeys.Client
	keyName string
}

func NewAzureKeyVaultProvider(vaultURI, keyName string) (*AzureKeyVaultProvider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, errs.Internal("failed to obtain azure credential", err)
	}
	client, err := azkeys.NewClient(vaultURI, cred, nil)
	if err != nil {
		return nil, errs.Internal("failed to construct azure keyvault client", err)
	}
	return &AzureKeyVaultProvider{client: client, keyName: keyName}, nil
}

func (p *AzureKeyVaultProvider) Encrypt(ctx context.Context, plaintext []byte) (string, string, error) {
	return encryptWithWrapper(ctx, p, plaintext)
}

func (p *AzureKeyVaultProvider) Decrypt(ctx context.Context, blob, keyVersion string) ([]byte, error) {
	return decryptWithWrapper(ctx, p, blob, keyVersion)
}

func (p *AzureKeyVaultProvider) wrapDEK(ctx context.Context, dek []byte) ([]byte, string, error) {
	resp, err := p.client.WrapKey(ctx, p.keyName, "", azkeys.KeyOperationParameters{
		Algorithm: to.Ptr(azkeys.EncryptionAlgorithmRSAOAEP256),
		Value:     dek,
	}, nil)
	if err != nil {
		return nil, "", err
	}
	return resp.Result, keyVersionFromID(resp.KID), nil
}

func (p *AzureKeyVaultProvider) unwrapDEK(ctx context.Context, wrapped []byte, keyVersion string) ([]byte, error) {
	resp, err := p.client.UnwrapKey(ctx, p.keyName, keyVersion, azkeys.KeyOperationParameters{
		Algorithm: to.Ptr(azkeys.EncryptionAlgorithmRSAOAEP256),
		Value:     wrapped,
	}, nil)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// keyVersionFromID extracts the trailing version segment from a Key Vault
// key identifier URL (".../keys/<name>/<version>").
func keyVersionFromID(kid *azkeys.ID) string {
	if kid == nil {
		return ""
	}
	s := string(*kid)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return s[i+1:]
		}
	}
	return s
}
