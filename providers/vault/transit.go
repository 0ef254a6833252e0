// Package vault provides the HashiCorp Vault Transit Engine backend for
// envx.
//
// DEKs are minted with the Transit datakey endpoint, so the KEK named by the
// key ID never leaves Vault. The wrapped DEK is Vault's own ciphertext
// format ("vault:v1:...") carried as bytes inside the envelope.
//
// The Transit Engine must be enabled before use:
//
//	vault secrets enable transit
//	vault write -f transit/keys/my-key type=aes256-gcm96
package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	"github.com/hashicorp/vault/api"
	"github.com/hengadev/envx"
)

// TransitService implements envx.KeyManagementService using the Vault
// Transit Engine. The key ID passed to the Manager is the Transit key name.
type TransitService struct {
	client *api.Client
}

// Config holds configuration for the Vault backend.
type Config struct {
	// Address is the Vault server address. If empty, VAULT_ADDR is used.
	Address string

	// Token is the Vault token. If empty, VAULT_TOKEN is used.
	Token string
}

// New creates a Vault Transit backend. Connection settings fall back to the
// standard VAULT_* environment variables.
func New(cfg Config) (*TransitService, error) {
	vaultCfg := api.DefaultConfig()
	if cfg.Address != "" {
		vaultCfg.Address = cfg.Address
	}

	client, err := api.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Vault client: %w", envx.ErrInvalidConfiguration, err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return &TransitService{client: client}, nil
}

// GenerateDataKey mints a fresh 256-bit DEK under the Transit key named by
// keyID, returning the plaintext key material and Vault's ciphertext form.
func (t *TransitService) GenerateDataKey(ctx context.Context, keyID string) (*envx.DEK, error) {
	secret, err := t.client.Logical().WriteWithContext(ctx,
		fmt.Sprintf("transit/datakey/plaintext/%s", keyID),
		map[string]interface{}{
			"bits": 256,
		})
	if err != nil {
		return nil, envx.NewKeyServiceError("generate data key", err, isRetryable(err))
	}
	if secret == nil || secret.Data == nil {
		return nil, envx.NewKeyServiceError("generate data key",
			errors.New("no data key returned from Vault"), false)
	}

	plaintextB64, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, envx.NewKeyServiceError("generate data key",
			errors.New("no plaintext in Vault response"), false)
	}
	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return nil, envx.NewKeyServiceError("generate data key",
			errors.New("no ciphertext in Vault response"), false)
	}

	plaintext, err := base64.StdEncoding.DecodeString(plaintextB64)
	if err != nil {
		return nil, envx.NewKeyServiceError("generate data key",
			fmt.Errorf("failed to decode plaintext: %w", err), false)
	}
	return &envx.DEK{Plaintext: plaintext, Ciphertext: []byte(ciphertext)}, nil
}

// Decrypt unwraps a DEK previously minted by GenerateDataKey under the same
// Transit key.
func (t *TransitService) Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	secret, err := t.client.Logical().WriteWithContext(ctx,
		fmt.Sprintf("transit/decrypt/%s", keyID),
		map[string]interface{}{
			"ciphertext": string(ciphertext),
		})
	if err != nil {
		return nil, envx.NewKeyServiceError("decrypt", err, isRetryable(err))
	}
	if secret == nil || secret.Data == nil {
		return nil, envx.NewKeyServiceError("decrypt",
			errors.New("no plaintext returned from Vault"), false)
	}

	plaintextB64, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, envx.NewKeyServiceError("decrypt",
			errors.New("no plaintext in Vault response"), false)
	}
	plaintext, err := base64.StdEncoding.DecodeString(plaintextB64)
	if err != nil {
		return nil, envx.NewKeyServiceError("decrypt",
			fmt.Errorf("failed to decode plaintext: %w", err), false)
	}
	return plaintext, nil
}

// isRetryable classifies a Vault API error: 5xx responses and transport
// failures are worth retrying; permission and not-found responses are not.
func isRetryable(err error) bool {
	var respErr *api.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
