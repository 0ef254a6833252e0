package envx

import "context"

// KeyManagementService defines the contract for the key-management backend
// that the envelope Manager consumes.
//
// This interface is implemented by KMS providers (AWS KMS, HashiCorp Vault
// Transit Engine, the offline passphrase backend, etc.). It covers exactly
// the two operations envelope encryption needs: minting a fresh
// data-encryption key (DEK) in both plaintext and wrapped form, and
// unwrapping a previously wrapped DEK.
//
// Implementations report failures as *KeyServiceError so the Manager never
// depends on backend-specific error shapes; each backend classifies its own
// errors as retryable or not.
//
// Implementations:
//   - AWS KMS: github.com/hengadev/envx/providers/awskms.Service
//   - HashiCorp Vault Transit: github.com/hengadev/envx/providers/vault.TransitService
//   - Passphrase (offline): github.com/hengadev/envx/providers/local.Service
//   - In-memory (testing): envx.InMemoryKMS
type KeyManagementService interface {
	// GenerateDataKey mints a fresh 256-bit DEK under the master key
	// identified by keyID, returning both the plaintext key material and
	// the wrapped (encrypted) form. The plaintext must be used immediately
	// and dropped; the ciphertext is safe to store alongside data.
	GenerateDataKey(ctx context.Context, keyID string) (*DEK, error)

	// Decrypt unwraps a DEK previously produced by GenerateDataKey under
	// the same master key, returning the plaintext key material.
	Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error)
}

// Compressor packs a file into a compressed form and back. Consumed by the
// Manager's pipeline compositions; the zstd/gzip implementation lives in
// github.com/hengadev/envx/compress.
type Compressor interface {
	// Pack compresses srcFile into dstFile.
	Pack(srcFile string, dstFile string) error

	// Unpack decompresses srcFile into dstFile.
	Unpack(srcFile string, dstFile string) error
}

// ObjectStorage puts and gets local files as objects in a bucket. Consumed
// by the Manager's pipeline compositions; the S3 implementation lives in
// github.com/hengadev/envx/providers/s3.
type ObjectStorage interface {
	// PutFile uploads localFile as bucket/key.
	PutFile(ctx context.Context, localFile string, bucket string, key string) error

	// GetFile downloads bucket/key into localFile.
	GetFile(ctx context.Context, bucket string, key string, localFile string) error
}
