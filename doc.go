// Package envx provides envelope encryption for byte buffers and files,
// backed by a pluggable key-management service (KMS).
//
// Envelope encryption combines a remote KMS with local AES-256-GCM: every
// Seal call asks the KMS for a fresh data-encryption key (DEK), encrypts the
// payload locally under that DEK, and packs the KMS-wrapped DEK and the
// nonce alongside the ciphertext. The plaintext DEK only ever lives on the
// stack of the call that used it. Because the wrapped DEK travels inside the
// sealed output, every envelope is self-contained and can be decrypted
// independently and out of order.
//
// # Wire format
//
// A sealed envelope is a single byte buffer laid out as:
//
//	[ nonce length (u16, little-endian) ]
//	[ wrapped-DEK length (u16, little-endian) ]
//	[ nonce bytes ]
//	[ wrapped-DEK ciphertext ]
//	[ AEAD-sealed payload (ciphertext || 16-byte tag) ]
//
// The nonce length is always 12 (the AES-256-GCM nonce size); anything else
// is rejected before any cryptographic operation runs.
//
// # Quick start
//
//	kms, err := awskms.New(ctx, awskms.Config{Region: "us-east-1"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	manager, err := envx.New(kms, "alias/my-key", "my-app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sealed, err := manager.Seal(ctx, []byte("hello"))
//	plain, err := manager.Unseal(ctx, sealed)
//
// A Manager is immutable and holds no mutable state; one instance may be
// shared freely across goroutines.
//
// # Backends
//
// KMS backends live under providers/: AWS KMS (providers/awskms), HashiCorp
// Vault Transit (providers/vault), and an offline passphrase-derived backend
// (providers/local). Tests and examples can use the exported InMemoryKMS.
//
// # Pipelines
//
// For large payloads the Manager composes with a Compressor and an
// ObjectStorage collaborator: CompressSealPut compresses a file, seals it,
// and uploads the result; GetUnsealDecompress reverses the chain.
package envx
