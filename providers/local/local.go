// Package local provides an offline key-management backend for envx.
//
// Instead of a remote KMS, the key-encryption key is derived from a
// passphrase with argon2id. Every wrap uses a fresh random salt, and the
// wrapped blob is self-describing: it carries the salt and the argon2
// parameters used, so older blobs keep unwrapping after the defaults change.
//
// This backend is for air-gapped and development use; there is no
// service-side audit trail or access control.
package local

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hengadev/envx"
	"golang.org/x/crypto/argon2"
)

const (
	blobVersion = 1
	saltLength  = 16
	nonceLength = 12

	// version + salt + time(u32) + memory(u32) + threads
	headerLength = 1 + saltLength + 4 + 4 + 1
)

// Params are the argon2id cost parameters for KEK derivation.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultParams follows the RFC 9106 second recommended option.
func DefaultParams() Params {
	return Params{Time: 3, Memory: 64 * 1024, Threads: 4}
}

// Service implements envx.KeyManagementService with a passphrase-derived
// KEK. The key ID is not used for derivation but is bound into the wrap as
// associated data, so a blob wrapped under one key ID will not unwrap under
// another.
type Service struct {
	passphrase []byte
	params     Params
}

// New creates an offline backend from a passphrase. Zero-value params fall
// back to DefaultParams.
func New(passphrase []byte, params Params) (*Service, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: passphrase cannot be empty", envx.ErrInvalidConfiguration)
	}
	if params == (Params{}) {
		params = DefaultParams()
	}
	if params.Threads == 0 {
		return nil, fmt.Errorf("%w: argon2 threads cannot be zero", envx.ErrInvalidConfiguration)
	}
	p := make([]byte, len(passphrase))
	copy(p, passphrase)
	return &Service{passphrase: p, params: params}, nil
}

// GenerateDataKey mints a random 32-byte DEK and wraps it under a KEK
// derived from the passphrase with a fresh salt.
func (s *Service) GenerateDataKey(ctx context.Context, keyID string) (*envx.DEK, error) {
	plaintext := make([]byte, envx.DEKLength)
	if _, err := io.ReadFull(rand.Reader, plaintext); err != nil {
		return nil, envx.NewKeyServiceError("generate data key", err, false)
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, envx.NewKeyServiceError("generate data key", err, false)
	}

	aead, err := s.deriveAEAD(salt, s.params)
	if err != nil {
		return nil, envx.NewKeyServiceError("generate data key", err, false)
	}
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, envx.NewKeyServiceError("generate data key", err, false)
	}

	blob := make([]byte, 0, headerLength+nonceLength+envx.DEKLength+16)
	blob = append(blob, blobVersion)
	blob = append(blob, salt...)
	blob = binary.LittleEndian.AppendUint32(blob, s.params.Time)
	blob = binary.LittleEndian.AppendUint32(blob, s.params.Memory)
	blob = append(blob, s.params.Threads)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, plaintext, []byte(keyID))

	return &envx.DEK{Plaintext: plaintext, Ciphertext: blob}, nil
}

// Decrypt unwraps a blob produced by GenerateDataKey under the same
// passphrase and key ID.
func (s *Service) Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < headerLength+nonceLength {
		return nil, envx.NewKeyServiceError("decrypt",
			fmt.Errorf("wrapped DEK too short: %d bytes", len(ciphertext)), false)
	}
	if ciphertext[0] != blobVersion {
		return nil, envx.NewKeyServiceError("decrypt",
			fmt.Errorf("unsupported wrap version %d", ciphertext[0]), false)
	}

	rest := ciphertext[1:]
	salt := rest[:saltLength]
	rest = rest[saltLength:]
	params := Params{
		Time:    binary.LittleEndian.Uint32(rest[0:4]),
		Memory:  binary.LittleEndian.Uint32(rest[4:8]),
		Threads: rest[8],
	}
	rest = rest[9:]
	nonce := rest[:nonceLength]
	sealed := rest[nonceLength:]

	if params.Threads == 0 {
		return nil, envx.NewKeyServiceError("decrypt",
			errors.New("corrupted wrap header: zero argon2 threads"), false)
	}

	aead, err := s.deriveAEAD(salt, params)
	if err != nil {
		return nil, envx.NewKeyServiceError("decrypt", err, false)
	}
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(keyID))
	if err != nil {
		return nil, envx.NewKeyServiceError("decrypt",
			fmt.Errorf("failed to unwrap DEK (wrong passphrase or key ID?): %w", err), false)
	}
	return plaintext, nil
}

func (s *Service) deriveAEAD(salt []byte, params Params) (cipher.AEAD, error) {
	kek := argon2.IDKey(s.passphrase, salt, params.Time, params.Memory, params.Threads, envx.DEKLength)
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
