package envx

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
)

// InMemoryKMS is a KeyManagementService for tests and examples. It wraps
// DEKs with AES-GCM under a random in-memory KEK; nothing leaves the
// process. Do not use it outside tests.
type InMemoryKMS struct {
	kek []byte

	// GenerateErr and DecryptErr, when set, are returned by the
	// corresponding call instead of performing it. Useful for exercising
	// retry classification in callers.
	GenerateErr error
	DecryptErr  error
}

// NewInMemoryKMS creates an InMemoryKMS with a fresh random KEK.
func NewInMemoryKMS() *InMemoryKMS {
	kek := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, kek); err != nil {
		panic(fmt.Sprintf("envx: failed to generate in-memory KEK: %v", err))
	}
	return &InMemoryKMS{kek: kek}
}

// GenerateDataKey mints a random 32-byte DEK and wraps it under the
// in-memory KEK. The keyID is accepted but not interpreted.
func (k *InMemoryKMS) GenerateDataKey(ctx context.Context, keyID string) (*DEK, error) {
	if k.GenerateErr != nil {
		return nil, k.GenerateErr
	}

	plaintext := make([]byte, DEKLength)
	if _, err := io.ReadFull(rand.Reader, plaintext); err != nil {
		return nil, NewKeyServiceError("generate data key", err, false)
	}
	ciphertext, err := k.wrap(plaintext)
	if err != nil {
		return nil, NewKeyServiceError("generate data key", err, false)
	}
	return &DEK{Plaintext: plaintext, Ciphertext: ciphertext}, nil
}

// Decrypt unwraps a DEK previously wrapped by GenerateDataKey.
func (k *InMemoryKMS) Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	if k.DecryptErr != nil {
		return nil, k.DecryptErr
	}

	plaintext, err := k.unwrap(ciphertext)
	if err != nil {
		return nil, NewKeyServiceError("decrypt", err, false)
	}
	return plaintext, nil
}

// wrap seals a DEK under the KEK, nonce-prefixed.
func (k *InMemoryKMS) wrap(plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(k.kek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (k *InMemoryKMS) unwrap(ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(k.kek)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("wrapped DEK too short: %d bytes", len(ciphertext))
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap DEK: %w", err)
	}
	return plaintext, nil
}
