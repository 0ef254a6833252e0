package envx

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/hengadev/envx/compress"
)

const (
	// NonceLength is the AES-256-GCM per-record nonce size, 12 bytes.
	// ref. https://www.rfc-editor.org/rfc/rfc8446#appendix-E.2
	NonceLength = 12

	// TagLength is the GCM authentication tag size appended to the payload.
	TagLength = 16

	// two u16 length fields
	headerLength = 4
)

// Manager performs envelope encryption: a fresh DEK from the bound
// key-management service per Seal call, AES-256-GCM for the bulk payload,
// and the wire format described in the package documentation.
//
// A Manager is immutable after construction and holds no mutable state, so
// a single instance is safe for concurrent use. Concurrent Seal/Unseal calls
// are fully independent; each generates its own DEK and nonce.
type Manager struct {
	kms    KeyManagementService
	keyID  string
	aadTag string

	random     io.Reader
	logger     *slog.Logger
	compressor Compressor
}

// New creates a Manager bound to a key-management service, a master key ID,
// and an associated-data tag.
//
// The AAD tag is bound into every authentication check: an envelope sealed
// under one tag will not unseal under another, even with the same master
// key. Use it to prevent cross-context substitution of envelopes.
func New(kms KeyManagementService, keyID string, aadTag string, opts ...Option) (*Manager, error) {
	if kms == nil {
		return nil, fmt.Errorf("%w: KMS service cannot be nil", ErrInvalidConfiguration)
	}
	if keyID == "" {
		return nil, fmt.Errorf("%w: key ID cannot be empty", ErrInvalidConfiguration)
	}

	m := &Manager{
		kms:        kms,
		keyID:      keyID,
		aadTag:     aadTag,
		random:     rand.Reader,
		logger:     slog.Default(),
		compressor: compress.NewZstd(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// KeyID returns the master key identifier this Manager is bound to.
func (m *Manager) KeyID() string { return m.keyID }

// Seal envelope-encrypts plaintext with AES-256-GCM under a freshly
// generated DEK and returns a self-contained envelope:
//
//	[ nonce len (u16 LE) ][ wrapped-DEK len (u16 LE) ][ nonce ][ wrapped DEK ][ ciphertext || tag ]
//
// The input buffer is never mutated. The only network call is the data-key
// generation; if it fails nothing else runs.
func (m *Manager) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	m.logger.Info("envelope-encrypting data",
		"keyID", m.keyID,
		"sizeBeforeEncryption", humanize.Bytes(uint64(len(plaintext))),
	)

	dek, err := m.kms.GenerateDataKey(ctx, m.keyID)
	if err != nil {
		return nil, err
	}
	if len(dek.Plaintext) != DEKLength {
		return nil, fmt.Errorf("%w: DEK plaintext for AES-256 must be %d bytes, got %d",
			ErrInvalidDEK, DEKLength, len(dek.Plaintext))
	}
	if len(dek.Ciphertext) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: wrapped DEK of %d bytes does not fit the u16 length field",
			ErrInvalidDEK, len(dek.Ciphertext))
	}

	nonce := make([]byte, NonceLength)
	if _, err := io.ReadFull(m.random, nonce); err != nil {
		return nil, fmt.Errorf("%w: failed to generate nonce: %w", ErrSealFailed, err)
	}

	aead, err := newAEAD(dek.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSealFailed, err)
	}

	// header + nonce + wrapped DEK, then the AEAD appends ciphertext and tag
	buf := new(bytes.Buffer)
	buf.Grow(headerLength + NonceLength + len(dek.Ciphertext) + len(plaintext) + TagLength)
	binary.Write(buf, binary.LittleEndian, uint16(NonceLength))
	binary.Write(buf, binary.LittleEndian, uint16(len(dek.Ciphertext)))
	buf.Write(nonce)
	buf.Write(dek.Ciphertext)

	sealed := aead.Seal(buf.Bytes(), nonce, plaintext, []byte(m.aadTag))

	m.logger.Info("envelope-encrypted data",
		"sizeAfterEncryption", humanize.Bytes(uint64(len(sealed))),
	)
	return sealed, nil
}

// Unseal reverses Seal: it parses the envelope, unwraps the embedded DEK
// through the key-management service, and verifies and decrypts the payload.
//
// Malformed envelopes (nonce length other than 12, wrapped-DEK length past
// the end of the buffer) are rejected before any KMS or cipher call.
// Tag-verification failure is always fatal; altered or foreign envelopes
// never yield partial plaintext.
func (m *Manager) Unseal(ctx context.Context, sealed []byte) ([]byte, error) {
	m.logger.Info("envelope-decrypting data",
		"keyID", m.keyID,
		"sizeBeforeDecryption", humanize.Bytes(uint64(len(sealed))),
	)

	if len(sealed) < headerLength {
		return nil, fmt.Errorf("%w: %d bytes is too short for the length header",
			ErrInvalidEnvelope, len(sealed))
	}
	nonceLen := int(binary.LittleEndian.Uint16(sealed[0:2]))
	if nonceLen != NonceLength {
		return nil, fmt.Errorf("%w: nonce length must be %d, got %d",
			ErrInvalidEnvelope, NonceLength, nonceLen)
	}
	dekLen := int(binary.LittleEndian.Uint16(sealed[2:4]))
	if dekLen > len(sealed) {
		return nil, fmt.Errorf("%w: wrapped-DEK length %d exceeds envelope length %d",
			ErrInvalidEnvelope, dekLen, len(sealed))
	}

	rest := sealed[headerLength:]
	if len(rest) < nonceLen+dekLen {
		return nil, fmt.Errorf("%w: truncated after header (need %d bytes, have %d)",
			ErrInvalidEnvelope, nonceLen+dekLen, len(rest))
	}
	nonce := rest[:nonceLen]
	wrappedDEK := rest[nonceLen : nonceLen+dekLen]
	payload := rest[nonceLen+dekLen:]

	dekPlaintext, err := m.kms.Decrypt(ctx, m.keyID, wrappedDEK)
	if err != nil {
		return nil, err
	}

	aead, err := newAEAD(dekPlaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsealFailed, err)
	}

	plaintext, err := aead.Open(nil, nonce, payload, []byte(m.aadTag))
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed: %w", ErrUnsealFailed, err)
	}
	if plaintext == nil {
		// Open returns a nil slice for an empty plaintext
		plaintext = []byte{}
	}

	m.logger.Info("envelope-decrypted data",
		"sizeAfterDecryption", humanize.Bytes(uint64(len(plaintext))),
	)
	return plaintext, nil
}

func newAEAD(dek []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
