package envx_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"testing"

	"github.com/hengadev/envx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, opts ...envx.Option) *envx.Manager {
	t.Helper()
	opts = append([]envx.Option{envx.WithLogger(quietLogger())}, opts...)
	manager, err := envx.New(envx.NewInMemoryKMS(), "alias/test-key", "test-app", opts...)
	require.NoError(t, err)
	return manager
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		kms     envx.KeyManagementService
		keyID   string
		wantErr bool
		errMsg  string
	}{
		{
			name:  "valid configuration",
			kms:   envx.NewInMemoryKMS(),
			keyID: "alias/test-key",
		},
		{
			name:    "nil KMS service",
			kms:     nil,
			keyID:   "alias/test-key",
			wantErr: true,
			errMsg:  "KMS service",
		},
		{
			name:    "empty key ID",
			kms:     envx.NewInMemoryKMS(),
			keyID:   "",
			wantErr: true,
			errMsg:  "key ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := envx.New(tt.kms, tt.keyID, "tag")
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, envx.ErrInvalidConfiguration)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				assert.Nil(t, manager)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, manager)
			}
		})
	}
}

func TestSealUnsealRoundTrip(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{name: "empty", plaintext: []byte{}},
		{name: "single byte", plaintext: []byte{0x42}},
		{name: "short text", plaintext: []byte("hello, envelope")},
		{name: "binary with zeros", plaintext: []byte{0, 1, 0, 2, 0, 3, 0}},
		{name: "1 MiB", plaintext: bytes.Repeat([]byte{7}, 1024*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := manager.Seal(ctx, tt.plaintext)
			require.NoError(t, err)
			require.NotNil(t, sealed)

			plain, err := manager.Unseal(ctx, sealed)
			require.NoError(t, err)
			require.NotNil(t, plain)
			assert.Equal(t, tt.plaintext, plain)
		})
	}
}

func TestSealWireLayout(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	plaintext := []byte("layout check")
	sealed, err := manager.Seal(ctx, plaintext)
	require.NoError(t, err)

	require.Greater(t, len(sealed), 4)
	nonceLen := int(binary.LittleEndian.Uint16(sealed[0:2]))
	dekLen := int(binary.LittleEndian.Uint16(sealed[2:4]))
	assert.Equal(t, envx.NonceLength, nonceLen)

	// header + nonce + wrapped DEK + ciphertext + tag
	wantLen := 4 + nonceLen + dekLen + len(plaintext) + envx.TagLength
	assert.Equal(t, wantLen, len(sealed))
}

func TestSealDoesNotMutateInput(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	plaintext := []byte("do not touch")
	original := append([]byte(nil), plaintext...)

	_, err := manager.Seal(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, original, plaintext)
}

func TestSealFreshness(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	plaintext := []byte("same plaintext, different envelopes")
	first, err := manager.Seal(ctx, plaintext)
	require.NoError(t, err)
	second, err := manager.Seal(ctx, plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "sealing must be non-deterministic")

	// the wrapped-DEK fields must differ too: a fresh DEK per call
	firstDEKLen := int(binary.LittleEndian.Uint16(first[2:4]))
	secondDEKLen := int(binary.LittleEndian.Uint16(second[2:4]))
	firstDEK := first[4+envx.NonceLength : 4+envx.NonceLength+firstDEKLen]
	secondDEK := second[4+envx.NonceLength : 4+envx.NonceLength+secondDEKLen]
	assert.NotEqual(t, firstDEK, secondDEK)
}

func TestUnsealTamperDetection(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	sealed, err := manager.Seal(ctx, []byte("tamper target"))
	require.NoError(t, err)

	dekLen := int(binary.LittleEndian.Uint16(sealed[2:4]))
	payloadStart := 4 + envx.NonceLength + dekLen

	// flip one bit in the first ciphertext byte, a middle byte, and the tag
	for _, offset := range []int{payloadStart, payloadStart + 5, len(sealed) - 1} {
		tampered := append([]byte(nil), sealed...)
		tampered[offset] ^= 0x01

		_, err := manager.Unseal(ctx, tampered)
		assert.Error(t, err, "offset %d", offset)
		assert.ErrorIs(t, err, envx.ErrUnsealFailed, "offset %d", offset)
		assert.False(t, envx.IsRetryableError(err))
	}
}

func TestUnsealAADBinding(t *testing.T) {
	ctx := context.Background()
	kms := envx.NewInMemoryKMS()

	sealerA, err := envx.New(kms, "alias/test-key", "A", envx.WithLogger(quietLogger()))
	require.NoError(t, err)
	sealerB, err := envx.New(kms, "alias/test-key", "B", envx.WithLogger(quietLogger()))
	require.NoError(t, err)

	sealed, err := sealerA.Seal(ctx, []byte("bound to A"))
	require.NoError(t, err)

	_, err = sealerB.Unseal(ctx, sealed)
	assert.ErrorIs(t, err, envx.ErrUnsealFailed)

	plain, err := sealerA.Unseal(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("bound to A"), plain)
}

func TestUnsealLengthValidation(t *testing.T) {
	ctx := context.Background()

	// a KMS whose Decrypt must never run: validation rejects first
	kms := envx.NewInMemoryKMS()
	kms.DecryptErr = envx.NewKeyServiceError("decrypt",
		io.ErrUnexpectedEOF, false)
	manager, err := envx.New(kms, "alias/test-key", "tag", envx.WithLogger(quietLogger()))
	require.NoError(t, err)

	tests := []struct {
		name     string
		envelope []byte
	}{
		{name: "empty", envelope: []byte{}},
		{name: "short header", envelope: []byte{12, 0}},
		{
			name: "wrong nonce length",
			envelope: func() []byte {
				b := make([]byte, 64)
				binary.LittleEndian.PutUint16(b[0:2], 16)
				return b
			}(),
		},
		{
			name: "wrapped-DEK length exceeds buffer",
			envelope: func() []byte {
				b := make([]byte, 64)
				binary.LittleEndian.PutUint16(b[0:2], 12)
				binary.LittleEndian.PutUint16(b[2:4], 1024)
				return b
			}(),
		},
		{
			name: "truncated after header",
			envelope: func() []byte {
				b := make([]byte, 20)
				binary.LittleEndian.PutUint16(b[0:2], 12)
				binary.LittleEndian.PutUint16(b[2:4], 18)
				return b
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.Unseal(ctx, tt.envelope)
			require.Error(t, err)
			assert.ErrorIs(t, err, envx.ErrInvalidEnvelope,
				"must be rejected before any KMS or cipher call")
			assert.True(t, envx.IsValidationError(err))
		})
	}
}

func TestSealKeyServiceFailure(t *testing.T) {
	ctx := context.Background()

	kms := envx.NewInMemoryKMS()
	kms.GenerateErr = envx.NewKeyServiceError("generate data key",
		io.ErrUnexpectedEOF, true)
	manager, err := envx.New(kms, "alias/test-key", "tag", envx.WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = manager.Seal(ctx, []byte("never encrypted"))
	require.Error(t, err)
	assert.ErrorIs(t, err, envx.ErrKeyServiceUnavailable)
	assert.True(t, envx.IsRetryableError(err))
}

func TestSealInvalidDEKLength(t *testing.T) {
	ctx := context.Background()

	manager, err := envx.New(shortDEKService{}, "alias/test-key", "tag",
		envx.WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = manager.Seal(ctx, []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, envx.ErrInvalidDEK)
	assert.False(t, envx.IsRetryableError(err))
}

func TestSealOversizedWrappedDEK(t *testing.T) {
	ctx := context.Background()

	manager, err := envx.New(oversizedDEKService{}, "alias/test-key", "tag",
		envx.WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = manager.Seal(ctx, []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, envx.ErrInvalidDEK)
	assert.False(t, envx.IsRetryableError(err))
}

// shortDEKService violates the 32-byte DEK contract.
type shortDEKService struct{}

func (shortDEKService) GenerateDataKey(ctx context.Context, keyID string) (*envx.DEK, error) {
	return &envx.DEK{Plaintext: make([]byte, 16), Ciphertext: []byte("wrapped")}, nil
}

func (shortDEKService) Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	return make([]byte, 16), nil
}

// oversizedDEKService returns a wrapped DEK too large for the envelope's u16
// length field.
type oversizedDEKService struct{}

func (oversizedDEKService) GenerateDataKey(ctx context.Context, keyID string) (*envx.DEK, error) {
	return &envx.DEK{Plaintext: make([]byte, envx.DEKLength), Ciphertext: make([]byte, 70000)}, nil
}

func (oversizedDEKService) Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	return make([]byte, envx.DEKLength), nil
}

func TestConcurrentSealUnseal(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	const workers = 8
	done := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			plaintext := bytes.Repeat([]byte{byte(n)}, 4096)
			sealed, err := manager.Seal(ctx, plaintext)
			if err != nil {
				done <- err
				return
			}
			plain, err := manager.Unseal(ctx, sealed)
			if err != nil {
				done <- err
				return
			}
			if !bytes.Equal(plaintext, plain) {
				done <- io.ErrShortBuffer
				return
			}
			done <- nil
		}(i)
	}
	for i := 0; i < workers; i++ {
		assert.NoError(t, <-done)
	}
}
