package awskms

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"
	"github.com/hengadev/envx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock KMS client for testing
type mockKMSClient struct {
	generateDataKeyFunc func(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	decryptFunc         func(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

func (m *mockKMSClient) GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	if m.generateDataKeyFunc != nil {
		return m.generateDataKeyFunc(ctx, params, optFns...)
	}
	return &kms.GenerateDataKeyOutput{}, nil
}

func (m *mockKMSClient) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if m.decryptFunc != nil {
		return m.decryptFunc(ctx, params, optFns...)
	}
	return &kms.DecryptOutput{}, nil
}

func TestGenerateDataKey(t *testing.T) {
	ctx := context.Background()
	plaintext := make([]byte, 32)
	wrapped := []byte("wrapped-dek")

	svc := &Service{client: &mockKMSClient{
		generateDataKeyFunc: func(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
			assert.Equal(t, "alias/test-key", *params.KeyId)
			assert.Equal(t, types.DataKeySpecAes256, params.KeySpec)
			return &kms.GenerateDataKeyOutput{
				Plaintext:      plaintext,
				CiphertextBlob: wrapped,
			}, nil
		},
	}}

	dek, err := svc.GenerateDataKey(ctx, "alias/test-key")
	require.NoError(t, err)
	assert.Equal(t, plaintext, dek.Plaintext)
	assert.Equal(t, wrapped, dek.Ciphertext)
}

func TestGenerateDataKeyFailure(t *testing.T) {
	ctx := context.Background()

	svc := &Service{client: &mockKMSClient{
		generateDataKeyFunc: func(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
			return nil, &types.KMSInternalException{Message: strptr("internal failure")}
		},
	}}

	_, err := svc.GenerateDataKey(ctx, "alias/test-key")
	require.Error(t, err)
	assert.ErrorIs(t, err, envx.ErrKeyServiceUnavailable)
	assert.True(t, envx.IsRetryableError(err))
}

func TestGenerateDataKeyEmptyResponse(t *testing.T) {
	ctx := context.Background()

	svc := &Service{client: &mockKMSClient{}}
	_, err := svc.GenerateDataKey(ctx, "alias/test-key")
	require.Error(t, err)
	assert.False(t, envx.IsRetryableError(err))
}

func TestDecrypt(t *testing.T) {
	ctx := context.Background()
	plaintext := make([]byte, 32)

	svc := &Service{client: &mockKMSClient{
		decryptFunc: func(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
			assert.Equal(t, "alias/test-key", *params.KeyId)
			assert.Equal(t, types.EncryptionAlgorithmSpecSymmetricDefault, params.EncryptionAlgorithm)
			assert.Equal(t, []byte("wrapped-dek"), params.CiphertextBlob)
			return &kms.DecryptOutput{Plaintext: plaintext}, nil
		},
	}}

	got, err := svc.Decrypt(ctx, "alias/test-key", []byte("wrapped-dek"))
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptEmptyCiphertext(t *testing.T) {
	svc := &Service{client: &mockKMSClient{}}
	_, err := svc.Decrypt(context.Background(), "alias/test-key", nil)
	require.Error(t, err)
	assert.False(t, envx.IsRetryableError(err))
}

func TestDecryptAccessDenied(t *testing.T) {
	ctx := context.Background()

	svc := &Service{client: &mockKMSClient{
		decryptFunc: func(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
			return nil, &smithy.GenericAPIError{
				Code:    "AccessDeniedException",
				Message: "not allowed",
				Fault:   smithy.FaultClient,
			}
		},
	}}

	_, err := svc.Decrypt(ctx, "alias/test-key", []byte("wrapped-dek"))
	require.Error(t, err)
	assert.ErrorIs(t, err, envx.ErrKeyServiceUnavailable)
	assert.False(t, envx.IsRetryableError(err))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "internal exception", err: &types.KMSInternalException{}, want: true},
		{name: "dependency timeout", err: &types.DependencyTimeoutException{}, want: true},
		{name: "key unavailable", err: &types.KeyUnavailableException{}, want: true},
		{name: "server fault", err: &smithy.GenericAPIError{Fault: smithy.FaultServer}, want: true},
		{name: "client fault", err: &smithy.GenericAPIError{Fault: smithy.FaultClient}, want: false},
		{name: "not found", err: &types.NotFoundException{}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func strptr(s string) *string { return &s }
