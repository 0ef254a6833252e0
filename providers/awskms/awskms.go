// Package awskms provides the AWS Key Management Service backend for envx.
//
// Data-encryption keys are minted with kms:GenerateDataKey using the AES_256
// key spec and unwrapped with kms:Decrypt using the default symmetric
// algorithm. KMS Encrypt itself caps payloads at 4 KiB, which is why the
// envelope layer exists at all.
package awskms

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"
	"github.com/hengadev/envx"
)

// kmsClient interface for AWS KMS operations (allows mocking)
type kmsClient interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Service implements envx.KeyManagementService using AWS KMS.
type Service struct {
	client kmsClient
	region string
}

// Config holds configuration for the AWS KMS backend.
type Config struct {
	// Region is the AWS region (e.g., "us-east-1").
	// If empty, uses AWS_REGION environment variable or AWS config file.
	Region string

	// AWSConfig is an optional pre-configured AWS config.
	// If provided, Region is ignored.
	AWSConfig *aws.Config
}

// New creates an AWS KMS backend.
//
// Usage:
//
//	// Using default AWS configuration
//	svc, err := awskms.New(ctx, awskms.Config{})
//
//	// With specific region
//	svc, err := awskms.New(ctx, awskms.Config{Region: "us-east-1"})
func New(ctx context.Context, cfg Config) (*Service, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}

		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", envx.ErrInvalidConfiguration, err)
		}
	}

	return &Service{
		client: kms.NewFromConfig(awsConfig),
		region: awsConfig.Region,
	}, nil
}

// GenerateDataKey mints a fresh AES-256 DEK under the master key identified
// by keyID. The keyID can be a key ID, a key ARN, an alias name
// ("alias/my-key"), or an alias ARN.
func (s *Service) GenerateDataKey(ctx context.Context, keyID string) (*envx.DEK, error) {
	out, err := s.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(keyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, envx.NewKeyServiceError("generate data key", err, isRetryable(err))
	}
	if out.Plaintext == nil || out.CiphertextBlob == nil {
		return nil, envx.NewKeyServiceError("generate data key",
			errors.New("no key material returned from KMS"), false)
	}
	return &envx.DEK{Plaintext: out.Plaintext, Ciphertext: out.CiphertextBlob}, nil
}

// Decrypt unwraps a DEK previously wrapped by GenerateDataKey, using the
// default symmetric algorithm. Access-denied and wrong-key failures surface
// as non-retryable per the service's own semantics.
func (s *Service) Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, envx.NewKeyServiceError("decrypt",
			errors.New("ciphertext cannot be empty"), false)
	}

	out, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:      ciphertext,
		EncryptionAlgorithm: types.EncryptionAlgorithmSpecSymmetricDefault,
		KeyId:               aws.String(keyID),
	})
	if err != nil {
		return nil, envx.NewKeyServiceError("decrypt", err, isRetryable(err))
	}
	if out.Plaintext == nil {
		return nil, envx.NewKeyServiceError("decrypt",
			errors.New("no plaintext returned from KMS"), false)
	}
	return out.Plaintext, nil
}

// Region returns the AWS region this backend is configured for.
func (s *Service) Region() string { return s.region }

// isRetryable classifies an SDK error: internal service faults, dependency
// timeouts, temporarily unavailable keys, and transport timeouts are worth
// retrying; malformed requests, not-found, and access-denied are not.
func isRetryable(err error) bool {
	var (
		internalErr *types.KMSInternalException
		depTimeout  *types.DependencyTimeoutException
		unavailable *types.KeyUnavailableException
	)
	if errors.As(err, &internalErr) || errors.As(err, &depTimeout) || errors.As(err, &unavailable) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorFault() == smithy.FaultServer
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
