// Package s3store provides the Amazon S3 object-storage backend for the
// envx pipeline compositions.
package s3store

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hengadev/envx"
)

// uploader and downloader cover the transfer-manager surface we use
// (allows mocking).
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// Service implements envx.ObjectStorage using S3 via the transfer manager,
// so large sealed archives are uploaded and downloaded in parts.
type Service struct {
	uploader   uploader
	downloader downloader
	region     string
}

// Config holds configuration for the S3 backend.
type Config struct {
	// Region is the AWS region. If empty, uses AWS_REGION or the AWS
	// config file.
	Region string

	// AWSConfig is an optional pre-configured AWS config.
	// If provided, Region is ignored.
	AWSConfig *aws.Config
}

// New creates an S3 backend.
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

	client := s3.NewFromConfig(awsConfig)
	return &Service{
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		region:     awsConfig.Region,
	}, nil
}

// PutFile uploads localFile to s3://bucket/key.
func (s *Service) PutFile(ctx context.Context, localFile string, bucket string, key string) error {
	f, err := os.Open(localFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localFile, err)
	}
	defer f.Close()

	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// GetFile downloads s3://bucket/key into localFile.
func (s *Service) GetFile(ctx context.Context, bucket string, key string, localFile string) error {
	f, err := os.Create(localFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localFile, err)
	}
	defer f.Close()

	if _, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Region returns the AWS region this backend is configured for.
func (s *Service) Region() string { return s.region }
