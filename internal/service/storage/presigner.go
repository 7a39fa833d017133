package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the credentials and endpoint for S3-compatible staging.
type S3Config struct {
	KeyID    string
	Secret   string
	Endpoint string
	Region   string
	Bucket   string
}

// S3Presigner generates presigned URLs for S3-compatible object storage,
// used to stage uploads for remote-mode ingestion.
type S3Presigner struct {
	presignClient *s3.PresignClient
	bucket        string
}

// NewS3Presigner creates a presigner. Path-style addressing is used so
// S3-compatible endpoints (MinIO, Hetzner) work without DNS bucket hosts.
func NewS3Presigner(cfg S3Config) (*S3Presigner, error) {
	if cfg.KeyID == "" || cfg.Secret == "" || cfg.Endpoint == "" || cfg.Region == "" {
		return nil, fmt.Errorf("S3 config is incomplete")
	}

	endpoint := "https://" + cfg.Endpoint

	client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.KeyID, cfg.Secret, "",
		),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "dataforge"
	}

	return &S3Presigner{
		presignClient: s3.NewPresignClient(client),
		bucket:        bucket,
	}, nil
}

// Bucket returns the configured staging bucket.
func (p *S3Presigner) Bucket() string { return p.bucket }

// PresignPutObject generates a presigned PUT URL for uploading an object.
func (p *S3Presigner) PresignPutObject(ctx context.Context, key string, expiry time.Duration) (string, error) {
	result, err := p.presignClient.PresignPutObject(ctx,
		&s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			ContentType: aws.String("application/octet-stream"),
		},
		s3.WithPresignExpires(expiry),
	)
	if err != nil {
		return "", fmt.Errorf("presign PutObject for %q: %w", key, err)
	}
	return result.URL, nil
}

// PresignGetObject generates a presigned GET URL for a staged object.
func (p *S3Presigner) PresignGetObject(ctx context.Context, key string, expiry time.Duration) (string, error) {
	result, err := p.presignClient.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(expiry),
	)
	if err != nil {
		return "", fmt.Errorf("presign GetObject for %q: %w", key, err)
	}
	return result.URL, nil
}
