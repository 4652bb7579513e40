package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultPhotoURLExpiry is how long a candidate photo link stays valid
const DefaultPhotoURLExpiry = 5 * time.Minute

// PhotoSigner turns a stored photo key into a URL the client can fetch.
type PhotoSigner interface {
	SignPhoto(ctx context.Context, key string) (string, error)
}

// S3PhotoSigner generates presigned GET URLs for profile photos.
type S3PhotoSigner struct {
	presign func(ctx context.Context, params *s3.GetObjectInput, expires time.Duration) (string, error)
	Bucket  string
	Expiry  time.Duration
}

// NewS3PhotoSigner creates a signer for bucket. Links expire after expiry, 5 minutes by default.
func NewS3PhotoSigner(cfg aws.Config, bucket string, expiry time.Duration) *S3PhotoSigner {
	if expiry <= 0 {
		expiry = DefaultPhotoURLExpiry
	}
	presigner := s3.NewPresignClient(s3.NewFromConfig(cfg))
	return &S3PhotoSigner{
		Bucket: bucket,
		Expiry: expiry,
		presign: func(ctx context.Context, params *s3.GetObjectInput, expires time.Duration) (string, error) {
			req, err := presigner.PresignGetObject(ctx, params, s3.WithPresignExpires(expires))
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
	}
}

// SignPhoto generates a presigned URL for reading a photo
func (s *S3PhotoSigner) SignPhoto(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	params := &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}
	url, err := s.presign(ctx, params, s.Expiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign photo %s: %w", key, err)
	}
	return url, nil
}

// StaticPhotoSigner joins keys onto a public base URL, for buckets served through a CDN.
type StaticPhotoSigner struct {
	BaseURL string
}

func (s StaticPhotoSigner) SignPhoto(_ context.Context, key string) (string, error) {
	if key == "" || s.BaseURL == "" {
		return "", nil
	}
	return s.BaseURL + "/" + key, nil
}
