package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/turbocompute/gpulogs/internal/constants"
	apperrors "github.com/turbocompute/gpulogs/internal/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client defines the S3 operations used by the sink.
// This interface makes the code easier to test by allowing mock implementations.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads exports as objects under bucket/prefix.
type S3Sink struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3Sink creates a sink on an existing client.
func NewS3Sink(client S3Client, bucket, prefix string) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// NewS3SinkFromDefaultConfig loads credentials and region from the default
// AWS chain (env, shared config, instance role).
func NewS3SinkFromDefaultConfig(ctx context.Context, bucket, prefix string) (*S3Sink, error) {
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, apperrors.ErrInvalidConfig("failed to load AWS configuration", err)
	}
	return NewS3Sink(s3.NewFromConfig(awsCfg), bucket, prefix), nil
}

// Save uploads data and returns its s3:// URL.
func (s *S3Sink) Save(ctx context.Context, name string, data []byte) (string, error) {
	key := path.Join(s.prefix, name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(constants.ContentTypeText),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && isDeniedCode(apiErr.ErrorCode()) {
			return "", apperrors.ErrExportDenied(
				fmt.Sprintf("access to s3://%s/%s denied, check the bucket policy and credentials", s.bucket, key), err)
		}
		return "", apperrors.ErrServiceUnavailable("failed to upload to S3", err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func isDeniedCode(code string) bool {
	switch code {
	case "AccessDenied", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return true
	default:
		return false
	}
}
