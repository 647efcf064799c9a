// Package export stores serialized log buffers on local disk or in S3.
package export

import (
	"context"
	"net/url"
	"strings"

	apperrors "github.com/turbocompute/gpulogs/internal/errors"
	"github.com/turbocompute/gpulogs/internal/stream"
)

const s3Scheme = "s3"

// NewSink returns the sink for dest: an s3://bucket/prefix URL selects the S3
// sink (credentials from the default AWS chain), anything else is a directory.
func NewSink(ctx context.Context, dest string) (stream.BlobSink, error) {
	if !strings.HasPrefix(dest, s3Scheme+"://") {
		return NewFileSink(dest), nil
	}

	bucket, prefix, err := ParseS3URL(dest)
	if err != nil {
		return nil, err
	}
	sink, err := NewS3SinkFromDefaultConfig(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// ParseS3URL splits s3://bucket/prefix into its bucket and key prefix.
func ParseS3URL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", apperrors.ErrInvalidConfig("invalid export destination "+raw, err)
	}
	if u.Scheme != s3Scheme || u.Host == "" {
		return "", "", apperrors.ErrInvalidConfig("export destination must look like s3://bucket/prefix", nil)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
