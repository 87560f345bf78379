package objstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"corpus-qa/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of the S3 client used by the loader.
type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader streams documents from an S3 bucket in lexicographic key order.
type S3Loader struct {
	client s3API
	bucket string
	logger *slog.Logger
}

// NewS3Loader constructs a loader over the given bucket.
func NewS3Loader(client s3API, bucket string, logger *slog.Logger) *S3Loader {
	return &S3Loader{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

// LoadDocuments lists objects under prefix, skipping keys at or before
// startAfter, and invokes fn for each object whose key matches one of the
// suffixes (an empty suffix list matches everything). The walk stops on the
// first callback error.
func (l *S3Loader) LoadDocuments(ctx context.Context, prefix, startAfter string, suffixes []string, fn func(domain.SourceDocument) error) error {
	start := time.Now()
	listed := 0
	loaded := 0

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(l.bucket),
		Prefix: aws.String(prefix),
	}
	if startAfter != "" {
		input.StartAfter = aws.String(startAfter)
	}

	for {
		page, err := l.client.ListObjectsV2(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to list objects under %s: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			listed++
			key := aws.ToString(obj.Key)
			if !matchesSuffix(key, suffixes) {
				continue
			}

			body, err := l.getObject(ctx, key)
			if err != nil {
				return err
			}
			loaded++

			if err := fn(domain.SourceDocument{
				Bucket: l.bucket,
				Key:    key,
				Body:   body,
			}); err != nil {
				return err
			}
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
		input.StartAfter = nil
	}

	l.logger.Info("object_walk_completed",
		slog.String("prefix", prefix),
		slog.Int("listed_count", listed),
		slog.Int("loaded_count", loaded),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return nil
}

func (l *S3Loader) getObject(ctx context.Context, key string) (string, error) {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return string(data), nil
}

func matchesSuffix(key string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return true
	}
	for _, s := range suffixes {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

var _ domain.SourceLoader = (*S3Loader)(nil)
