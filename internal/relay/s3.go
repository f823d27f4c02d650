package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config describes the bucket receiving store snapshots.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// ObjectPutter is the part of *s3.Client the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads every published file twice: once under
// <prefix>/latest/<name> and once under <prefix>/<timestamp>/<name>.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Publisher builds an S3 client from cfg. Static credentials are used
// when both keys are set; the default AWS chain otherwise.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3PublisherWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3PublisherWithClient wraps an existing client.
func NewS3PublisherWithClient(client ObjectPutter, bucket, prefix string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Publish uploads paths with message stored as object metadata.
func (p *S3Publisher) Publish(ctx context.Context, paths []string, message string) error {
	stamp := p.now().UTC().Format("20060102T150405.000000000Z")
	for _, local := range paths {
		data, err := os.ReadFile(local)
		if err != nil {
			return fmt.Errorf("s3: read %s: %w", local, err)
		}
		name := filepath.Base(local)
		for _, key := range []string{
			path.Join(p.prefix, "latest", name),
			path.Join(p.prefix, stamp, name),
		} {
			_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:      aws.String(p.bucket),
				Key:         aws.String(key),
				Body:        bytes.NewReader(data),
				ContentType: aws.String("application/json"),
				// metadata travels as HTTP headers, so non-ASCII is escaped
				Metadata: map[string]string{"message": url.QueryEscape(message)},
			})
			if err != nil {
				return fmt.Errorf("s3: put %s: %w", key, err)
			}
		}
	}
	return nil
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

// Publish calls each publisher in order, even after a failure.
func (f Fanout) Publish(ctx context.Context, paths []string, message string) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, paths, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
