package publishers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Publisher uploads the written feed file so it can be served statically.
type s3Publisher struct {
	id     string
	cfg    S3PublisherConfig
	client s3API
	log    Logger
}

func newS3Publisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.S3 == nil {
		return nil, fmt.Errorf("publisher %q missing s3 configuration", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.S3.AWSCredentials)
	if err != nil {
		return nil, fmt.Errorf("publisher %q: %w", cfg.ID, err)
	}
	usePathStyle := cfg.S3.UsePathStyle
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})
	return &s3Publisher{id: cfg.ID, cfg: *cfg.S3, client: client, log: ensureLogger(log)}, nil
}

func (p *s3Publisher) ID() string   { return p.id }
func (p *s3Publisher) Type() string { return TypeS3 }

// ObjectKey is the prefix joined with the feed file's base name.
func (p *s3Publisher) ObjectKey(outputPath string) string {
	name := filepath.Base(outputPath)
	if p.cfg.Prefix == "" {
		return name
	}
	return path.Join(p.cfg.Prefix, name)
}

// Publish reads the feed file named by the event and puts it in the bucket.
func (p *s3Publisher) Publish(ctx context.Context, evt Event) error {
	if evt.OutputPath == "" {
		return errors.New("s3 publisher: event has no output path")
	}
	data, err := os.ReadFile(evt.OutputPath)
	if err != nil {
		return fmt.Errorf("s3 publisher %s: read feed: %w", p.id, err)
	}

	key := p.ObjectKey(evt.OutputPath)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(p.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(p.cfg.ContentType),
		Metadata: map[string]string{
			"feed":   evt.Feed,
			"run-id": evt.RunID,
		},
	}
	if p.cfg.CacheControl != "" {
		in.CacheControl = aws.String(p.cfg.CacheControl)
	}
	if _, err := p.client.PutObject(ctx, in); err != nil {
		p.log.ErrorObj("s3 publisher upload failed", "publisher_s3_error", map[string]any{
			"bucket": p.cfg.Bucket,
			"key":    key,
			"error":  err.Error(),
		})
		return fmt.Errorf("put s3://%s/%s: %w", p.cfg.Bucket, key, err)
	}
	p.log.InfoObj("feed uploaded", "publisher_s3_delivery", map[string]any{
		"bucket": p.cfg.Bucket,
		"key":    key,
		"bytes":  len(data),
	})
	return nil
}
