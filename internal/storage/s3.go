package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrS3NotConfigured is returned when publishing without a bucket or region.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// S3Config holds the configuration for S3 publishing.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: custom S3-compatible endpoint
	AccessKeyID     string // Optional: static credentials
	SecretAccessKey string // Optional: static credentials
	Prefix          string // Optional: key prefix
}

// Enabled reports whether publishing was requested.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// putObjectAPI is the subset of *s3.Client used by Publisher.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads finished outputs to a bucket.
type Publisher struct {
	client putObjectAPI
	cfg    S3Config
	retry  RetryConfig
}

// NewPublisher builds an S3 client from the default AWS configuration chain,
// overridden by static credentials and a custom endpoint when set.
func NewPublisher(ctx context.Context, cfg S3Config) (*Publisher, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrS3NotConfigured
	}

	configOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return newPublisher(s3.NewFromConfig(awsCfg, clientOpts...), cfg), nil
}

func newPublisher(client putObjectAPI, cfg S3Config) *Publisher {
	return &Publisher{client: client, cfg: cfg, retry: DefaultRetry}
}

// Key returns the object key for a local file.
func (p *Publisher) Key(localPath string) string {
	return path.Join(p.cfg.Prefix, filepath.Base(localPath))
}

// Publish uploads localPath and returns the object URL. Transient
// failures are retried with backoff, reopening the file each attempt.
func (p *Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	key := p.Key(localPath)
	_, err := retryWithBackoff(ctx, p.retry, func() (struct{}, error) {
		return struct{}{}, p.put(ctx, localPath, key)
	}, isTransient)
	if err != nil {
		return "", err
	}
	return p.URL(key), nil
}

func (p *Publisher) put(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath) // #nosec G304 -- path is the output this run produced
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = f.Close() }()

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := contentType(localPath); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload to S3: %w", err)
	}
	return nil
}

// URL returns the address of key: path-style under a custom endpoint,
// virtual-hosted style on AWS.
func (p *Publisher) URL(key string) string {
	if p.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(p.cfg.Endpoint, "/"), p.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, key)
}

// mediaTypes covers the containers FFmpeg writes most often; the mime
// package only knows them when the host has a mime.types file.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4a":  "audio/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
}

func contentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}
