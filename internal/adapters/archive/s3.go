package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"

	"github.com/ghalamif/VitalFlow/internal/ports"
)

// Config for an S3-compatible bucket (AWS, MinIO, Garage, R2). Credentials
// normally come from AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY.
type Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Compress        *bool  `yaml:"compress"`
}

func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.Prefix == "" {
		c.Prefix = "vitalflow"
	}
	if c.Compress == nil {
		on := true
		c.Compress = &on
	}
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return errors.New("access_key_id and secret_access_key must be set together")
	}
	return nil
}

// Client is the subset of *s3.Client the archiver uses.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient builds an S3 client. Static credentials are used when configured,
// otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Archiver uploads the summary file under <prefix>/<stamp>_<name>[.gz].
type S3Archiver struct {
	client   Client
	bucket   string
	prefix   string
	compress bool
	now      func() time.Time
}

func NewS3Archiver(client Client, cfg Config) *S3Archiver {
	cfg.ApplyDefaults()
	return &S3Archiver{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		compress: *cfg.Compress,
		now:      time.Now,
	}
}

func (a *S3Archiver) Archive(ctx context.Context, file string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	body := raw
	in := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		ContentType: aws.String("application/json"),
	}
	key := a.Key(file)
	if a.compress {
		body, err = Gzip(raw)
		if err != nil {
			return err
		}
		in.ContentEncoding = aws.String("gzip")
		key += ".gz"
	}
	in.Key = aws.String(key)
	in.Body = bytes.NewReader(body)
	in.ContentLength = aws.Int64(int64(len(body)))

	if _, err := a.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}

func (a *S3Archiver) Key(file string) string {
	stamp := a.now().UTC().Format("20060102T150405Z")
	return path.Join(a.prefix, stamp+"_"+filepath.Base(file))
}

func Gzip(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("gzip summary: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip summary: %w", err)
	}
	return buf.Bytes(), nil
}

var _ ports.Archiver = (*S3Archiver)(nil)
