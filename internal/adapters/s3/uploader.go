// Package s3 stores event images in an S3 compatible bucket.
package s3

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"

	"github.com/robertarktes/venue-ticketing/internal/config"
)

type Uploader struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      config.S3Config
}

func NewUploader(ctx context.Context, cfg config.S3Config) (*Uploader, error) {
	if !cfg.Enabled() {
		return nil, errors.New("s3 bucket and credentials are required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Uploader{client: client, uploader: manager.NewUploader(client), cfg: cfg}, nil
}

// Upload stores body under key and returns the URL it is served from.
func (u *Uploader) Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) (string, error) {
	key = strings.TrimPrefix(key, "/")
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		CacheControl:  aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "upload %s", key)
	}
	return u.URL(key), nil
}

func (u *Uploader) URL(key string) string {
	return PublicURL(u.cfg, key)
}

// PublicURL builds the address of key, preferring the configured public base.
func PublicURL(cfg config.S3Config, key string) string {
	key = strings.TrimPrefix(key, "/")
	if cfg.PublicURL != "" {
		return strings.TrimSuffix(cfg.PublicURL, "/") + "/" + key
	}
	if cfg.Endpoint != "" {
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket + "/" + key
	}
	return "https://" + cfg.Bucket + ".s3." + cfg.Region + ".amazonaws.com/" + key
}

// HealthCheck lists at most one object to confirm the bucket is reachable.
func (u *Uploader) HealthCheck(ctx context.Context) error {
	_, err := u.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(u.cfg.Bucket),
		MaxKeys: aws.Int32(1),
	})
	return err
}
