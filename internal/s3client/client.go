// Package s3client stores whole records as JSON objects in one bucket.
// Production points it at any S3-compatible endpoint; tests use gofakes3.
package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("s3client: object not found")

const recordContentType = "application/json"

// Client wraps an S3 client bound to one bucket and key prefix.
type Client struct {
	api    *s3.Client
	bucket string
	prefix string
}

// Config holds the configuration for creating an S3 client.
type Config struct {
	// Endpoint is the S3 endpoint URL. Leave empty to use AWS S3.
	Endpoint string
	// Region is the AWS region ("auto" for Tigris, "us-east-1" for AWS).
	Region string
	// AccessKeyID is the S3 access key. Empty falls back to the default credential chain.
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	// Prefix is prepended to every key, e.g. "pocketnotes/".
	Prefix string
	// UsePathStyle enables path-style addressing (required by most S3-compatible services).
	UsePathStyle bool
}

// Info describes a stored object without its body.
type Info struct {
	ETag         string
	Size         int64
	LastModified time.Time
}

// New creates a client for cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("s3client: bucket name is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &Client{api: api, bucket: cfg.BucketName, prefix: normalizePrefix(cfg.Prefix)}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// Key returns the full object key for name.
func (c *Client) Key(name string) string {
	return c.prefix + strings.TrimPrefix(name, "/")
}

// Put uploads data as the JSON object name and returns its new ETag.
func (c *Client) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := c.Key(name)
	out, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(recordContentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3client: failed to put object %q: %w", key, err)
	}
	return aws.ToString(out.ETag), nil
}

// Get downloads the object name with its ETag.
// Returns ErrObjectNotFound if the key does not exist.
func (c *Client) Get(ctx context.Context, name string) ([]byte, string, error) {
	key := c.Key(name)
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("s3client: failed to get object %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("s3client: failed to read object body %q: %w", key, err)
	}
	return data, aws.ToString(out.ETag), nil
}

// Stat returns the object's metadata. Returns ErrObjectNotFound if the key does not exist.
func (c *Client) Stat(ctx context.Context, name string) (Info, error) {
	key := c.Key(name)
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return Info{}, ErrObjectNotFound
		}
		return Info{}, fmt.Errorf("s3client: failed to stat object %q: %w", key, err)
	}
	return Info{
		ETag:         aws.ToString(out.ETag),
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// Delete removes the object name. Deleting a missing object succeeds.
func (c *Client) Delete(ctx context.Context, name string) error {
	key := c.Key(name)
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3client: failed to delete object %q: %w", key, err)
	}
	return nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// isNotFound matches both GetObject's NoSuchKey and HeadObject's bodiless 404.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
