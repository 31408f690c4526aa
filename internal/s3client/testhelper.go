package s3client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// Fake is an in-memory S3 server for tests. Clients created from the same
// Fake see each other's objects, like two processes sharing a bucket.
type Fake struct {
	URL     string
	buckets map[string]bool
}

// NewFake starts a gofakes3 server that is closed when the test completes.
func NewFake(t testing.TB) *Fake {
	t.Helper()
	ts := httptest.NewServer(gofakes3.New(s3mem.New()).Server())
	t.Cleanup(ts.Close)
	return &Fake{URL: ts.URL, buckets: make(map[string]bool)}
}

// Client returns a client for bucket on the fake server, creating the bucket on first use.
func (f *Fake) Client(t testing.TB, bucket, prefix string) *Client {
	t.Helper()
	ctx := context.Background()
	c, err := New(ctx, Config{
		Endpoint:        f.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		BucketName:      bucket,
		Prefix:          prefix,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	if !f.buckets[bucket] {
		if _, err := c.api.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
			t.Fatalf("failed to create test bucket: %v", err)
		}
		f.buckets[bucket] = true
	}
	return c
}

// TestClient returns a client on a fresh fake server.
func TestClient(t testing.TB, bucket, prefix string) *Client {
	t.Helper()
	return NewFake(t).Client(t, bucket, prefix)
}
