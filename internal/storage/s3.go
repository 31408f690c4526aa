package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kuitang/pocketnotes/internal/obs"
	"github.com/kuitang/pocketnotes/internal/s3client"
)

// DefaultS3PollInterval is how often Watch checks the object's ETag.
const DefaultS3PollInterval = 5 * time.Second

// S3 stores the record as the object <prefix>/<name>.json.
type S3 struct {
	client       *s3client.Client
	object       string
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewS3 returns a backend writing the named record through client.
// A non-positive pollInterval uses DefaultS3PollInterval.
func NewS3(client *s3client.Client, name string, pollInterval time.Duration) *S3 {
	if pollInterval <= 0 {
		pollInterval = DefaultS3PollInterval
	}
	return &S3{
		client:       client,
		object:       name + ".json",
		pollInterval: pollInterval,
		logger:       obs.Pkg("storage").With("backend", "s3", "key", client.Key(name+".json")),
	}
}

// Load downloads the record object.
func (s *S3) Load(ctx context.Context) ([]byte, error) {
	data, _, err := s.client.Get(ctx, s.object)
	if errors.Is(err, s3client.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save uploads the record object.
func (s *S3) Save(ctx context.Context, data []byte) error {
	_, err := s.client.Put(ctx, s.object, data)
	return err
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *S3) Close() error {
	return nil
}

// Watch polls the object's ETag and calls onChange when it differs from the
// previous poll. Saves made through this backend are reported too; the store
// ignores reloads whose bytes match its last flush.
func (s *S3) Watch(ctx context.Context, onChange func()) error {
	last, err := s.etag(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("storage_watch_started", "interval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current, err := s.etag(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("storage_watch_error", "error", err)
				continue
			}
			if current != last {
				last = current
				onChange()
			}
		}
	}
}

// etag returns the object's current ETag, or "" when it does not exist.
func (s *S3) etag(ctx context.Context) (string, error) {
	info, err := s.client.Stat(ctx, s.object)
	if errors.Is(err, s3client.ErrObjectNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return info.ETag, nil
}
