package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kuitang/pocketnotes/internal/s3client"
)

// Kind names a backend implementation.
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
	KindS3     Kind = "s3"
)

// Kinds lists every supported backend, in the order shown in help text.
var Kinds = []Kind{KindMemory, KindFile, KindSQLite, KindS3}

// Valid reports whether k is a supported backend.
func (k Kind) Valid() bool {
	switch k {
	case KindMemory, KindFile, KindSQLite, KindS3:
		return true
	default:
		return false
	}
}

// Options selects and configures a backend.
type Options struct {
	Kind       Kind
	Dir        string // file and sqlite backends
	RecordName string
	SQLiteKey  []byte // optional SQLCipher key
	MasterKey  []byte // optional; wraps the backend with envelope encryption
	S3         s3client.Config
	// S3PollInterval sets how often the s3 backend's Watch polls; zero uses the default.
	S3PollInterval time.Duration
}

// SQLiteFilename is the database file created under Dir by the sqlite backend.
const SQLiteFilename = "pocketnotes.db"

// Open constructs the backend described by opts.
func Open(ctx context.Context, opts Options) (Backend, error) {
	if opts.RecordName == "" {
		return nil, fmt.Errorf("record name is required")
	}

	var (
		b   Backend
		err error
	)
	switch opts.Kind {
	case KindMemory:
		b = NewMemory()
	case KindFile:
		b, err = NewFile(opts.Dir, opts.RecordName)
	case KindSQLite:
		b, err = OpenSQLite(filepath.Join(opts.Dir, SQLiteFilename), opts.RecordName, opts.SQLiteKey)
	case KindS3:
		var client *s3client.Client
		client, err = s3client.New(ctx, opts.S3)
		if err == nil {
			b = NewS3(client, opts.RecordName, opts.S3PollInterval)
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", opts.Kind, err)
	}

	if opts.MasterKey != nil {
		enc, err := NewEncrypted(b, opts.MasterKey, opts.RecordName)
		if err != nil {
			b.Close()
			return nil, err
		}
		return enc, nil
	}
	return b, nil
}
