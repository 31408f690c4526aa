package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/kuitang/pocketnotes/internal/db"
)

// SQLite stores the record as one row of a SQLCipher database.
type SQLite struct {
	db   *db.DB
	name string
	own  bool
}

// OpenSQLite opens (or creates) the database at path. key may be nil for an
// unencrypted file.
func OpenSQLite(path, name string, key []byte) (*SQLite, error) {
	d, err := db.Open(path, key)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: d, name: name, own: true}, nil
}

// NewSQLite uses an already open database. Close leaves it open.
func NewSQLite(d *db.DB, name string) *SQLite {
	return &SQLite{db: d, name: name}
}

// Load reads the record row.
func (s *SQLite) Load(ctx context.Context) ([]byte, error) {
	rec, err := s.db.GetRecord(ctx, s.name)
	if errors.Is(err, db.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite storage: %w", err)
	}
	return rec.Data, nil
}

// Save upserts the record row.
func (s *SQLite) Save(ctx context.Context, data []byte) error {
	if err := s.db.PutRecord(ctx, s.name, data); err != nil {
		return fmt.Errorf("sqlite storage: %w", err)
	}
	return nil
}

// Close closes the database if this backend opened it.
func (s *SQLite) Close() error {
	if !s.own {
		return nil
	}
	return s.db.Close()
}
