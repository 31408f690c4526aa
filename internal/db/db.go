// Package db stores named records in a single SQLCipher database file.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// MaxOpenConns caps the pool. SQLite is single-writer, so more is counterproductive.
	MaxOpenConns = 2

	// MaxIdleConns is the number of idle connections kept.
	MaxIdleConns = 1

	// KeySize is the SQLCipher raw key length.
	KeySize = 32
)

var (
	// ErrRecordNotFound is returned when no record has the requested name.
	ErrRecordNotFound = errors.New("db: record not found")

	// ErrChecksumMismatch is returned when stored data no longer matches its checksum.
	ErrChecksumMismatch = errors.New("db: record checksum mismatch")
)

// DB wraps a records database.
type DB struct {
	db *sql.DB
}

// Record is one named blob.
type Record struct {
	Name      string
	Data      []byte
	UpdatedAt time.Time
}

// Open opens (creating if needed) the database file at path.
// A non-nil key encrypts the file with SQLCipher; the same key must be used to reopen it.
func Open(path string, key []byte) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := path
	if key != nil {
		if len(key) != KeySize {
			return nil, fmt.Errorf("database key must be exactly %d bytes, got %d", KeySize, len(key))
		}
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", path, hex.EncodeToString(key))
	}
	dsn = appendSQLiteParams(dsn, sqliteCommonParams())

	return openDSN(dsn)
}

// OpenInMemory opens a private in-memory database, optionally encrypted.
// name isolates databases sharing the process-wide memory cache.
func OpenInMemory(name string, key []byte) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	if key != nil {
		dsn += fmt.Sprintf("&_pragma_key=x'%s'&_pragma_cipher_page_size=4096", hex.EncodeToString(key))
	}
	return openDSN(dsn)
}

func openDSN(dsn string) (*DB, error) {
	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)

	// A wrong encryption key surfaces on the first real query.
	var sqliteVersion string
	if err := sqlDB.QueryRow("SELECT sqlite_version()").Scan(&sqliteVersion); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	if _, err := sqlDB.Exec(RecordsSchema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize records schema: %w", err)
	}
	return &DB{db: sqlDB}, nil
}

// GetRecord reads the named record and verifies its checksum.
func (d *DB) GetRecord(ctx context.Context, name string) (Record, error) {
	var (
		rec       = Record{Name: name}
		stored    []byte
		computed  []byte
		updatedMs int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT data, checksum, record_checksum(data), updated_at FROM records WHERE name = ?`, name,
	).Scan(&rec.Data, &stored, &computed, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read record %q: %w", name, err)
	}
	if !bytes.Equal(stored, computed) {
		return Record{}, fmt.Errorf("%w: %q", ErrChecksumMismatch, name)
	}
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return rec, nil
}

// PutRecord inserts or replaces the named record.
func (d *DB) PutRecord(ctx context.Context, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO records (name, data, checksum, updated_at)
		VALUES (?1, ?2, record_checksum(?2), ?3)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at`,
		name, data, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to write record %q: %w", name, err)
	}
	return nil
}

// DeleteRecord removes the named record. Deleting a missing record is not an error.
func (d *DB) DeleteRecord(ctx context.Context, name string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM records WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete record %q: %w", name, err)
	}
	return nil
}

// SQL returns the underlying sql.DB for direct access when needed
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Close closes the database.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func sqliteCommonParams() string {
	// WAL + NORMAL gives good throughput while preserving safety.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
