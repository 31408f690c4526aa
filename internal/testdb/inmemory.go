// Package testdb opens isolated in-memory record databases for tests.
package testdb

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kuitang/pocketnotes/internal/db"
)

var seq atomic.Int64

// Key is the SQLCipher key every test database is encrypted with.
var Key = bytes.Repeat([]byte{0x42}, db.KeySize)

// New returns an encrypted in-memory database that is closed when the test ends.
// Durability pragmas are off; nothing outlives the test.
func New(t testing.TB) *db.DB {
	t.Helper()
	name := fmt.Sprintf("%s-%d", strings.Map(dsnSafe, t.Name()), seq.Add(1))
	d, err := db.OpenInMemory(name, Key)
	if err != nil {
		t.Fatalf("testdb: open %s: %v", name, err)
	}
	t.Cleanup(func() { d.Close() })

	for _, pragma := range []string{
		"PRAGMA journal_mode=MEMORY",
		"PRAGMA synchronous=OFF",
		"PRAGMA temp_store=MEMORY",
	} {
		if _, err := d.SQL().Exec(pragma); err != nil {
			t.Fatalf("testdb: %s: %v", pragma, err)
		}
	}
	return d
}

// dsnSafe keeps a test name usable inside a file: URI.
func dsnSafe(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return r
	}
	return '_'
}

// Seed writes a record directly, bypassing any storage backend.
func Seed(t testing.TB, d *db.DB, name string, data []byte) {
	t.Helper()
	if err := d.PutRecord(context.Background(), name, data); err != nil {
		t.Fatalf("testdb: seed %q: %v", name, err)
	}
}

// Corrupt overwrites a record's data without updating its checksum.
func Corrupt(t testing.TB, d *db.DB, name string) {
	t.Helper()
	res, err := d.SQL().Exec(`UPDATE records SET data = CAST('tampered' AS BLOB) WHERE name = ?`, name)
	if err != nil {
		t.Fatalf("testdb: corrupt %q: %v", name, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("testdb: corrupt %q: no such record", name)
	}
}
