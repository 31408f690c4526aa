package db

import (
	"crypto/sha3"
	"database/sql"
	"fmt"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

// SQLiteDriverName is the SQLCipher driver with the record checksum function registered.
const SQLiteDriverName = "sqlite3_pocketnotes"

// checksumFunc is the SQL name of Checksum.
const checksumFunc = "record_checksum"

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc(checksumFunc, sqlChecksum, true); err != nil {
				return fmt.Errorf("register %s SQL function: %w", checksumFunc, err)
			}
			return nil
		},
	})
}

// Checksum is the SHA3-256 digest stored next to every record.
func Checksum(data []byte) []byte {
	sum := sha3.Sum256(data)
	return sum[:]
}

// sqlChecksum adapts Checksum to SQLite values. TEXT and BLOB hash their
// bytes; NULL hashes as empty.
func sqlChecksum(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return Checksum(nil), nil
	case []byte:
		return Checksum(x), nil
	case string:
		return Checksum([]byte(x)), nil
	default:
		return nil, fmt.Errorf("%s: unsupported input type %T", checksumFunc, v)
	}
}
