package db

// RecordsSchema holds named blobs. The notes collection is one row.
// checksum is sha3-256 of data, computed by record_checksum on write.
const RecordsSchema = `
CREATE TABLE IF NOT EXISTS records (
    name TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    checksum BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`
