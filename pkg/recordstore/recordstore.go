// Package recordstore defines the record-level contract a benchmark harness
// drives: insert, read, update, delete and range scan over (table, key) records
// whose value is a sparse map of field name to opaque bytes.
package recordstore

import "context"

// Record is the value of one record: field name to raw bytes. The key is not part of it.
type Record map[string][]byte

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for field, value := range r {
		out[field] = append([]byte(nil), value...)
	}
	return out
}

// Store is the data half of the contract. Every method blocks on the backing
// store and reports failures as *Error.
type Store interface {
	// Insert writes a new record with the given fields.
	Insert(ctx context.Context, table, key string, values Record) error

	// Read returns the record stored under key. A nil fields slice reads every field.
	// A missing key yields a KindNotFound error and an empty record.
	Read(ctx context.Context, table, key string, fields []string) (Record, error)

	// Update overwrites the listed fields of an existing record and leaves the rest untouched.
	Update(ctx context.Context, table, key string, values Record) error

	// Delete removes the record stored under key.
	Delete(ctx context.Context, table, key string) error

	// Scan returns at most count records whose key is >= startKey, in the
	// order the backing store yields them.
	Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]Record, error)
}

// DB is a Store plus the per-worker lifecycle hooks. A harness creates one DB
// per worker, calls Init before the first operation and Cleanup after the last.
type DB interface {
	Store
	Init(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// Operation names used in errors, logs and metrics.
const (
	OpInit    = "init"
	OpCleanup = "cleanup"
	OpInsert  = "insert"
	OpRead    = "read"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpScan    = "scan"
)
