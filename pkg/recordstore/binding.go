package recordstore

import (
	"context"

	"github.com/nimburion/recordbench/pkg/observability/logger"
)

// Binding is the int-status view of a DB expected by the benchmark harness.
// Every failure is logged here and collapsed to StatusError; nothing panics or
// returns an error across this boundary except the lifecycle hooks.
type Binding struct {
	db  DB
	log logger.Logger
	ctx context.Context
}

// NewBinding wraps db. A nil log discards failures.
func NewBinding(db DB, log logger.Logger) *Binding {
	if log == nil {
		log = logger.NewNop()
	}
	return &Binding{db: db, log: log, ctx: context.Background()}
}

// WithContext returns a copy of b whose operations run under ctx.
func (b *Binding) WithContext(ctx context.Context) *Binding {
	if ctx == nil {
		ctx = context.Background()
	}
	out := *b
	out.ctx = ctx
	out.log = b.log.WithContext(ctx)
	return &out
}

// Init runs the per-worker setup. The error is returned so the caller can tell
// configuration failures apart from connection failures.
func (b *Binding) Init() error {
	if err := b.db.Init(b.ctx); err != nil {
		b.report(OpInit, "", "", err)
		return err
	}
	return nil
}

// Cleanup runs the per-worker teardown.
func (b *Binding) Cleanup() error {
	if err := b.db.Cleanup(b.ctx); err != nil {
		b.report(OpCleanup, "", "", err)
		return err
	}
	return nil
}

// Insert writes a new record and returns its status code.
func (b *Binding) Insert(table, key string, values Record) int {
	return b.status(OpInsert, table, key, b.db.Insert(b.ctx, table, key, values))
}

// Read fills result with the requested fields of the record. result is left
// untouched on failure; a nil result only reports the status.
func (b *Binding) Read(table, key string, fields []string, result Record) int {
	rec, err := b.db.Read(b.ctx, table, key, fields)
	if err != nil {
		return b.status(OpRead, table, key, err)
	}
	if result != nil {
		for field, value := range rec {
			result[field] = value
		}
	}
	return int(StatusOK)
}

// Update overwrites the given fields of an existing record.
func (b *Binding) Update(table, key string, values Record) int {
	return b.status(OpUpdate, table, key, b.db.Update(b.ctx, table, key, values))
}

// Delete removes a record.
func (b *Binding) Delete(table, key string) int {
	return b.status(OpDelete, table, key, b.db.Delete(b.ctx, table, key))
}

// Scan appends up to count records starting at startKey to result.
func (b *Binding) Scan(table, startKey string, count int, fields []string, result *[]Record) int {
	recs, err := b.db.Scan(b.ctx, table, startKey, count, fields)
	if err != nil {
		return b.status(OpScan, table, startKey, err)
	}
	if result != nil {
		*result = append(*result, recs...)
	}
	return int(StatusOK)
}

func (b *Binding) status(op, table, key string, err error) int {
	if err != nil {
		b.report(op, table, key, err)
	}
	return int(StatusOf(err))
}

func (b *Binding) report(op, table, key string, err error) {
	kind := KindOf(err)
	args := []any{"operation", op, "kind", kind.String(), "error", err}
	if table != "" {
		args = append(args, "table", table)
	}
	if key != "" {
		args = append(args, "key", key)
	}
	if kind == KindNotFound {
		b.log.Warn("record operation failed", args...)
		return
	}
	b.log.Error("record operation failed", args...)
}
