package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/nimburion/recordbench/pkg/recordstore"
)

// MemDB is an in-memory recordstore.DB safe for concurrent use by many workers.
// Scans return keys in ascending order.
type MemDB struct {
	mu     sync.RWMutex
	tables map[string]map[string]recordstore.Record

	// InitErr, when set, is returned by every Init call.
	InitErr error

	inits    atomic.Int64
	cleanups atomic.Int64
}

// NewMemDB returns an empty MemDB.
func NewMemDB() *MemDB {
	return &MemDB{tables: make(map[string]map[string]recordstore.Record)}
}

// Inits reports how many times Init succeeded.
func (m *MemDB) Inits() int64 { return m.inits.Load() }

// Cleanups reports how many times Cleanup ran.
func (m *MemDB) Cleanups() int64 { return m.cleanups.Load() }

// Len returns the number of records in table.
func (m *MemDB) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func (m *MemDB) Init(context.Context) error {
	if m.InitErr != nil {
		return m.InitErr
	}
	m.inits.Add(1)
	return nil
}

func (m *MemDB) Cleanup(context.Context) error {
	m.cleanups.Add(1)
	return nil
}

func (m *MemDB) Insert(ctx context.Context, table, key string, values recordstore.Record) error {
	if err := check(ctx, recordstore.OpInsert, table, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tables[table]
	if !ok {
		rows = make(map[string]recordstore.Record)
		m.tables[table] = rows
	}
	if _, exists := rows[key]; exists {
		return recordstore.NewError(recordstore.OpInsert, table, key, recordstore.KindWriteConflict, errors.New("duplicate key"))
	}
	rows[key] = values.Clone()
	return nil
}

func (m *MemDB) Read(ctx context.Context, table, key string, fields []string) (recordstore.Record, error) {
	if err := check(ctx, recordstore.OpRead, table, key); err != nil {
		return recordstore.Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tables[table][key]
	if !ok {
		return recordstore.Record{}, recordstore.NewError(recordstore.OpRead, table, key, recordstore.KindNotFound, nil)
	}
	return project(rec, fields), nil
}

func (m *MemDB) Update(ctx context.Context, table, key string, values recordstore.Record) error {
	if err := check(ctx, recordstore.OpUpdate, table, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tables[table][key]
	if !ok {
		return recordstore.NewError(recordstore.OpUpdate, table, key, recordstore.KindNotFound, nil)
	}
	for field, value := range values {
		rec[field] = append([]byte(nil), value...)
	}
	return nil
}

func (m *MemDB) Delete(ctx context.Context, table, key string) error {
	if err := check(ctx, recordstore.OpDelete, table, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table][key]; !ok {
		return recordstore.NewError(recordstore.OpDelete, table, key, recordstore.KindNotFound, nil)
	}
	delete(m.tables[table], key)
	return nil
}

func (m *MemDB) Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]recordstore.Record, error) {
	if err := check(ctx, recordstore.OpScan, table, startKey); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, recordstore.NewError(recordstore.OpScan, table, startKey, recordstore.KindInvalidInput, errors.New("count must be positive"))
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.tables[table]
	keys := make([]string, 0, len(rows))
	for key := range rows {
		if key >= startKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if len(keys) > count {
		keys = keys[:count]
	}
	out := make([]recordstore.Record, 0, len(keys))
	for _, key := range keys {
		out = append(out, project(rows[key], fields))
	}
	return out, nil
}

func check(ctx context.Context, op, table, key string) error {
	if err := ctx.Err(); err != nil {
		return recordstore.NewError(op, table, key, recordstore.KindConnection, err)
	}
	if table == "" {
		return recordstore.NewError(op, table, key, recordstore.KindInvalidInput, errors.New("table name is required"))
	}
	return nil
}

func project(rec recordstore.Record, fields []string) recordstore.Record {
	if fields == nil {
		return rec.Clone()
	}
	out := make(recordstore.Record, len(fields))
	for _, field := range fields {
		if value, ok := rec[field]; ok {
			out[field] = append([]byte(nil), value...)
		}
	}
	return out
}
