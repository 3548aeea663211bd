package recordstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/recordbench/pkg/observability/metrics"
	"github.com/nimburion/recordbench/pkg/observability/tracing"
)

// InstrumentOption configures Instrument.
type InstrumentOption func(*instrumented)

// WithMetrics records latency, outcome and in-flight counts into m.
func WithMetrics(m *metrics.StoreMetrics) InstrumentOption {
	return func(i *instrumented) { i.metrics = m }
}

// WithSystem tags spans with the database system, e.g. "mongodb".
func WithSystem(system string) InstrumentOption {
	return func(i *instrumented) { i.system = system }
}

// WithDatabaseName tags spans with the database name.
func WithDatabaseName(name string) InstrumentOption {
	return func(i *instrumented) { i.database = name }
}

// Instrument wraps db so every operation opens a span on the global tracer
// provider and, with WithMetrics, feeds the Prometheus collectors. Errors pass
// through unchanged.
func Instrument(db DB, opts ...InstrumentOption) DB {
	i := &instrumented{next: db}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type instrumented struct {
	next     DB
	metrics  *metrics.StoreMetrics
	system   string
	database string
}

var spanOperations = map[string]tracing.SpanOperation{
	OpInsert: tracing.SpanOperationDBInsert,
	OpRead:   tracing.SpanOperationDBRead,
	OpUpdate: tracing.SpanOperationDBUpdate,
	OpDelete: tracing.SpanOperationDBDelete,
	OpScan:   tracing.SpanOperationDBScan,
}

// observation is one in-progress operation.
type observation struct {
	i     *instrumented
	op    string
	table string
	span  trace.Span
	start time.Time
	done  func()
}

func (i *instrumented) begin(ctx context.Context, op, table, key string, extra ...tracing.DatabaseSpanOption) (context.Context, *observation) {
	opts := []tracing.DatabaseSpanOption{tracing.WithDBTable(table), tracing.WithDBKey(key)}
	if i.system != "" {
		opts = append(opts, tracing.WithDBSystem(i.system))
	}
	if i.database != "" {
		opts = append(opts, tracing.WithDBName(i.database))
	}
	opts = append(opts, extra...)
	ctx, span := tracing.StartDatabaseSpan(ctx, spanOperations[op], opts...)

	o := &observation{i: i, op: op, table: table, span: span, done: func() {}}
	if i.metrics != nil {
		o.done = i.metrics.Begin(op)
	}
	o.start = time.Now()
	return ctx, o
}

func (o *observation) end(err error) {
	elapsed := time.Since(o.start)
	o.done()
	if o.i.metrics != nil {
		o.i.metrics.Observe(o.op, o.table, Outcome(err), elapsed)
	}
	if err != nil {
		tracing.RecordError(o.span, err)
	} else {
		tracing.RecordSuccess(o.span)
	}
	o.span.End()
}

func (i *instrumented) Init(ctx context.Context) error {
	return i.next.Init(ctx)
}

func (i *instrumented) Cleanup(ctx context.Context) error {
	return i.next.Cleanup(ctx)
}

func (i *instrumented) Insert(ctx context.Context, table, key string, values Record) error {
	ctx, o := i.begin(ctx, OpInsert, table, key)
	err := i.next.Insert(ctx, table, key, values)
	o.end(err)
	return err
}

func (i *instrumented) Read(ctx context.Context, table, key string, fields []string) (Record, error) {
	ctx, o := i.begin(ctx, OpRead, table, key)
	rec, err := i.next.Read(ctx, table, key, fields)
	o.end(err)
	return rec, err
}

func (i *instrumented) Update(ctx context.Context, table, key string, values Record) error {
	ctx, o := i.begin(ctx, OpUpdate, table, key)
	err := i.next.Update(ctx, table, key, values)
	o.end(err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, table, key string) error {
	ctx, o := i.begin(ctx, OpDelete, table, key)
	err := i.next.Delete(ctx, table, key)
	o.end(err)
	return err
}

func (i *instrumented) Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]Record, error) {
	ctx, o := i.begin(ctx, OpScan, table, startKey, tracing.WithDBRecordCount(count))
	recs, err := i.next.Scan(ctx, table, startKey, count, fields)
	o.end(err)
	return recs, err
}
