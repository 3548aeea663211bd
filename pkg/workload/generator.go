package workload

import (
	"math/rand"
	"strconv"

	"github.com/nimburion/recordbench/pkg/recordstore"
)

const (
	opRead   = recordstore.OpRead
	opUpdate = recordstore.OpUpdate
	opInsert = recordstore.OpInsert
	opScan   = recordstore.OpScan
	opDelete = recordstore.OpDelete
)

// BuildKey returns the record key for key number n.
func BuildKey(prefix string, n int64) string {
	return prefix + strconv.FormatInt(n, 10)
}

// FieldName returns the name of field i.
func FieldName(i int) string {
	return "field" + strconv.Itoa(i)
}

// generator produces keys, values and operations for one worker. It is not
// safe for concurrent use; every worker owns one.
type generator struct {
	cfg     Config
	rng     *rand.Rand
	choices []proportion
	total   float64
}

func newGenerator(cfg Config, seed int64) *generator {
	g := &generator{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		total: cfg.totalWeight(),
	}
	for _, p := range cfg.proportions() {
		if p.weight > 0 {
			g.choices = append(g.choices, p)
		}
	}
	return g
}

// nextOp picks an operation with probability proportional to its weight.
func (g *generator) nextOp() string {
	x := g.rng.Float64() * g.total
	for _, p := range g.choices {
		if x < p.weight {
			return p.op
		}
		x -= p.weight
	}
	return g.choices[len(g.choices)-1].op
}

// value returns FieldLength printable bytes.
func (g *generator) value() []byte {
	b := make([]byte, g.cfg.FieldLength)
	for i := range b {
		b[i] = byte(' ' + g.rng.Intn(95))
	}
	return b
}

// record builds a full record with FieldCount fields.
func (g *generator) record() recordstore.Record {
	rec := make(recordstore.Record, g.cfg.FieldCount)
	for i := 0; i < g.cfg.FieldCount; i++ {
		rec[FieldName(i)] = g.value()
	}
	return rec
}

// updateRecord rewrites one random field.
func (g *generator) updateRecord() recordstore.Record {
	return recordstore.Record{g.randomField(): g.value()}
}

// readFields returns nil for every field or a single random field.
func (g *generator) readFields() []string {
	if g.cfg.ReadAllFields {
		return nil
	}
	return []string{g.randomField()}
}

func (g *generator) randomField() string {
	return FieldName(g.rng.Intn(g.cfg.FieldCount))
}

// keyNumber draws uniformly from [0, limit).
func (g *generator) keyNumber(limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	return g.rng.Int63n(limit)
}

func (g *generator) scanLength() int {
	return 1 + g.rng.Intn(g.cfg.MaxScanLength)
}
