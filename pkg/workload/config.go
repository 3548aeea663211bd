// Package workload is a small multi-threaded driver for a recordstore.DB. It
// loads a key space and then runs a proportional mix of operations against it,
// one Binding per worker, the way a benchmark harness does.
package workload

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks workload settings that cannot be run.
var ErrInvalidConfig = errors.New("invalid workload config")

// Config describes the data set and the operation mix.
type Config struct {
	Table          string
	RecordCount    int
	OperationCount int
	Threads        int
	FieldCount     int
	FieldLength    int
	// ReadAllFields reads every field; otherwise one random field is projected.
	ReadAllFields bool

	ReadProportion   float64
	UpdateProportion float64
	InsertProportion float64
	ScanProportion   float64
	DeleteProportion float64
	MaxScanLength    int

	KeyPrefix string
	// Target caps throughput in operations per second across all workers; 0 is unthrottled.
	Target float64
	// Seed makes field values and the operation sequence reproducible; 0 seeds from the clock.
	Seed int64
}

// DefaultConfig mirrors the read-mostly core workload.
func DefaultConfig() Config {
	return Config{
		Table:            "usertable",
		RecordCount:      1000,
		OperationCount:   1000,
		Threads:          1,
		FieldCount:       10,
		FieldLength:      100,
		ReadAllFields:    true,
		ReadProportion:   0.95,
		UpdateProportion: 0.05,
		MaxScanLength:    100,
		KeyPrefix:        "user",
	}
}

// Validate reports every setting that would make the run meaningless.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Table == "" {
		add("table is required")
	}
	if c.Threads <= 0 {
		add("threads must be positive, got %d", c.Threads)
	}
	if c.RecordCount < 0 {
		add("record count must not be negative, got %d", c.RecordCount)
	}
	if c.OperationCount < 0 {
		add("operation count must not be negative, got %d", c.OperationCount)
	}
	if c.FieldCount <= 0 {
		add("field count must be positive, got %d", c.FieldCount)
	}
	if c.FieldLength <= 0 {
		add("field length must be positive, got %d", c.FieldLength)
	}
	if c.MaxScanLength <= 0 {
		add("max scan length must be positive, got %d", c.MaxScanLength)
	}
	if c.Target < 0 {
		add("target must not be negative, got %v", c.Target)
	}
	for _, p := range c.proportions() {
		if p.weight < 0 {
			add("%s proportion must not be negative, got %v", p.op, p.weight)
		}
	}
	if c.totalWeight() <= 0 {
		add("operation proportions must sum to a positive number")
	}
	return errors.Join(errs...)
}

type proportion struct {
	op     string
	weight float64
}

func (c Config) proportions() []proportion {
	return []proportion{
		{opRead, c.ReadProportion},
		{opUpdate, c.UpdateProportion},
		{opInsert, c.InsertProportion},
		{opScan, c.ScanProportion},
		{opDelete, c.DeleteProportion},
	}
}

func (c Config) totalWeight() float64 {
	var total float64
	for _, p := range c.proportions() {
		if p.weight > 0 {
			total += p.weight
		}
	}
	return total
}
