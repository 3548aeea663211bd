package workload

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/nimburion/recordbench/pkg/recordstore"
	"github.com/puzpuzpuz/xsync/v3"
)

// Phase names a workload stage.
type Phase string

const (
	PhaseLoad Phase = "load"
	PhaseRun  Phase = "run"
)

// OperationCounts holds the outcome tally of one operation type.
type OperationCounts struct {
	OK     int64 `json:"ok" yaml:"ok"`
	Failed int64 `json:"failed" yaml:"failed"`
}

// Report summarizes one phase.
type Report struct {
	RunID      string                     `json:"run_id" yaml:"run_id"`
	Phase      Phase                      `json:"phase" yaml:"phase"`
	Table      string                     `json:"table" yaml:"table"`
	Threads    int                        `json:"threads" yaml:"threads"`
	Started    time.Time                  `json:"started" yaml:"started"`
	Duration   time.Duration              `json:"duration" yaml:"duration"`
	Operations map[string]OperationCounts `json:"operations" yaml:"operations"`
}

// Total is the number of operations issued, failed ones included.
func (r *Report) Total() int64 {
	var total int64
	for _, c := range r.Operations {
		total += c.OK + c.Failed
	}
	return total
}

// Failed is the number of operations that did not return StatusOK.
func (r *Report) Failed() int64 {
	var failed int64
	for _, c := range r.Operations {
		failed += c.Failed
	}
	return failed
}

// Throughput is operations per second over the phase duration.
func (r *Report) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Total()) / r.Duration.Seconds()
}

// WriteText renders the report in the bracketed section format benchmark
// tooling already parses.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[OVERALL], RunID, %s\n", r.RunID)
	fmt.Fprintf(&b, "[OVERALL], Phase, %s\n", r.Phase)
	fmt.Fprintf(&b, "[OVERALL], Threads, %d\n", r.Threads)
	fmt.Fprintf(&b, "[OVERALL], RunTime(ms), %d\n", r.Duration.Milliseconds())
	fmt.Fprintf(&b, "[OVERALL], Throughput(ops/sec), %.2f\n", r.Throughput())

	ops := make([]string, 0, len(r.Operations))
	for op := range r.Operations {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		section := strings.ToUpper(op)
		c := r.Operations[op]
		fmt.Fprintf(&b, "[%s], Operations, %d\n", section, c.OK+c.Failed)
		fmt.Fprintf(&b, "[%s], Return=OK, %d\n", section, c.OK)
		if c.Failed > 0 {
			fmt.Fprintf(&b, "[%s], Return=ERROR, %d\n", section, c.Failed)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// tally counts statuses per operation from many workers at once.
type tally struct {
	counts *xsync.MapOf[string, *opCounter]
}

type opCounter struct {
	ok     *xsync.Counter
	failed *xsync.Counter
}

func newTally() *tally {
	return &tally{counts: xsync.NewMapOf[string, *opCounter]()}
}

func (t *tally) record(op string, status int) {
	c, _ := t.counts.LoadOrCompute(op, func() *opCounter {
		return &opCounter{ok: xsync.NewCounter(), failed: xsync.NewCounter()}
	})
	if recordstore.Status(status) == recordstore.StatusOK {
		c.ok.Inc()
		return
	}
	c.failed.Inc()
}

func (t *tally) snapshot() map[string]OperationCounts {
	out := make(map[string]OperationCounts)
	t.counts.Range(func(op string, c *opCounter) bool {
		out[op] = OperationCounts{OK: c.ok.Value(), Failed: c.failed.Value()}
		return true
	})
	return out
}
