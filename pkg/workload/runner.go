package workload

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nimburion/recordbench/pkg/observability/logger"
	"github.com/nimburion/recordbench/pkg/recordstore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Factory returns the DB a worker drives. It is called once per worker per phase.
type Factory func(worker int) recordstore.DB

// Runner drives Threads workers against DBs built by a Factory.
type Runner struct {
	cfg     Config
	factory Factory
	log     logger.Logger
	runID   string
	seed    int64

	// nextKey is the first key number not yet handed out to an insert.
	nextKey atomic.Int64
}

// NewRunner validates cfg and prepares a run with a fresh run ID.
func NewRunner(cfg Config, factory Factory, log logger.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: factory is required", ErrInvalidConfig)
	}
	if log == nil {
		log = logger.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &Runner{
		cfg:     cfg,
		factory: factory,
		log:     log,
		runID:   uuid.NewString(),
		seed:    seed,
	}
	r.nextKey.Store(int64(cfg.RecordCount))
	return r, nil
}

// RunID identifies this runner in logs and reports.
func (r *Runner) RunID() string {
	return r.runID
}

// Load inserts keys 0..RecordCount-1, each worker taking a contiguous slice.
func (r *Runner) Load(ctx context.Context) (*Report, error) {
	total := int64(r.cfg.RecordCount)
	threads := int64(r.cfg.Threads)
	return r.execute(ctx, PhaseLoad, func(ctx context.Context, s *session) error {
		lo := total * int64(s.worker) / threads
		hi := total * int64(s.worker+1) / threads
		for n := lo; n < hi; n++ {
			if err := s.wait(ctx); err != nil {
				return err
			}
			key := BuildKey(r.cfg.KeyPrefix, n)
			s.tally.record(opInsert, s.binding.Insert(r.cfg.Table, key, s.gen.record()))
		}
		return nil
	})
}

// Run issues OperationCount operations drawn from the configured mix. Keys are
// uniform over the loaded key space plus whatever this run has inserted so far.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	total := int64(r.cfg.OperationCount)
	threads := int64(r.cfg.Threads)
	return r.execute(ctx, PhaseRun, func(ctx context.Context, s *session) error {
		count := total / threads
		if int64(s.worker) < total%threads {
			count++
		}
		for i := int64(0); i < count; i++ {
			if err := s.wait(ctx); err != nil {
				return err
			}
			op := s.gen.nextOp()
			s.tally.record(op, r.do(op, s))
		}
		return nil
	})
}

func (r *Runner) do(op string, s *session) int {
	table := r.cfg.Table
	if op == opInsert {
		n := r.nextKey.Add(1) - 1
		return s.binding.Insert(table, BuildKey(r.cfg.KeyPrefix, n), s.gen.record())
	}

	key := BuildKey(r.cfg.KeyPrefix, s.gen.keyNumber(r.nextKey.Load()))
	switch op {
	case opRead:
		return s.binding.Read(table, key, s.gen.readFields(), recordstore.Record{})
	case opUpdate:
		return s.binding.Update(table, key, s.gen.updateRecord())
	case opScan:
		var records []recordstore.Record
		return s.binding.Scan(table, key, s.gen.scanLength(), s.gen.readFields(), &records)
	case opDelete:
		return s.binding.Delete(table, key)
	default:
		return int(recordstore.StatusError)
	}
}

// session is one worker's view of a phase.
type session struct {
	worker  int
	binding *recordstore.Binding
	gen     *generator
	limiter *rate.Limiter
	tally   *tally
}

// wait blocks until the shared limiter admits one more operation.
func (s *session) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

type phaseFunc func(ctx context.Context, s *session) error

func (r *Runner) execute(ctx context.Context, phase Phase, work phaseFunc) (*Report, error) {
	ctx = logger.ContextWithRunID(ctx, r.runID)
	log := r.log.WithContext(ctx).With("phase", string(phase), "table", r.cfg.Table)

	var limiter *rate.Limiter
	if r.cfg.Target > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.Target), 1)
	}
	counts := newTally()

	log.Info("workload phase started", "threads", r.cfg.Threads)
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Threads; w++ {
		g.Go(func() error {
			return r.worker(gctx, w, limiter, counts, work)
		})
	}
	err := g.Wait()

	report := &Report{
		RunID:      r.runID,
		Phase:      phase,
		Table:      r.cfg.Table,
		Threads:    r.cfg.Threads,
		Started:    started,
		Duration:   time.Since(started),
		Operations: counts.snapshot(),
	}
	if err != nil {
		log.Error("workload phase aborted", "error", err, "operations", report.Total())
		return report, fmt.Errorf("%s phase: %w", phase, err)
	}
	log.Info("workload phase finished",
		"operations", report.Total(),
		"failed", report.Failed(),
		"duration", report.Duration,
	)
	return report, nil
}

func (r *Runner) worker(ctx context.Context, worker int, limiter *rate.Limiter, counts *tally, work phaseFunc) error {
	ctx = logger.ContextWithWorker(ctx, worker)
	binding := recordstore.NewBinding(r.factory(worker), r.log).WithContext(ctx)
	if err := binding.Init(); err != nil {
		return fmt.Errorf("worker %d: %w", worker, err)
	}
	defer func() {
		_ = binding.Cleanup()
	}()

	err := work(ctx, &session{
		worker:  worker,
		binding: binding,
		gen:     newGenerator(r.cfg, r.seed+int64(worker)),
		limiter: limiter,
		tally:   counts,
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("worker %d: %w", worker, err)
	}
	return err
}
