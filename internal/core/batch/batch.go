// Package batch runs many independent sessions against one role table.
//
// # Determinism
//
// A sequential batch (Workers <= 1) owns exactly one xorshift.Source seeded
// from Request.Seed and threads it through every session in index order, so
// each session's draws depend on all sessions before it. The same rows and the
// same Request always produce the same Result.
//
// A parallel batch gives worker w its own Source seeded with
// xorshift.Derive(Seed, w) and a contiguous range of session indexes. It is
// deterministic for a fixed worker count but does not reproduce the
// sequential stream.
//
// # Ordering
//
// Result.Sessions is always in ascending index order and
// Result.Sessions[i].Index == i+1.
//
// # Cancellation
//
// The context is checked before every session, and the Yielder is consulted
// inside sessions and between them. Stopping is not an error: Run returns a
// Result with StatusCancelled. CancelReturnPartial keeps the completed
// prefix of sessions; CancelDiscard drops it. A session interrupted midway is
// never reported.
//
// # Errors
//
// Invalid configuration is reported as a *ConfigError before any session
// runs.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/slotsim/internal/core/roles"
	"github.com/louisbranch/slotsim/internal/core/session"
	"github.com/louisbranch/slotsim/internal/core/xorshift"
	"github.com/louisbranch/slotsim/internal/core/yield"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidSimulations indicates a non-positive session count.
	ErrInvalidSimulations = errors.New("simulations must be positive")
	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("workers must not be negative")
	// ErrObserverParallel indicates a per-game observer on a parallel batch.
	ErrObserverParallel = errors.New("per-game observer requires a single worker")
	// ErrInvalidCancelPolicy indicates an unknown cancel policy.
	ErrInvalidCancelPolicy = errors.New("unknown cancel policy")
)

// ConfigError reports a batch that could not start.
type ConfigError struct {
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e == nil || e.Err == nil {
		return "invalid batch configuration"
	}
	return "invalid batch configuration: " + e.Err.Error()
}

// Unwrap returns the underlying validation error.
func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// CancelPolicy selects what a cancelled batch returns.
type CancelPolicy int

const (
	// CancelReturnPartial returns the sessions completed before the stop.
	CancelReturnPartial CancelPolicy = iota
	// CancelDiscard returns no sessions.
	CancelDiscard
)

func (p CancelPolicy) String() string {
	switch p {
	case CancelReturnPartial:
		return "partial"
	case CancelDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// ParseCancelPolicy maps a policy label to a CancelPolicy. The empty label is
// CancelReturnPartial.
func ParseCancelPolicy(label string) (CancelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "partial":
		return CancelReturnPartial, nil
	case "discard":
		return CancelDiscard, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCancelPolicy, label)
	}
}

// Status is the terminal state of a batch.
type Status int

const (
	StatusUnspecified Status = iota
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}

// ProgressFunc receives (completed, total) session counts.
type ProgressFunc func(completed, total int)

// Request describes a batch.
type Request struct {
	Simulations  int
	Games        int
	Setting      int
	CoinsPer1000 int
	ExchangeRate float64
	Profit       session.ProfitFormula
	Seed         uint32
	// Workers above one enables the parallel mode.
	Workers      int
	CancelPolicy CancelPolicy
	// YieldEveryGames defaults to session.DefaultYieldEvery.
	YieldEveryGames int
	// YieldEverySessions defaults to one percent of Simulations.
	YieldEverySessions int
	// OnProgress is called roughly every one percent of sessions and always
	// once when the last session completes. It runs on the caller's goroutine.
	OnProgress ProgressFunc
	Observer   session.Observer
	EmitEvery  int
	// Yielder defaults to yield.Gosched. It must be safe for concurrent use
	// when Workers > 1.
	Yielder yield.Yielder
}

// Result is the outcome of a batch.
type Result struct {
	Seed    uint32
	Setting int
	Total   int
	Workers int
	Status  Status
	// Completed counts sessions that finished, even when CancelDiscard or a
	// parallel gap keeps them out of Sessions.
	Completed int
	// Cause is the context or Yielder error that stopped a cancelled batch.
	Cause    error
	Sessions []session.Result
}

// Run builds the table for req.Setting from rows and runs the batch.
func Run(ctx context.Context, rows []roles.Row, req Request) (Result, error) {
	table, err := roles.NewTable(rows, req.Setting)
	if err != nil {
		return Result{}, &ConfigError{Err: err}
	}
	return RunTable(ctx, table, req)
}

// RunTable runs the batch against a prepared table.
func RunTable(ctx context.Context, table *roles.Table, req Request) (Result, error) {
	if err := validate(table, req); err != nil {
		return Result{}, &ConfigError{Err: err}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r := runner{
		table:    table,
		req:      req,
		total:    req.Simulations,
		yielder:  yield.Or(req.Yielder),
		progress: progressStep(req.Simulations),
		cfg: session.Config{
			Games:        req.Games,
			CoinsPer1000: req.CoinsPer1000,
			ExchangeRate: req.ExchangeRate,
			Profit:       req.Profit,
			YieldEvery:   req.YieldEveryGames,
			EmitEvery:    req.EmitEvery,
		},
	}
	r.yieldEvery = req.YieldEverySessions
	if r.yieldEvery <= 0 {
		r.yieldEvery = r.progress
	}

	workers := req.Workers
	if workers > req.Simulations {
		workers = req.Simulations
	}
	if workers <= 1 {
		return r.sequential(ctx), nil
	}
	return r.parallel(ctx, workers), nil
}

func validate(table *roles.Table, req Request) error {
	if table == nil || table.Len() == 0 {
		return session.ErrNilTable
	}
	if req.Simulations <= 0 {
		return ErrInvalidSimulations
	}
	if req.Workers < 0 {
		return ErrInvalidWorkers
	}
	if req.Workers > 1 && req.Observer != nil {
		return ErrObserverParallel
	}
	switch req.CancelPolicy {
	case CancelReturnPartial, CancelDiscard:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidCancelPolicy, req.CancelPolicy)
	}
	cfg := session.Config{
		Games:        req.Games,
		CoinsPer1000: req.CoinsPer1000,
		ExchangeRate: req.ExchangeRate,
		Profit:       req.Profit,
	}
	return cfg.Validate()
}

func progressStep(total int) int {
	step := total / 100
	if step < 1 {
		step = 1
	}
	return step
}

type runner struct {
	table      *roles.Table
	req        Request
	cfg        session.Config
	total      int
	progress   int
	yieldEvery int
	yielder    yield.Yielder
}

func (r runner) report(completed int) {
	if r.req.OnProgress == nil {
		return
	}
	if completed%r.progress == 0 || completed == r.total {
		r.req.OnProgress(completed, r.total)
	}
}

func (r runner) result(workers int) Result {
	return Result{
		Seed:    r.req.Seed,
		Setting: r.table.Setting(),
		Total:   r.total,
		Workers: workers,
		Status:  StatusCompleted,
	}
}

func (r runner) cancel(result Result, cause error) Result {
	result.Status = StatusCancelled
	result.Cause = cause
	if r.req.CancelPolicy == CancelDiscard {
		result.Sessions = nil
	}
	return result
}

func (r runner) sequential(ctx context.Context) Result {
	result := r.result(1)
	result.Sessions = make([]session.Result, 0, r.total)
	src := xorshift.New(r.req.Seed)

	for i := 1; i <= r.total; i++ {
		if err := ctx.Err(); err != nil {
			return r.cancel(result, err)
		}
		cfg := r.cfg
		cfg.Index = i
		res, err := session.Run(ctx, cfg, r.table, src, r.req.Observer, r.yielder)
		if err != nil {
			return r.cancel(result, err)
		}
		result.Sessions = append(result.Sessions, res)
		result.Completed = i
		r.report(i)

		if i%r.yieldEvery == 0 && i < r.total {
			err := r.yielder.Yield(ctx)
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				return r.cancel(result, err)
			}
		}
	}
	return result
}

func (r runner) parallel(ctx context.Context, workers int) Result {
	result := r.result(workers)
	chunks := make([][]session.Result, workers)
	bounds := partition(r.total, workers)
	done := make(chan struct{}, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start, end := bounds[w], bounds[w+1]
		g.Go(func() error {
			src := xorshift.New(xorshift.Derive(r.req.Seed, w))
			out := make([]session.Result, 0, end-start)
			defer func() { chunks[w] = out }()
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				cfg := r.cfg
				cfg.Index = i + 1
				res, err := session.Run(gctx, cfg, r.table, src, nil, r.yielder)
				if err != nil {
					return err
				}
				out = append(out, res)
				select {
				case done <- struct{}{}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(done)
	}()
	completed := 0
	for range done {
		completed++
		r.report(completed)
	}
	err := <-waitErr

	finished := 0
	for _, chunk := range chunks {
		finished += len(chunk)
	}
	result.Completed = max(completed, finished)
	result.Sessions = make([]session.Result, 0, finished)
	for w, chunk := range chunks {
		result.Sessions = append(result.Sessions, chunk...)
		if len(chunk) < bounds[w+1]-bounds[w] {
			break
		}
	}
	if err != nil {
		return r.cancel(result, err)
	}
	return result
}

// partition splits total sessions into workers contiguous ranges. Range w is
// [bounds[w], bounds[w+1]).
func partition(total, workers int) []int {
	bounds := make([]int, workers+1)
	size, extra := total/workers, total%workers
	for w := 0; w < workers; w++ {
		n := size
		if w < extra {
			n++
		}
		bounds[w+1] = bounds[w] + n
	}
	return bounds
}
