// Package domain runs simulations on behalf of the simulator service:
// it resolves seeds, drives the batch engine, persists results and announces
// completed runs.
package domain

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/slotsim/internal/core/batch"
	"github.com/louisbranch/slotsim/internal/core/roles"
	"github.com/louisbranch/slotsim/internal/core/session"
	"github.com/louisbranch/slotsim/internal/core/stats"
	"github.com/louisbranch/slotsim/internal/platform/errors"
	"github.com/louisbranch/slotsim/internal/platform/id"
	"github.com/louisbranch/slotsim/internal/platform/timeouts"
	"github.com/louisbranch/slotsim/internal/random"
	"github.com/louisbranch/slotsim/internal/services/simulator/events"
	"github.com/louisbranch/slotsim/internal/services/simulator/storage"
)

const tracerName = "github.com/louisbranch/slotsim/internal/services/simulator/domain"

// Limits bounds requests accepted by the service.
type Limits struct {
	MaxSimulations int
	MaxGames       int
	MaxWorkers     int
}

// DefaultLimits are used for zero Limits fields.
var DefaultLimits = Limits{
	MaxSimulations: 100_000,
	MaxGames:       1_000_000,
	MaxWorkers:     64,
}

// Config wires a Service.
type Config struct {
	Rows      []roles.Row
	Store     storage.RunStore
	Publisher events.Publisher
	Limits    Limits

	// Optional hooks, defaulted in NewService.
	Seeds random.Generator
	NewID func() (string, error)
	Now   func() time.Time
	Logf  func(format string, args ...any)
}

// Service is the simulator use case.
type Service struct {
	rows      []roles.Row
	settings  []int
	store     storage.RunStore
	publisher events.Publisher
	limits    Limits
	seeds     random.Generator
	newID     func() (string, error)
	now       func() time.Time
	logf      func(string, ...any)
	tracer    trace.Tracer
}

// NewService validates cfg and builds a Service.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Rows) == 0 {
		return nil, fmt.Errorf("role table is empty")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("run store is required")
	}
	s := &Service{
		rows:      append([]roles.Row(nil), cfg.Rows...),
		settings:  roles.Settings(cfg.Rows),
		store:     cfg.Store,
		publisher: cfg.Publisher,
		limits:    cfg.Limits,
		seeds:     cfg.Seeds,
		newID:     cfg.NewID,
		now:       cfg.Now,
		logf:      cfg.Logf,
		tracer:    otel.Tracer(tracerName),
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.limits.MaxSimulations <= 0 {
		s.limits.MaxSimulations = DefaultLimits.MaxSimulations
	}
	if s.limits.MaxGames <= 0 {
		s.limits.MaxGames = DefaultLimits.MaxGames
	}
	if s.limits.MaxWorkers <= 0 {
		s.limits.MaxWorkers = DefaultLimits.MaxWorkers
	}
	if s.seeds == nil {
		s.seeds = random.NewSeed
	}
	if s.newID == nil {
		s.newID = id.NewID
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.logf == nil {
		s.logf = log.Printf
	}
	return s, nil
}

// Settings lists the settings present in the role table.
func (s *Service) Settings() []int {
	return append([]int(nil), s.settings...)
}

// RunRequest asks for one batch.
type RunRequest struct {
	Setting      int
	Simulations  int
	Games        int
	CoinsPer1000 int
	ExchangeRate float64
	Profit       session.ProfitFormula
	// Seed is generated when nil.
	Seed         *uint32
	Workers      int
	CancelPolicy batch.CancelPolicy
}

// Run is a persisted run with its aggregate report.
type Run struct {
	Record storage.RunRecord
	Report stats.BatchReport
}

// RunSimulation executes req, persists the outcome and publishes a
// run-completed event. A cancelled batch is still persisted with its
// completed sessions and returned together with a CodeCancelled error.
func (s *Service) RunSimulation(ctx context.Context, req RunRequest, progress batch.ProgressFunc) (Run, error) {
	ctx, span := s.tracer.Start(ctx, "simulator.RunSimulation", trace.WithAttributes(
		attribute.Int("slotsim.setting", req.Setting),
		attribute.Int("slotsim.simulations", req.Simulations),
		attribute.Int("slotsim.games", req.Games),
		attribute.Int("slotsim.workers", req.Workers),
	))
	defer span.End()

	run, err := s.runSimulation(ctx, span, req, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return run, err
}

func (s *Service) runSimulation(ctx context.Context, span trace.Span, req RunRequest, progress batch.ProgressFunc) (Run, error) {
	if err := s.checkLimits(req); err != nil {
		return Run{}, err
	}
	table, err := roles.NewTable(s.rows, req.Setting)
	if err != nil {
		return Run{}, configError(req, &batch.ConfigError{Err: err})
	}
	if total := table.Total(); total < 1 {
		s.logf("setting %d role probabilities sum to %.4f; the remaining %.4f resolves to %s",
			req.Setting, total, 1-total, table.Entry(table.Len()-1).Name)
	}

	seed, source, err := random.ResolveSeed(req.Seed, s.seeds)
	if err != nil {
		return Run{}, errors.Wrap(errors.CodeUnknown, "resolve seed", err)
	}
	span.SetAttributes(
		attribute.Int64("slotsim.seed", int64(seed)),
		attribute.String("slotsim.seed_source", string(source)),
	)
	runID, err := s.newID()
	if err != nil {
		return Run{}, errors.Wrap(errors.CodeUnknown, "generate run id", err)
	}

	started := s.now()
	result, err := batch.RunTable(ctx, table, batch.Request{
		Simulations:  req.Simulations,
		Games:        req.Games,
		Setting:      req.Setting,
		CoinsPer1000: req.CoinsPer1000,
		ExchangeRate: req.ExchangeRate,
		Profit:       req.Profit,
		Seed:         seed,
		Workers:      req.Workers,
		CancelPolicy: req.CancelPolicy,
		OnProgress:   progress,
	})
	if err != nil {
		return Run{}, configError(req, err)
	}

	profit := req.Profit
	if profit == session.ProfitUnspecified {
		profit = session.ProfitCanonical
	}
	record := storage.RunRecord{
		ID:            runID,
		Setting:       req.Setting,
		Simulations:   req.Simulations,
		Games:         req.Games,
		CoinsPer1000:  req.CoinsPer1000,
		ExchangeRate:  req.ExchangeRate,
		ProfitFormula: profit.String(),
		Seed:          seed,
		SeedSource:    string(source),
		Workers:       max(result.Workers, 1),
		Status:        result.Status.String(),
		Completed:     result.Completed,
		RoleTotal:     table.Total(),
		CreatedAt:     started,
		FinishedAt:    s.now(),
	}
	run := Run{Record: record, Report: stats.Report(result)}

	// Persist and announce even when the caller went away.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.PutRun(persistCtx, record, result.Sessions); err != nil {
		return Run{}, errors.Wrap(errors.CodeUnknown, "persist run", err)
	}
	s.publish(persistCtx, run)
	span.SetAttributes(
		attribute.String("slotsim.run_id", runID),
		attribute.String("slotsim.status", record.Status),
		attribute.Int("slotsim.completed", record.Completed),
	)

	if result.Status == batch.StatusCancelled {
		return run, errors.WrapWithMetadata(errors.CodeCancelled,
			fmt.Sprintf("run %s cancelled after %d sessions", runID, result.Completed),
			map[string]string{"Completed": strconv.Itoa(result.Completed), "RunID": runID},
			result.Cause)
	}
	return run, nil
}

func (s *Service) publish(ctx context.Context, run Run) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.EventPublish)
	defer cancel()
	err := s.publisher.PublishRunCompleted(ctx, events.RunCompleted{
		RunID:       run.Record.ID,
		Setting:     run.Record.Setting,
		Seed:        run.Record.Seed,
		Status:      run.Record.Status,
		Simulations: run.Record.Simulations,
		Completed:   run.Record.Completed,
		MajorTotal:  run.Report.MajorTotal,
		MinorTotal:  run.Report.MinorTotal,
		MeanProfit:  run.Report.ProfitYen.Mean,
		FinishedAt:  run.Record.FinishedAt,
	})
	if err != nil {
		s.logf("publish run %s: %v", run.Record.ID, err)
	}
}

func (s *Service) checkLimits(req RunRequest) error {
	reason := ""
	switch {
	case req.Simulations > s.limits.MaxSimulations:
		reason = fmt.Sprintf("simulations %d exceeds %d", req.Simulations, s.limits.MaxSimulations)
	case req.Games > s.limits.MaxGames:
		reason = fmt.Sprintf("games %d exceeds %d", req.Games, s.limits.MaxGames)
	case req.Workers > s.limits.MaxWorkers:
		reason = fmt.Sprintf("workers %d exceeds %d", req.Workers, s.limits.MaxWorkers)
	}
	if reason == "" {
		return nil
	}
	return errors.WithMetadata(errors.CodeInvalidConfig, reason, map[string]string{"Reason": reason})
}

// configError maps batch validation failures to domain errors.
func configError(req RunRequest, err error) error {
	if !batch.IsConfigError(err) {
		return errors.Wrap(errors.CodeUnknown, "run batch", err)
	}
	if stderrors.Is(err, roles.ErrEmptySetting) {
		return errors.WrapWithMetadata(errors.CodeSettingEmpty,
			fmt.Sprintf("setting %d has no roles", req.Setting),
			map[string]string{"Setting": strconv.Itoa(req.Setting)}, err)
	}
	if stderrors.Is(err, roles.ErrInvalidProbability) || stderrors.Is(err, roles.ErrInvalidPayout) || stderrors.Is(err, roles.ErrEmptyName) {
		return errors.WrapWithMetadata(errors.CodeRoleTableInvalid, err.Error(),
			map[string]string{"Reason": err.Error()}, err)
	}
	return errors.WrapWithMetadata(errors.CodeInvalidConfig, err.Error(),
		map[string]string{"Reason": err.Error()}, err)
}
