// Package storage defines persistence contracts for simulation runs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/slotsim/internal/core/session"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("record not found")

// RunRecord is the persisted header of one simulation run.
type RunRecord struct {
	ID            string
	Setting       int
	Simulations   int
	Games         int
	CoinsPer1000  int
	ExchangeRate  float64
	ProfitFormula string
	Seed          uint32
	SeedSource    string
	Workers       int
	Status        string
	Completed     int
	RoleTotal     float64
	CreatedAt     time.Time
	FinishedAt    time.Time
}

// SessionQuery selects sessions of one run. Where and Params come from the
// filter package and may be empty.
type SessionQuery struct {
	RunID  string
	Where  string
	Params []any
	Limit  int
	Offset int
}

// RunStore persists runs and their sessions.
type RunStore interface {
	PutRun(ctx context.Context, run RunRecord, sessions []session.Result) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	ListSessions(ctx context.Context, query SessionQuery) ([]session.Result, error)
	// AllSessions returns every stored session of a run in index order.
	AllSessions(ctx context.Context, runID string) ([]session.Result, error)
}
