// Package sqlite implements storage.RunStore on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/slotsim/internal/core/session"
	sqlitemigrate "github.com/louisbranch/slotsim/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/slotsim/internal/services/simulator/storage"
	"github.com/louisbranch/slotsim/internal/services/simulator/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const insertBatch = 200

// Store persists runs and sessions in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.RunStore = (*Store)(nil)

// Open opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutRun stores a run header and its sessions in one transaction.
func (s *Store) PutRun(ctx context.Context, run storage.RunRecord, sessions []session.Result) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	run.ID = strings.TrimSpace(run.ID)
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.CreatedAt
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (
	id, setting, simulations, games, coins_per_1000, exchange_rate,
	profit_formula, seed, seed_source, workers, status, completed,
	role_total, created_at, finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		run.ID, run.Setting, run.Simulations, run.Games, run.CoinsPer1000, run.ExchangeRate,
		run.ProfitFormula, int64(run.Seed), run.SeedSource, run.Workers, run.Status, run.Completed,
		run.RoleTotal, run.CreatedAt.UTC().UnixMilli(), run.FinishedAt.UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for start := 0; start < len(sessions); start += insertBatch {
		end := min(start+insertBatch, len(sessions))
		if err := insertSessions(ctx, tx, run.ID, sessions[start:end]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put run: %w", err)
	}
	return nil
}

func insertSessions(ctx context.Context, tx *sql.Tx, runID string, sessions []session.Result) error {
	var b strings.Builder
	b.WriteString(`INSERT INTO sessions (run_id, idx, major_count, minor_count, final_coins, invested_yen, diff_coins, profit_yen) VALUES `)
	args := make([]any, 0, len(sessions)*8)
	for i, r := range sessions {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, runID, r.Index, r.MajorCount, r.MinorCount, r.FinalCoins, r.InvestedYen, r.DiffCoins, r.ProfitYen)
	}
	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("insert sessions for run %s: %w", runID, err)
	}
	return nil
}

const runColumns = `id, setting, simulations, games, coins_per_1000, exchange_rate,
	profit_formula, seed, seed_source, workers, status, completed,
	role_total, created_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (storage.RunRecord, error) {
	var (
		run               storage.RunRecord
		seed              int64
		created, finished int64
	)
	if err := row.Scan(
		&run.ID, &run.Setting, &run.Simulations, &run.Games, &run.CoinsPer1000, &run.ExchangeRate,
		&run.ProfitFormula, &seed, &run.SeedSource, &run.Workers, &run.Status, &run.Completed,
		&run.RoleTotal, &created, &finished,
	); err != nil {
		return storage.RunRecord{}, err
	}
	run.Seed = uint32(seed)
	run.CreatedAt = time.UnixMilli(created).UTC()
	run.FinishedAt = time.UnixMilli(finished).UTC()
	return run, nil
}

// GetRun loads a run header.
func (s *Store) GetRun(ctx context.Context, id string) (storage.RunRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RunRecord{}, err
	}
	run, err := scanRun(s.sqlDB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, strings.TrimSpace(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.RunRecord{}, fmt.Errorf("run %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return storage.RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns lists runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []storage.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListSessions returns sessions of a run matching the query, in index order.
func (s *Store) ListSessions(ctx context.Context, query storage.SessionQuery) ([]session.Result, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if query.Limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	stmt := `SELECT idx, major_count, minor_count, final_coins, invested_yen, diff_coins, profit_yen
FROM sessions WHERE run_id = ?`
	args := []any{query.RunID}
	if strings.TrimSpace(query.Where) != "" {
		stmt += " AND (" + query.Where + ")"
		args = append(args, query.Params...)
	}
	stmt += " ORDER BY idx LIMIT ? OFFSET ?"
	args = append(args, query.Limit, max(query.Offset, 0))
	return s.querySessions(ctx, stmt, args...)
}

// AllSessions returns every session of a run in index order.
func (s *Store) AllSessions(ctx context.Context, runID string) ([]session.Result, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.querySessions(ctx, `SELECT idx, major_count, minor_count, final_coins, invested_yen, diff_coins, profit_yen
FROM sessions WHERE run_id = ? ORDER BY idx`, runID)
}

func (s *Store) querySessions(ctx context.Context, stmt string, args ...any) ([]session.Result, error) {
	rows, err := s.sqlDB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Result
	for rows.Next() {
		var r session.Result
		if err := rows.Scan(&r.Index, &r.MajorCount, &r.MinorCount, &r.FinalCoins, &r.InvestedYen, &r.DiffCoins, &r.ProfitYen); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
