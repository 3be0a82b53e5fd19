// Package simulate runs a batch locally against a role table CSV and prints
// a localized summary.
package simulate

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/message"

	"github.com/louisbranch/slotsim/internal/core/batch"
	"github.com/louisbranch/slotsim/internal/core/roles"
	"github.com/louisbranch/slotsim/internal/core/session"
	"github.com/louisbranch/slotsim/internal/core/stats"
	entrypoint "github.com/louisbranch/slotsim/internal/platform/cmd"
	"github.com/louisbranch/slotsim/internal/platform/i18n/catalog"
	"github.com/louisbranch/slotsim/internal/random"
	"github.com/louisbranch/slotsim/internal/services/simulator/roletable"
)

// Config holds simulate command configuration.
type Config struct {
	RoleTable    string  `env:"SLOTSIM_ROLE_TABLE"       envDefault:"data/roles.csv"`
	Locale       string  `env:"SLOTSIM_LOCALE"           envDefault:"en-US"`
	Setting      int     `env:"SLOTSIM_SETTING"          envDefault:"1"`
	Simulations  int     `env:"SLOTSIM_SIMULATIONS"      envDefault:"1000"`
	Games        int     `env:"SLOTSIM_GAMES"            envDefault:"1000"`
	CoinsPer1000 int     `env:"SLOTSIM_COINS_PER_1000"   envDefault:"50"`
	ExchangeRate float64 `env:"SLOTSIM_EXCHANGE_RATE"    envDefault:"1000"`
	Workers      int     `env:"SLOTSIM_WORKERS"          envDefault:"1"`
	Profit       string  `env:"SLOTSIM_PROFIT_FORMULA"   envDefault:"canonical"`
	Seed         string  `env:"SLOTSIM_SEED"`
	Export       string  `env:"SLOTSIM_EXPORT"`
	Verbose      bool    `env:"SLOTSIM_VERBOSE"`
	EmitEvery    int     `env:"SLOTSIM_EMIT_EVERY"       envDefault:"100"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.RoleTable, "roles", cfg.RoleTable, "Role table CSV path")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Output locale (en-US or ja-JP)")
	fs.IntVar(&cfg.Setting, "setting", cfg.Setting, "Machine setting")
	fs.IntVar(&cfg.Simulations, "sims", cfg.Simulations, "Number of sessions")
	fs.IntVar(&cfg.Games, "games", cfg.Games, "Games per session")
	fs.IntVar(&cfg.CoinsPer1000, "coins", cfg.CoinsPer1000, "Coins lent per 1000 yen")
	fs.Float64Var(&cfg.ExchangeRate, "rate", cfg.ExchangeRate, "Yen paid per 1000 coins")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Parallel workers")
	fs.StringVar(&cfg.Profit, "profit", cfg.Profit, "Profit formula: canonical or exchange")
	fs.StringVar(&cfg.Seed, "seed", cfg.Seed, "Seed (generated when empty)")
	fs.StringVar(&cfg.Export, "export", cfg.Export, "Write session results to this CSV path")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Log games as they are played (single worker only)")
	fs.IntVar(&cfg.EmitEvery, "emit-every", cfg.EmitEvery, "Log every Nth game with -v")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the batch and prints the summary to stdout.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSimulate, func(ctx context.Context) error {
		return run(ctx, cfg, os.Stdout, os.Stderr)
	})
}

func run(ctx context.Context, cfg Config, out, errOut io.Writer) error {
	printer := catalog.Default().Printer(cfg.Locale)

	rows, err := roletable.LoadFile(cfg.RoleTable)
	if err != nil {
		return err
	}
	table, err := roles.NewTable(rows, cfg.Setting)
	if err != nil {
		return fmt.Errorf("build role table: %w", err)
	}
	if total := table.Total(); total < 1 {
		printer.Fprintf(errOut, "cli.run.warning", cfg.Setting, total)
		fmt.Fprintln(errOut)
	}
	profit, err := session.ParseProfitFormula(cfg.Profit)
	if err != nil {
		return err
	}
	requested, err := parseSeed(cfg.Seed)
	if err != nil {
		return err
	}
	seed, source, err := random.ResolveSeed(requested, random.NewSeed)
	if err != nil {
		return fmt.Errorf("resolve seed: %w", err)
	}

	ctx, span := otel.Tracer("github.com/louisbranch/slotsim/internal/cmd/simulate").Start(ctx, "simulate.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("slotsim.setting", cfg.Setting),
		attribute.Int("slotsim.simulations", cfg.Simulations),
		attribute.Int64("slotsim.seed", int64(seed)),
	)

	req := batch.Request{
		Simulations:  cfg.Simulations,
		Games:        cfg.Games,
		Setting:      cfg.Setting,
		CoinsPer1000: cfg.CoinsPer1000,
		ExchangeRate: cfg.ExchangeRate,
		Profit:       profit,
		Seed:         seed,
		Workers:      cfg.Workers,
		OnProgress: func(completed, total int) {
			fmt.Fprintf(errOut, "\r%d/%d", completed, total)
			if completed == total {
				fmt.Fprintln(errOut)
			}
		},
	}
	if cfg.Verbose {
		logger := log.New(errOut, "", 0)
		req.EmitEvery = cfg.EmitEvery
		req.Observer = session.ObserverFunc(func(e session.Event) {
			logger.Printf("sim %d game %d: %s +%d coins=%d invested=%d", e.Session, e.Game, e.Role, e.Payout, e.Coins, e.InvestedYen)
		})
	}

	result, err := batch.RunTable(ctx, table, req)
	if err != nil {
		return err
	}
	printReport(printer, out, cfg, result, fmt.Sprintf("%d, %s", seed, source))

	if cfg.Export != "" {
		if err := exportSessions(cfg.Export, cfg.Games, result.Sessions); err != nil {
			return err
		}
		printer.Fprintf(out, "cli.export.done", len(result.Sessions), cfg.Export)
		fmt.Fprintln(out)
	}
	if result.Status == batch.StatusCancelled {
		return fmt.Errorf("simulation cancelled after %d sessions: %w", result.Completed, result.Cause)
	}
	return nil
}

func printReport(printer *message.Printer, out io.Writer, cfg Config, result batch.Result, seedLabel string) {
	report := stats.Report(result)
	lines := []struct {
		key  string
		args []any
	}{
		{"cli.run.header", []any{cfg.Setting, cfg.Simulations, cfg.Games, seedLabel}},
		{"cli.run.status", []any{result.Status.String(), result.Completed, result.Total}},
		{"cli.run.bonus", []any{report.MajorTotal, report.MinorTotal}},
	}
	for _, line := range lines {
		printer.Fprintf(out, line.key, line.args...)
		fmt.Fprintln(out)
	}
	fields := []struct {
		key     string
		summary stats.Summary
	}{
		{"cli.field.invest", report.InvestedYen},
		{"cli.field.final", report.FinalCoins},
		{"cli.field.diff", report.DiffCoins},
		{"cli.field.profit", report.ProfitYen},
	}
	for _, f := range fields {
		if f.summary.Count == 0 {
			continue
		}
		printer.Fprintf(out, "cli.run.summary", printer.Sprintf(f.key), f.summary.Mean, f.summary.Median, f.summary.Min, f.summary.Max)
		fmt.Fprintln(out)
	}
}

func exportSessions(path string, games int, sessions []session.Result) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", closeErr)
		}
	}()
	return roletable.WriteSessions(f, games, sessions)
}

func parseSeed(raw string) (*uint32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, errors.New("seed must be an unsigned 32-bit integer")
	}
	seed := uint32(v)
	return &seed, nil
}
