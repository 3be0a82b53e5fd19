// Package simulator parses simulator service flags and launches the service.
package simulator

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	entrypoint "github.com/louisbranch/slotsim/internal/platform/cmd"
	server "github.com/louisbranch/slotsim/internal/services/simulator/app"
	"github.com/louisbranch/slotsim/internal/services/simulator/domain"
)

// Config holds simulator command configuration.
type Config struct {
	Port           int      `env:"SLOTSIM_SIMULATOR_PORT"      envDefault:"8090"`
	RoleTable      string   `env:"SLOTSIM_ROLE_TABLE"          envDefault:"data/roles.csv"`
	DBPath         string   `env:"SLOTSIM_SIMULATOR_DB_PATH"   envDefault:"data/simulator.db"`
	KafkaBrokers   []string `env:"SLOTSIM_KAFKA_BROKERS"       envSeparator:","`
	KafkaTopic     string   `env:"SLOTSIM_KAFKA_TOPIC"         envDefault:"slotsim.runs"`
	MaxSimulations int      `env:"SLOTSIM_MAX_SIMULATIONS"     envDefault:"100000"`
	MaxGames       int      `env:"SLOTSIM_MAX_GAMES"           envDefault:"1000000"`
	MaxWorkers     int      `env:"SLOTSIM_MAX_WORKERS"         envDefault:"64"`
}

// Validate checks values the server cannot start without.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if strings.TrimSpace(c.RoleTable) == "" {
		return errors.New("role table path is required")
	}
	return nil
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The simulator gRPC server port")
	fs.StringVar(&cfg.RoleTable, "roles", cfg.RoleTable, "Role table CSV path")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the simulator gRPC API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSimulator, func(ctx context.Context) error {
		return server.Run(ctx, serverConfig(cfg))
	})
}

func serverConfig(cfg Config) server.Config {
	return server.Config{
		Addr:          fmt.Sprintf(":%d", cfg.Port),
		RoleTablePath: cfg.RoleTable,
		DBPath:        cfg.DBPath,
		KafkaBrokers:  cfg.KafkaBrokers,
		KafkaTopic:    cfg.KafkaTopic,
		Limits: domain.Limits{
			MaxSimulations: cfg.MaxSimulations,
			MaxGames:       cfg.MaxGames,
			MaxWorkers:     cfg.MaxWorkers,
		},
	}
}
