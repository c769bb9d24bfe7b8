// Package engine parses engine command flags and launches the engine runtime.
package engine

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/mapveto/internal/platform/cmd"
	"github.com/louisbranch/mapveto/internal/veto/app"
)

// Config holds engine command configuration.
type Config struct {
	Port          int           `env:"MAPVETO_ENGINE_PORT" envDefault:"8093"`
	DBPath        string        `env:"MAPVETO_ENGINE_DB_PATH" envDefault:"data/engine.db"`
	SweepInterval time.Duration `env:"MAPVETO_ENGINE_SWEEP_INTERVAL" envDefault:"1h"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The engine health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The engine SQLite database path")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Session expiry sweep interval")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the engine runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngine, func(context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			Port:          cfg.Port,
			DBPath:        cfg.DBPath,
			SweepInterval: cfg.SweepInterval,
		})
	})
}
