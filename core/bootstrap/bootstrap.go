// Package bootstrap brings up the infrastructure a bot needs before it can
// take updates: logging, the database pool, its schema and reference data.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/salonbot/core/config"
	coredatabase "github.com/m3rciful/salonbot/core/database"
	"github.com/m3rciful/salonbot/core/logger"
)

const component = "bootstrap"

// Options select the configuration and, for tests, replace the stage functions.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Seeders  []Seeder

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
}

// Result holds what the stages produced.
type Result struct {
	DB *sqlx.DB
}

type stage struct {
	name string
	run  func(context.Context) error
}

// Run executes the stages in order: logger, connect, migrate, seed. The
// database is closed when a later stage fails.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	initLogger, connect, migrate := opts.LoggerInit, opts.Connect, opts.Migrate
	if initLogger == nil {
		initLogger = logger.InitLogger
	}
	if connect == nil {
		connect = coredatabase.Connect
	}
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}

	res := &Result{}
	stages := []stage{
		{"logger init", func(context.Context) error { return initLogger(opts.Config) }},
		{"database", func(ctx context.Context) (err error) {
			res.DB, err = connect(ctx, opts.Database)
			return err
		}},
		{"migrations", func(ctx context.Context) error { return migrate(ctx, opts.Database) }},
		{"seeding", func(ctx context.Context) error {
			if len(opts.Seeders) == 0 {
				return nil
			}
			return RunSeeders(ctx, res.DB, opts.Seeders...)
		}},
	}

	start := time.Now()
	for _, st := range stages {
		if err := st.run(ctx); err != nil {
			if res.DB != nil {
				_ = res.DB.Close()
			}
			logger.Error(ctx, component, "bootstrap.fail",
				slog.String("stage", st.name),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("bootstrap: %s failed: %w", st.name, err)
		}
	}
	logger.Info(ctx, component, "bootstrap.done",
		slog.Int("stages", len(stages)),
		slog.Duration("duration", logger.Took(start)),
	)
	return res, nil
}
