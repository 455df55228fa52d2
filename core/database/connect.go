package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/salonbot/core/logger"
)

const (
	component = "db"
	driver    = "postgres"

	connectTimeout = 5 * time.Second
	idleTime       = 5 * time.Minute
)

// Connect opens a pool for cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	start := time.Now()
	db, err := open(ctx, cfg)
	attrs := append(cfg.logAttrs(),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		logger.Error(ctx, component, "db.connect", append(attrs, slog.String("err", err.Error()))...)
		return nil, err
	}
	logger.Info(ctx, component, "db.connect", append(attrs, slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

func open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := sqlx.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if n := cfg.MaxConnections; n > 0 {
		db.SetMaxOpenConns(n)
		db.SetMaxIdleConns(n)
	}
	db.SetConnMaxIdleTime(idleTime)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// WaitForPostgres pings dsn every interval until the server answers. It gives
// up when ctx ends or timeout passes, returning the last ping error.
func WaitForPostgres(ctx context.Context, dsn string, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer db.Close()

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		logger.Debug(ctx, component, "db.wait",
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready after %d attempts: %w", attempt, err)
		case <-tick.C:
		}
	}
}
