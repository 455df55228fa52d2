package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/salonbot/core/logger"
)

// Seeder loads reference data into the database.
type Seeder interface {
	Seed(ctx context.Context, db *sqlx.DB) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context, db *sqlx.DB) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, db *sqlx.DB) error {
	return f(ctx, db)
}

// RunSeeders runs every seeder in order. A failing seeder does not stop the
// ones after it; all failures are returned together.
func RunSeeders(ctx context.Context, db *sqlx.DB, seeders ...Seeder) error {
	var errs *multierror.Error
	start := time.Now()
	for i, s := range seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, db); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("seeder %d: %w", i, err))
		}
	}
	err := errs.ErrorOrNil()
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int("seeders", len(seeders)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.Int("failed", errs.Len()), slog.String("err", err.Error()))
	}
	logger.Info(ctx, "db.seed", "seed.summary", attrs...)
	return err
}
