package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/salonbot/core/logger"
)

const migrateComponent = "db.migrate"

// MigrationsDir resolves the migrations directory of cfg to an absolute path.
func MigrationsDir(cfg Config) (string, error) {
	dir := cfg.Migrations
	if dir == "" {
		dir = "migrations"
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(cwd, dir), nil
}

// migration is the outcome of one RunMigrations call.
type migration struct {
	from, to uint64
	applied  []string
}

// RunMigrations waits for the server and applies every pending up migration.
func RunMigrations(ctx context.Context, cfg Config) error {
	start := time.Now()
	res, err := migrateUp(ctx, cfg)

	status := logger.Status(err)
	if err == nil && res.from == res.to {
		status = logger.StatusSkip
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Uint64("from_ver", res.from),
		slog.Uint64("to_ver", res.to),
		slog.Int("files", len(res.applied)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		logger.Error(ctx, migrateComponent, "summary", append(attrs, slog.String("err", err.Error()))...)
		return err
	}
	if len(res.applied) > 0 {
		logger.Debug(ctx, migrateComponent, "apply", withPreview(nil, res.applied)...)
	}
	logger.Info(ctx, migrateComponent, "summary", attrs...)
	return nil
}

func migrateUp(ctx context.Context, cfg Config) (migration, error) {
	var res migration
	if err := WaitForPostgres(ctx, cfg.URL(), 30*time.Second, 2*time.Second); err != nil {
		return res, fmt.Errorf("database not ready: %w", err)
	}
	dir, err := MigrationsDir(cfg)
	if err != nil {
		return res, err
	}
	files := listMigrationFiles(dir)
	logger.Debug(ctx, migrateComponent, "resolve", withPreview([]slog.Attr{slog.String("path", dir)}, files)...)

	m, err := migrate.New("file://"+dir, cfg.URL())
	if err != nil {
		return res, fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, migrateComponent, "close",
				slog.String("err", errors.Join(srcErr, dbErr).Error()),
			)
		}
	}()

	res.from = currentVersion(m)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		res.to = currentVersion(m)
		return res, fmt.Errorf("apply migrations: %w", err)
	}
	res.to = currentVersion(m)
	res.applied = selectApplied(files, res.from, res.to)
	return res, nil
}

// currentVersion is zero for a database without migrations.
func currentVersion(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

func withPreview(attrs []slog.Attr, files []string) []slog.Attr {
	attrs = append(attrs, slog.Int("files_total", len(files)))
	preview, truncated := logger.Preview(files, 6)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

// listMigrationFiles returns the *.up.sql names in dir, sorted.
func listMigrationFiles(dir string) []string {
	paths, _ := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if len(paths) == 0 {
		return nil
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}

// parseVersion reads the numeric prefix of a migration name; 0 if absent.
func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// selectApplied returns the files with versions in (from, to].
func selectApplied(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
