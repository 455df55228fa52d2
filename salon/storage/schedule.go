package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/salonbot/core/logger"
)

const seedComponent = "db.seed"

// DefaultHorizonDays is how far ahead slots are generated.
const DefaultHorizonDays = 30

// Schedule describes the working hours of every master.
type Schedule struct {
	HorizonDays int            `yaml:"horizon_days"`
	Masters     []MasterShifts `yaml:"masters"`
}

// MasterShifts lists what a master offers and when.
type MasterShifts struct {
	Name     string   `yaml:"name"`
	Services []string `yaml:"services"`
	Weekdays []string `yaml:"weekdays"`
	Times    []string `yaml:"times"`
}

var weekdayCodes = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// LoadSchedule reads and validates a YAML schedule file.
func LoadSchedule(path string) (*Schedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	var s Schedule
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks names, weekday codes and HH:MM times.
func (s *Schedule) Validate() error {
	if s.HorizonDays <= 0 {
		s.HorizonDays = DefaultHorizonDays
	}
	for i, m := range s.Masters {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("schedule: masters[%d]: name is required", i)
		}
		if len(m.Services) == 0 {
			return fmt.Errorf("schedule: master %q: no services", m.Name)
		}
		for _, wd := range m.Weekdays {
			if _, ok := weekdayCodes[strings.ToLower(wd)]; !ok {
				return fmt.Errorf("schedule: master %q: unknown weekday %q", m.Name, wd)
			}
		}
		for _, t := range m.Times {
			if _, err := time.Parse("15:04", t); err != nil {
				return fmt.Errorf("schedule: master %q: time %q: %w", m.Name, t, err)
			}
		}
	}
	return nil
}

// slotRow is one schedulable slot.
type slotRow struct {
	Service string `db:"service"`
	Master  string `db:"master"`
	Date    string `db:"slot_date"`
	Time    string `db:"slot_time"`
}

// expand lists the slots between from and the horizon.
func (s *Schedule) expand(from time.Time) []slotRow {
	var rows []slotRow
	first := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for _, m := range s.Masters {
		days := make(map[time.Weekday]bool, len(m.Weekdays))
		for _, wd := range m.Weekdays {
			days[weekdayCodes[strings.ToLower(wd)]] = true
		}
		for i := range s.HorizonDays {
			d := first.AddDate(0, 0, i)
			if !days[d.Weekday()] {
				continue
			}
			for _, svc := range m.Services {
				for _, t := range m.Times {
					rows = append(rows, slotRow{Service: svc, Master: m.Name, Date: d.Format(time.DateOnly), Time: t})
				}
			}
		}
	}
	return rows
}

const insertSlotQuery = `
INSERT INTO slots (service, master, slot_date, slot_time)
VALUES (:service, :master, :slot_date, :slot_time)
ON CONFLICT (service, master, slot_date, slot_time) DO NOTHING`

// ScheduleSeeder fills the slots table from a schedule file.
type ScheduleSeeder struct {
	Path     string
	Location *time.Location
	Now      func() time.Time
}

// Seed inserts missing slots. Existing slots, booked or not, are kept.
func (s ScheduleSeeder) Seed(ctx context.Context, db *sqlx.DB) error {
	if s.Path == "" {
		logger.Info(ctx, seedComponent, "seed.schedule",
			slog.String("status", "skip"),
			slog.String("reason", "no_schedule"),
		)
		return nil
	}
	schedule, err := LoadSchedule(s.Path)
	if err != nil {
		return err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}

	start := time.Now()
	rows := schedule.expand(now().In(loc))
	inserted, err := insertSlots(ctx, db, rows)
	logger.Info(ctx, seedComponent, "seed.schedule",
		slog.String("status", logger.Status(err)),
		slog.String("path", s.Path),
		slog.Int("masters", len(schedule.Masters)),
		slog.Int("slots", len(rows)),
		slog.Int64("inserted", inserted),
		slog.Duration("duration", logger.Took(start)),
	)
	return err
}

func insertSlots(ctx context.Context, db *sqlx.DB, rows []slotRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("seed slots: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, insertSlotQuery)
	if err != nil {
		return 0, fmt.Errorf("seed slots: prepare: %w", err)
	}
	defer stmt.Close()

	var total int64
	for _, row := range rows {
		res, err := stmt.ExecContext(ctx, row)
		if err != nil {
			return total, fmt.Errorf("seed slots: insert %s %s %s: %w", row.Master, row.Date, row.Time, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("seed slots: rows affected: %w", err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return total, fmt.Errorf("seed slots: commit: %w", err)
	}
	return total, nil
}
