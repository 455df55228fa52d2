package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchedule(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSchedule_Validation(t *testing.T) {
	for name, body := range map[string]string{
		"missing name":    "masters:\n  - services: [Маникюр]\n",
		"no services":     "masters:\n  - name: Юлия\n",
		"unknown weekday": "masters:\n  - name: Юлия\n    services: [Маникюр]\n    weekdays: [funday]\n",
		"bad time":        "masters:\n  - name: Юлия\n    services: [Маникюр]\n    times: [\"25:00\"]\n",
		"not yaml":        "masters: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSchedule(writeSchedule(t, body))
			assert.Error(t, err)
		})
	}
}

func TestSchedule_Expand(t *testing.T) {
	s := &Schedule{
		HorizonDays: 7,
		Masters: []MasterShifts{{
			Name:     "Юлия",
			Services: []string{"Маникюр", "Педикюр"},
			Weekdays: []string{"thu", "SAT"},
			Times:    []string{"10:00"},
		}},
	}
	require.NoError(t, s.Validate())

	// 2025-05-22 is a Thursday.
	rows := s.expand(fixedNow)
	assert.Equal(t, []slotRow{
		{Service: "Маникюр", Master: "Юлия", Date: "2025-05-22", Time: "10:00"},
		{Service: "Педикюр", Master: "Юлия", Date: "2025-05-22", Time: "10:00"},
		{Service: "Маникюр", Master: "Юлия", Date: "2025-05-24", Time: "10:00"},
		{Service: "Педикюр", Master: "Юлия", Date: "2025-05-24", Time: "10:00"},
	}, rows)
}

func TestScheduleSeeder_Seed(t *testing.T) {
	path := writeSchedule(t, `
horizon_days: 1
masters:
  - name: Юлия
    services: [Маникюр]
    weekdays: [thu]
    times: ["10:00", "11:00"]
`)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(q("INSERT INTO slots (service, master, slot_date, slot_time)"))
	prep.ExpectExec().
		WithArgs("Маникюр", "Юлия", "2025-05-22", "10:00").
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("Маникюр", "Юлия", "2025-05-22", "11:00").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	seeder := ScheduleSeeder{
		Path:     path,
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	}
	require.NoError(t, seeder.Seed(context.Background(), sqlx.NewDb(db, "postgres")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleSeeder_NoPathIsSkipped(t *testing.T) {
	assert.NoError(t, ScheduleSeeder{}.Seed(context.Background(), nil))
}
