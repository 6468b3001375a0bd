package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schedules (
	name               TEXT PRIMARY KEY,
	description        TEXT NOT NULL DEFAULT '',
	start_date         TEXT NOT NULL,
	end_date           TEXT NOT NULL DEFAULT '',
	calendar           TEXT NOT NULL DEFAULT '',
	last_calculated_at TEXT,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	schedule_name TEXT NOT NULL REFERENCES schedules(name) ON DELETE CASCADE,
	id            TEXT NOT NULL,
	position      INTEGER NOT NULL,
	name          TEXT NOT NULL,
	duration      INTEGER NOT NULL,
	mode          TEXT NOT NULL,
	start_date    TEXT NOT NULL,
	end_date      TEXT NOT NULL,
	early_start   TEXT,
	early_finish  TEXT,
	late_start    TEXT,
	late_finish   TEXT,
	total_float   INTEGER NOT NULL DEFAULT 0,
	free_float    INTEGER NOT NULL DEFAULT 0,
	critical      INTEGER NOT NULL DEFAULT 0,
	parent_id     TEXT NOT NULL DEFAULT '',
	children      TEXT NOT NULL DEFAULT '[]',
	level         INTEGER NOT NULL DEFAULT 0,
	wbs_code      TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	PRIMARY KEY (schedule_name, id)
);
CREATE TABLE IF NOT EXISTS dependencies (
	schedule_name  TEXT NOT NULL REFERENCES schedules(name) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	predecessor_id TEXT NOT NULL,
	successor_id   TEXT NOT NULL,
	type           TEXT NOT NULL,
	lag            INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL,
	PRIMARY KEY (schedule_name, predecessor_id, successor_id)
);
CREATE TABLE IF NOT EXISTS calendars (
	name         TEXT PRIMARY KEY,
	working_days TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS calendar_exceptions (
	calendar_name TEXT NOT NULL REFERENCES calendars(name) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	date          TEXT NOT NULL,
	type          TEXT NOT NULL,
	recurring     INTEGER NOT NULL DEFAULT 0,
	description   TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore keeps schedules and calendars in a single SQLite database.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init() error {
	if s.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps PRAGMA foreign_keys in effect for every statement.
	db.SetMaxOpenConns(1)
	s.db = db

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *SQLiteStore) LoadSchedule(name string) (*models.Schedule, error) {
	row := s.db.QueryRow(`
		SELECT name, description, start_date, end_date, calendar, last_calculated_at, created_at, updated_at
		FROM schedules WHERE name = ?`, name)

	var sc models.Schedule
	var start, end, createdAt, updatedAt string
	var calculatedAt sql.NullString
	err := row.Scan(&sc.Name, &sc.Description, &start, &end, &sc.Calendar, &calculatedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("load schedule", "schedule '%s' not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	sc.StartDate = parseDay(start)
	sc.EndDate = parseDay(end)
	sc.CreatedAt = parseStamp(createdAt)
	sc.UpdatedAt = parseStamp(updatedAt)
	if calculatedAt.Valid {
		t := parseStamp(calculatedAt.String)
		sc.LastCalculatedAt = &t
	}

	if sc.Tasks, err = s.loadTasks(name); err != nil {
		return nil, err
	}
	if sc.Dependencies, err = s.loadDependencies(name); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *SQLiteStore) loadTasks(scheduleName string) ([]*models.Task, error) {
	rows, err := s.db.Query(`
		SELECT id, name, duration, mode, start_date, end_date, early_start, early_finish,
		       late_start, late_finish, total_float, free_float, critical, parent_id,
		       children, level, wbs_code, created_at, updated_at
		FROM tasks WHERE schedule_name = ? ORDER BY position`, scheduleName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		var t models.Task
		var mode, start, end, children, createdAt, updatedAt string
		var es, ef, ls, lf sql.NullString
		err := rows.Scan(
			&t.ID, &t.Name, &t.Duration, &mode, &start, &end, &es, &ef,
			&ls, &lf, &t.TotalFloat, &t.FreeFloat, &t.Critical, &t.ParentID,
			&children, &t.Level, &t.WBSCode, &createdAt, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		t.Mode = models.ScheduleMode(mode)
		t.Start = parseDay(start)
		t.End = parseDay(end)
		t.EarlyStart = nullDay(es)
		t.EarlyFinish = nullDay(ef)
		t.LateStart = nullDay(ls)
		t.LateFinish = nullDay(lf)
		t.CreatedAt = parseStamp(createdAt)
		t.UpdatedAt = parseStamp(updatedAt)
		if err := json.Unmarshal([]byte(children), &t.Children); err != nil {
			return nil, fmt.Errorf("failed to decode children of task %s: %w", t.ID, err)
		}
		if len(t.Children) == 0 {
			t.Children = nil
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) loadDependencies(scheduleName string) ([]models.Dependency, error) {
	rows, err := s.db.Query(`
		SELECT predecessor_id, successor_id, type, lag, created_at
		FROM dependencies WHERE schedule_name = ? ORDER BY position`, scheduleName)
	if err != nil {
		return nil, fmt.Errorf("failed to load dependencies: %w", err)
	}
	defer rows.Close()

	deps := make([]models.Dependency, 0)
	for rows.Next() {
		var d models.Dependency
		var typ, createdAt string
		if err := rows.Scan(&d.PredecessorID, &d.SuccessorID, &typ, &d.Lag, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		d.Type = models.DependencyType(typ)
		d.CreatedAt = parseStamp(createdAt)
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// SaveSchedule replaces the schedule, its tasks and its dependencies in one
// transaction.
func (s *SQLiteStore) SaveSchedule(sc *models.Schedule) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var calculatedAt interface{}
	if sc.LastCalculatedAt != nil {
		calculatedAt = formatStamp(*sc.LastCalculatedAt)
	}
	_, err = tx.Exec(`
		INSERT INTO schedules (name, description, start_date, end_date, calendar, last_calculated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			calendar = excluded.calendar,
			last_calculated_at = excluded.last_calculated_at,
			updated_at = excluded.updated_at`,
		sc.Name, sc.Description, formatDay(sc.StartDate), formatDay(sc.EndDate), sc.Calendar,
		calculatedAt, formatStamp(sc.CreatedAt), formatStamp(sc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM tasks WHERE schedule_name = ?", sc.Name); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM dependencies WHERE schedule_name = ?", sc.Name); err != nil {
		return fmt.Errorf("failed to clear dependencies: %w", err)
	}

	taskStmt, err := tx.Prepare(`
		INSERT INTO tasks (schedule_name, id, position, name, duration, mode, start_date, end_date,
		                   early_start, early_finish, late_start, late_finish, total_float, free_float,
		                   critical, parent_id, children, level, wbs_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare task insert: %w", err)
	}
	defer taskStmt.Close()

	for i, t := range sc.Tasks {
		children := t.Children
		if children == nil {
			children = []string{}
		}
		childJSON, err := json.Marshal(children)
		if err != nil {
			return err
		}
		_, err = taskStmt.Exec(
			sc.Name, t.ID, i, t.Name, t.Duration, string(t.Mode), formatDay(t.Start), formatDay(t.End),
			dayOrNull(t.EarlyStart), dayOrNull(t.EarlyFinish), dayOrNull(t.LateStart), dayOrNull(t.LateFinish),
			t.TotalFloat, t.FreeFloat, t.Critical, t.ParentID, string(childJSON), t.Level, t.WBSCode,
			formatStamp(t.CreatedAt), formatStamp(t.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save task %s: %w", t.ID, err)
		}
	}

	depStmt, err := tx.Prepare(`
		INSERT INTO dependencies (schedule_name, position, predecessor_id, successor_id, type, lag, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare dependency insert: %w", err)
	}
	defer depStmt.Close()

	for i, d := range sc.Dependencies {
		_, err := depStmt.Exec(sc.Name, i, d.PredecessorID, d.SuccessorID, string(d.Type), d.Lag, formatStamp(d.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to save dependency %s -> %s: %w", d.PredecessorID, d.SuccessorID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteSchedule(name string) error {
	res, err := s.db.Exec("DELETE FROM schedules WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("delete schedule", "schedule '%s' not found", name)
	}
	return nil
}

func (s *SQLiteStore) ListSchedules() ([]string, error) {
	return s.listNames("SELECT name FROM schedules ORDER BY name")
}

func (s *SQLiteStore) ScheduleExists(name string) bool {
	return s.exists("SELECT count(*) FROM schedules WHERE name = ?", name)
}

func (s *SQLiteStore) LoadCalendar(name string) (*models.Calendar, error) {
	row := s.db.QueryRow("SELECT name, working_days, created_at, updated_at FROM calendars WHERE name = ?", name)

	var cal models.Calendar
	var days, createdAt, updatedAt string
	err := row.Scan(&cal.Name, &days, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("load calendar", "calendar '%s' not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}
	if err := json.Unmarshal([]byte(days), &cal.WorkingDays); err != nil {
		return nil, fmt.Errorf("failed to decode working days of %s: %w", name, err)
	}
	cal.CreatedAt = parseStamp(createdAt)
	cal.UpdatedAt = parseStamp(updatedAt)

	rows, err := s.db.Query(`
		SELECT date, type, recurring, description
		FROM calendar_exceptions WHERE calendar_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar exceptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ex models.Exception
		var date, typ string
		if err := rows.Scan(&date, &typ, &ex.Recurring, &ex.Description); err != nil {
			return nil, fmt.Errorf("failed to scan calendar exception: %w", err)
		}
		ex.Date = parseDay(date)
		ex.Type = models.ExceptionType(typ)
		cal.Exceptions = append(cal.Exceptions, ex)
	}
	return &cal, rows.Err()
}

func (s *SQLiteStore) SaveCalendar(cal *models.Calendar) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	days, err := json.Marshal(cal.WorkingDays)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO calendars (name, working_days, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET working_days = excluded.working_days, updated_at = excluded.updated_at`,
		cal.Name, string(days), formatStamp(cal.CreatedAt), formatStamp(cal.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save calendar: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM calendar_exceptions WHERE calendar_name = ?", cal.Name); err != nil {
		return fmt.Errorf("failed to clear calendar exceptions: %w", err)
	}
	for i, ex := range cal.Exceptions {
		_, err := tx.Exec(`
			INSERT INTO calendar_exceptions (calendar_name, position, date, type, recurring, description)
			VALUES (?, ?, ?, ?, ?, ?)`,
			cal.Name, i, formatDay(ex.Date), string(ex.Type), ex.Recurring, ex.Description)
		if err != nil {
			return fmt.Errorf("failed to save calendar exception: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteCalendar(name string) error {
	res, err := s.db.Exec("DELETE FROM calendars WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete calendar: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("delete calendar", "calendar '%s' not found", name)
	}
	return nil
}

func (s *SQLiteStore) ListCalendars() ([]string, error) {
	return s.listNames("SELECT name FROM calendars ORDER BY name")
}

func (s *SQLiteStore) CalendarExists(name string) bool {
	return s.exists("SELECT count(*) FROM calendars WHERE name = ?", name)
}

func (s *SQLiteStore) listNames(query string) ([]string, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) exists(query, name string) bool {
	var count int
	if err := s.db.QueryRow(query, name).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(calendar.DateLayout)
}

func parseDay(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(calendar.DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func dayOrNull(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatDay(*t)
}

func nullDay(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseDay(s.String)
	return &t
}

func formatStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseStamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
