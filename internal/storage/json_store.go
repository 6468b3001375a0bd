package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// JSONStore keeps one JSON file per schedule and per calendar.
type JSONStore struct {
	schedulesDir string
	calendarsDir string
}

func NewJSONStore(schedulesDir, calendarsDir string) *JSONStore {
	return &JSONStore{schedulesDir: schedulesDir, calendarsDir: calendarsDir}
}

func (s *JSONStore) Init() error {
	for _, dir := range []string{s.schedulesDir, s.calendarsDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) schedulePath(name string) string {
	return filepath.Join(s.schedulesDir, fileKey(name)+".json")
}

func (s *JSONStore) calendarPath(name string) string {
	return filepath.Join(s.calendarsDir, fileKey(name)+".json")
}

func (s *JSONStore) LoadSchedule(name string) (*models.Schedule, error) {
	var schedule models.Schedule
	if err := readJSONFile(s.schedulePath(name), &schedule); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFoundf("load schedule", "schedule '%s' not found", name)
		}
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	if schedule.Name != name {
		return nil, apperr.NotFoundf("load schedule", "schedule '%s' not found", name)
	}
	if schedule.Tasks == nil {
		schedule.Tasks = make([]*models.Task, 0)
	}
	if schedule.Dependencies == nil {
		schedule.Dependencies = make([]models.Dependency, 0)
	}
	return &schedule, nil
}

func (s *JSONStore) SaveSchedule(schedule *models.Schedule) error {
	if err := writeJSONFile(s.schedulePath(schedule.Name), schedule); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

func (s *JSONStore) DeleteSchedule(name string) error {
	return removeFile(s.schedulePath(name), "schedule", name)
}

func (s *JSONStore) ListSchedules() ([]string, error) {
	return listNames(s.schedulesDir)
}

// ScheduleExists reports whether the schedule's file is taken, including by
// another name with the same slug.
func (s *JSONStore) ScheduleExists(name string) bool {
	_, err := os.Stat(s.schedulePath(name))
	return err == nil
}

func (s *JSONStore) LoadCalendar(name string) (*models.Calendar, error) {
	var cal models.Calendar
	if err := readJSONFile(s.calendarPath(name), &cal); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFoundf("load calendar", "calendar '%s' not found", name)
		}
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}
	if cal.Name != name {
		return nil, apperr.NotFoundf("load calendar", "calendar '%s' not found", name)
	}
	return &cal, nil
}

func (s *JSONStore) SaveCalendar(cal *models.Calendar) error {
	if err := writeJSONFile(s.calendarPath(cal.Name), cal); err != nil {
		return fmt.Errorf("failed to save calendar: %w", err)
	}
	return nil
}

func (s *JSONStore) DeleteCalendar(name string) error {
	return removeFile(s.calendarPath(name), "calendar", name)
}

func (s *JSONStore) ListCalendars() ([]string, error) {
	return listNames(s.calendarsDir)
}

func (s *JSONStore) CalendarExists(name string) bool {
	_, err := os.Stat(s.calendarPath(name))
	return err == nil
}

// listNames reads the display name stored in each JSON file, since file
// names are slugs.
func listNames(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		var header struct {
			Name string `json:"name"`
		}
		if err := readJSONFile(file, &header); err != nil || header.Name == "" {
			// Skip corrupted files
			continue
		}
		names = append(names, header.Name)
	}
	sort.Strings(names)
	return names, nil
}

// removeFile deletes the record file when it belongs to name. Names that
// differ only in case or punctuation share a file.
func removeFile(path, kind, name string) error {
	var header struct {
		Name string `json:"name"`
	}
	if err := readJSONFile(path, &header); err == nil && header.Name != name {
		return apperr.NotFoundf("delete "+kind, "%s '%s' not found", kind, name)
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFoundf("delete "+kind, "%s '%s' not found", kind, name)
		}
		return fmt.Errorf("failed to delete %s file: %w", kind, err)
	}
	return nil
}

// readJSONFile reads and unmarshals a JSON file
func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

// writeJSONFile marshals and writes a JSON file atomically
func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}

	return nil
}
