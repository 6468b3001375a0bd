package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/config"
	"github.com/mrbooshehri/qix-sched/internal/logging"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// Storage handles all data persistence operations on top of a Provider
type Storage struct {
	provider  Provider
	indexFile string
	cache     *Cache

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Cache stores loaded schedules in memory
type Cache struct {
	mu        sync.RWMutex
	schedules map[string]*models.Schedule
	calendars map[string]*models.Calendar
	index     models.TaskIndex
}

var globalStorage *Storage

// Init initializes the global storage instance from the global config
func Init() error {
	cfg := config.Get()

	var provider Provider
	if cfg.UsesSQLite() {
		provider = NewSQLiteStore(cfg.SQLitePath)
	} else {
		provider = NewJSONStore(cfg.SchedulesDir, cfg.CalendarsDir)
	}

	s, err := New(provider, cfg.IndexFile)
	if err != nil {
		return err
	}
	globalStorage = s
	return nil
}

// Get returns the global storage instance
func Get() *Storage {
	if globalStorage == nil {
		if err := Init(); err != nil {
			panic(err)
		}
	}
	return globalStorage
}

// New initializes the provider and loads the task index. A missing or
// corrupted index is rebuilt lazily.
func New(provider Provider, indexFile string) (*Storage, error) {
	if err := provider.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	s := &Storage{
		provider:  provider,
		indexFile: indexFile,
		cache: &Cache{
			schedules: make(map[string]*models.Schedule),
			calendars: make(map[string]*models.Calendar),
			index:     make(models.TaskIndex),
		},
		locks: make(map[string]*sync.Mutex),
	}

	if err := s.LoadIndex(); err != nil {
		logging.Debugf("task index unavailable, starting empty: %v", err)
	}
	return s, nil
}

// Close releases the provider
func (s *Storage) Close() error {
	return s.provider.Close()
}

// lockFor returns the mutex serializing writes to one record. Names that
// map to the same file share a lock.
func (s *Storage) lockFor(kind, name string) *sync.Mutex {
	key := kind + ":" + fileKey(name)

	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// loadSchedule returns the cached schedule, loading it on a miss. The
// returned pointer is shared; callers clone before mutating.
func (s *Storage) loadSchedule(name string) (*models.Schedule, error) {
	s.cache.mu.RLock()
	schedule, ok := s.cache.schedules[name]
	s.cache.mu.RUnlock()
	if ok {
		return schedule, nil
	}

	schedule, err := s.provider.LoadSchedule(name)
	if err != nil {
		return nil, err
	}

	s.cache.mu.Lock()
	s.cache.schedules[name] = schedule
	s.cache.mu.Unlock()
	return schedule, nil
}

// LoadSchedule returns a copy of the named schedule
func (s *Storage) LoadSchedule(name string) (*models.Schedule, error) {
	schedule, err := s.loadSchedule(name)
	if err != nil {
		return nil, err
	}
	return schedule.Clone(), nil
}

// CreateSchedule persists a new schedule
func (s *Storage) CreateSchedule(schedule *models.Schedule) error {
	if err := ValidateName("schedule", schedule.Name); err != nil {
		return err
	}

	lock := s.lockFor("schedule", schedule.Name)
	lock.Lock()
	defer lock.Unlock()

	if s.provider.ScheduleExists(schedule.Name) {
		return apperr.Validationf("create schedule", "schedule '%s' already exists", schedule.Name)
	}
	return s.saveSchedule(schedule.Clone())
}

// UpdateSchedule runs updater against a copy of the schedule while holding
// the schedule's write lock. The copy is saved and cached only when
// updater succeeds, so a failed update leaves nothing behind.
func (s *Storage) UpdateSchedule(name string, updater func(*models.Schedule) error) error {
	lock := s.lockFor("schedule", name)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.loadSchedule(name)
	if err != nil {
		return err
	}

	working := current.Clone()
	if err := updater(working); err != nil {
		return err
	}
	working.UpdatedAt = time.Now()

	return s.saveSchedule(working)
}

func (s *Storage) saveSchedule(schedule *models.Schedule) error {
	if err := s.provider.SaveSchedule(schedule); err != nil {
		return err
	}

	s.cache.mu.Lock()
	s.cache.schedules[schedule.Name] = schedule
	s.cache.mu.Unlock()

	return s.indexSchedule(schedule)
}

// DeleteSchedule removes a schedule and its index entries
func (s *Storage) DeleteSchedule(name string) error {
	lock := s.lockFor("schedule", name)
	lock.Lock()
	defer lock.Unlock()

	if err := s.provider.DeleteSchedule(name); err != nil {
		return err
	}
	s.InvalidateCache(name)
	return s.dropFromIndex(name)
}

// ListSchedules returns all schedule names
func (s *Storage) ListSchedules() ([]string, error) {
	return s.provider.ListSchedules()
}

// ScheduleExists checks if a schedule exists
func (s *Storage) ScheduleExists(name string) bool {
	return s.provider.ScheduleExists(name)
}

// GetAllSchedules loads every schedule, skipping unreadable ones
func (s *Storage) GetAllSchedules() ([]*models.Schedule, error) {
	names, err := s.ListSchedules()
	if err != nil {
		return nil, err
	}

	schedules := make([]*models.Schedule, 0, len(names))
	for _, name := range names {
		schedule, err := s.LoadSchedule(name)
		if err != nil {
			logging.Warnf("skipping schedule %s: %v", name, err)
			continue
		}
		schedules = append(schedules, schedule)
	}
	return schedules, nil
}

// LoadCalendar returns a copy of the named calendar
func (s *Storage) LoadCalendar(name string) (*models.Calendar, error) {
	s.cache.mu.RLock()
	cal, ok := s.cache.calendars[name]
	s.cache.mu.RUnlock()
	if ok {
		return cal.Clone(), nil
	}

	cal, err := s.provider.LoadCalendar(name)
	if err != nil {
		return nil, err
	}

	s.cache.mu.Lock()
	s.cache.calendars[name] = cal
	s.cache.mu.Unlock()
	return cal.Clone(), nil
}

// CreateCalendar persists a new calendar
func (s *Storage) CreateCalendar(cal *models.Calendar) error {
	if err := ValidateName("calendar", cal.Name); err != nil {
		return err
	}

	lock := s.lockFor("calendar", cal.Name)
	lock.Lock()
	defer lock.Unlock()

	if s.provider.CalendarExists(cal.Name) {
		return apperr.Validationf("create calendar", "calendar '%s' already exists", cal.Name)
	}
	return s.saveCalendar(cal.Clone())
}

// UpdateCalendar runs updater against a copy of the calendar and saves it
// on success
func (s *Storage) UpdateCalendar(name string, updater func(*models.Calendar) error) error {
	lock := s.lockFor("calendar", name)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.LoadCalendar(name)
	if err != nil {
		return err
	}
	if err := updater(current); err != nil {
		return err
	}
	current.UpdatedAt = time.Now()
	return s.saveCalendar(current)
}

func (s *Storage) saveCalendar(cal *models.Calendar) error {
	if err := s.provider.SaveCalendar(cal); err != nil {
		return err
	}
	s.cache.mu.Lock()
	s.cache.calendars[cal.Name] = cal
	s.cache.mu.Unlock()
	return nil
}

// DeleteCalendar removes a calendar
func (s *Storage) DeleteCalendar(name string) error {
	lock := s.lockFor("calendar", name)
	lock.Lock()
	defer lock.Unlock()

	if err := s.provider.DeleteCalendar(name); err != nil {
		return err
	}
	s.cache.mu.Lock()
	delete(s.cache.calendars, name)
	s.cache.mu.Unlock()
	return nil
}

// ListCalendars returns all calendar names
func (s *Storage) ListCalendars() ([]string, error) {
	return s.provider.ListCalendars()
}

// CalendarExists checks if a calendar exists
func (s *Storage) CalendarExists(name string) bool {
	return s.provider.CalendarExists(name)
}

// InvalidateCache removes a schedule from cache
func (s *Storage) InvalidateCache(name string) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	delete(s.cache.schedules, name)
}

// ClearCache removes all cached data
func (s *Storage) ClearCache() {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	s.cache.schedules = make(map[string]*models.Schedule)
	s.cache.calendars = make(map[string]*models.Calendar)
}

// GetCacheStats returns statistics about cache usage
func (s *Storage) GetCacheStats() map[string]interface{} {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()

	return map[string]interface{}{
		"cached_schedules": len(s.cache.schedules),
		"cached_calendars": len(s.cache.calendars),
		"index_entries":    len(s.cache.index),
	}
}

// IsNotFound reports whether err is a missing-record error
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
