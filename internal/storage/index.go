package storage

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// GenerateTaskID generates a unique 8-character hex ID
func GenerateTaskID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// LoadIndex loads the task index from disk
func (s *Storage) LoadIndex() error {
	index := make(models.TaskIndex)
	err := readJSONFile(s.indexFile, &index)

	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	if err != nil {
		// Index doesn't exist or is corrupted
		s.cache.index = make(models.TaskIndex)
		return err
	}
	s.cache.index = index
	return nil
}

// SaveIndex saves the task index to disk
func (s *Storage) SaveIndex() error {
	s.cache.mu.RLock()
	snapshot := make(models.TaskIndex, len(s.cache.index))
	for k, v := range s.cache.index {
		snapshot[k] = v
	}
	s.cache.mu.RUnlock()

	return writeJSONFile(s.indexFile, snapshot)
}

// RebuildIndex rebuilds the entire task index from all schedules
func (s *Storage) RebuildIndex() error {
	newIndex := make(models.TaskIndex)

	names, err := s.ListSchedules()
	if err != nil {
		return fmt.Errorf("failed to list schedules: %w", err)
	}

	for _, name := range names {
		schedule, err := s.loadSchedule(name)
		if err != nil {
			// Skip corrupted schedules
			continue
		}
		for _, task := range schedule.Tasks {
			newIndex[task.ID] = name
		}
	}

	s.cache.mu.Lock()
	s.cache.index = newIndex
	s.cache.mu.Unlock()

	return s.SaveIndex()
}

// indexSchedule replaces the index entries of one schedule
func (s *Storage) indexSchedule(schedule *models.Schedule) error {
	s.cache.mu.Lock()
	for taskID, owner := range s.cache.index {
		if owner == schedule.Name {
			delete(s.cache.index, taskID)
		}
	}
	for _, task := range schedule.Tasks {
		s.cache.index[task.ID] = schedule.Name
	}
	s.cache.mu.Unlock()

	return s.SaveIndex()
}

func (s *Storage) dropFromIndex(name string) error {
	s.cache.mu.Lock()
	for taskID, owner := range s.cache.index {
		if owner == name {
			delete(s.cache.index, taskID)
		}
	}
	s.cache.mu.Unlock()

	return s.SaveIndex()
}

// LookupTask returns the schedule owning a task ID
func (s *Storage) LookupTask(taskID string) (string, error) {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()

	name, exists := s.cache.index[taskID]
	if !exists {
		return "", apperr.NotFoundf("lookup task", "task '%s' not found in index", taskID)
	}
	return name, nil
}

// IsIndexStale reports whether the index file is missing or, for file
// based storage, older than any schedule file
func (s *Storage) IsIndexStale() (bool, error) {
	info, err := os.Stat(s.indexFile)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}

	js, ok := s.provider.(*JSONStore)
	if !ok {
		return false, nil
	}

	names, err := s.ListSchedules()
	if err != nil {
		return false, err
	}
	for _, name := range names {
		schedInfo, err := os.Stat(js.schedulePath(name))
		if err != nil {
			continue
		}
		if schedInfo.ModTime().After(info.ModTime()) {
			return true, nil
		}
	}
	return false, nil
}

// EnsureIndexFresh rebuilds the index if it's stale
func (s *Storage) EnsureIndexFresh() error {
	stale, err := s.IsIndexStale()
	if err != nil {
		return err
	}
	if stale {
		return s.RebuildIndex()
	}
	return nil
}

// GetIndexStats returns the number of indexed tasks per schedule
func (s *Storage) GetIndexStats() map[string]interface{} {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()

	perSchedule := make(map[string]int)
	for _, name := range s.cache.index {
		perSchedule[name]++
	}

	return map[string]interface{}{
		"total_tasks": len(s.cache.index),
		"schedules":   perSchedule,
	}
}

// FindOrphanedReferences finds task IDs that are referenced but don't exist
func (s *Storage) FindOrphanedReferences(name string) (map[string][]string, error) {
	schedule, err := s.loadSchedule(name)
	if err != nil {
		return nil, err
	}

	orphaned := make(map[string][]string)
	existing := make(map[string]bool, len(schedule.Tasks))
	for _, task := range schedule.Tasks {
		existing[task.ID] = true
	}

	for _, task := range schedule.Tasks {
		if task.ParentID != "" && !existing[task.ParentID] {
			orphaned["parent_references"] = append(orphaned["parent_references"],
				fmt.Sprintf("Task %s references non-existent parent %s", task.ID, task.ParentID))
		}
		for _, child := range task.Children {
			if !existing[child] {
				orphaned["child_references"] = append(orphaned["child_references"],
					fmt.Sprintf("Task %s lists non-existent child %s", task.ID, child))
			}
		}
	}

	for _, dep := range schedule.Dependencies {
		for _, id := range []string{dep.PredecessorID, dep.SuccessorID} {
			if !existing[id] {
				orphaned["dependency_references"] = append(orphaned["dependency_references"],
					fmt.Sprintf("Dependency %s -> %s references non-existent task %s", dep.PredecessorID, dep.SuccessorID, id))
			}
		}
	}

	if schedule.Calendar != "" && !s.CalendarExists(schedule.Calendar) {
		orphaned["calendar_references"] = append(orphaned["calendar_references"],
			fmt.Sprintf("Schedule %s uses non-existent calendar %s", schedule.Name, schedule.Calendar))
	}

	return orphaned, nil
}

// ValidateIndex checks if the index matches actual data
func (s *Storage) ValidateIndex() ([]string, error) {
	problems := make([]string, 0)

	s.cache.mu.RLock()
	indexCopy := make(models.TaskIndex, len(s.cache.index))
	for k, v := range s.cache.index {
		indexCopy[k] = v
	}
	s.cache.mu.RUnlock()

	for taskID, name := range indexCopy {
		schedule, err := s.loadSchedule(name)
		if err != nil || schedule.FindTask(taskID) == nil {
			problems = append(problems,
				fmt.Sprintf("Index references task %s in %s but task not found", taskID, name))
		}
	}

	names, err := s.ListSchedules()
	if err != nil {
		return problems, err
	}
	for _, name := range names {
		schedule, err := s.loadSchedule(name)
		if err != nil {
			continue
		}
		for _, task := range schedule.Tasks {
			if owner, exists := indexCopy[task.ID]; !exists || owner != name {
				problems = append(problems,
					fmt.Sprintf("Task %s in schedule %s not indexed", task.ID, name))
			}
		}
	}

	return problems, nil
}

// CompactIndex removes entries for deleted schedules
func (s *Storage) CompactIndex() error {
	names, err := s.ListSchedules()
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	s.cache.mu.Lock()
	for taskID, owner := range s.cache.index {
		if !known[owner] {
			delete(s.cache.index, taskID)
		}
	}
	s.cache.mu.Unlock()

	return s.SaveIndex()
}
