package planner

import (
	"time"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/engine"
	"github.com/mrbooshehri/qix-sched/internal/models"
	"github.com/mrbooshehri/qix-sched/internal/storage"
)

// TaskInput describes a new task. A zero Start anchors the task to the
// schedule start.
type TaskInput struct {
	Name     string
	Duration int
	Mode     models.ScheduleMode
	ParentID string
	Start    time.Time
}

// AddTask creates a task, places it and rolls its parent up.
func (s *Service) AddTask(scheduleName string, in TaskInput) (*models.Task, error) {
	var created *models.Task
	_, err := s.update(scheduleName, func(snap *engine.Snapshot) error {
		id, err := s.newTaskID(snap)
		if err != nil {
			return err
		}

		now := s.now()
		t := &models.Task{
			ID:        id,
			Name:      in.Name,
			Duration:  in.Duration,
			Mode:      in.Mode,
			Start:     in.Start,
			ParentID:  in.ParentID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := snap.AddTask(t); err != nil {
			return err
		}
		changed, err := s.settle(snap, t.ID)
		if err != nil {
			return err
		}
		s.touch(changed...)
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task created", "schedule", scheduleName, "task", created.ID, "mode", created.Mode)
	return created.Clone(), nil
}

// newTaskID returns an ID unused in the snapshot and in the task index.
func (s *Service) newTaskID(snap *engine.Snapshot) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		id := storage.GenerateTaskID()
		if _, err := snap.Task(id); err == nil {
			continue
		}
		if _, err := s.store.LookupTask(id); err == nil {
			continue
		}
		return id, nil
	}
	return "", apperr.Invariantf("add task", "could not generate a unique task id")
}

// EditTask applies a patch and cascades the new dates downstream.
func (s *Service) EditTask(scheduleName, id string, patch engine.TaskPatch) (*models.Task, error) {
	var edited *models.Task
	_, err := s.update(scheduleName, func(snap *engine.Snapshot) error {
		if err := snap.UpdateTask(id, patch); err != nil {
			return err
		}
		t, _ := snap.Task(id)
		s.touch(t)

		changed, err := s.settle(snap, id)
		if err != nil {
			return err
		}
		s.touch(changed...)
		edited = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task updated", "schedule", scheduleName, "task", id)
	return edited.Clone(), nil
}

// RemoveTask deletes a task and re-dates its former successors.
func (s *Service) RemoveTask(scheduleName, id string) (*models.Task, error) {
	var removed *models.Task
	_, err := s.update(scheduleName, func(snap *engine.Snapshot) error {
		var successors []string
		for _, e := range snap.Graph().Successors(id) {
			successors = append(successors, e.To)
		}

		t, err := snap.RemoveTask(id)
		if err != nil {
			return err
		}
		changed, err := s.settle(snap, successors...)
		if err != nil {
			return err
		}
		s.touch(changed...)
		removed = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task removed", "schedule", scheduleName, "task", id)
	return removed, nil
}

// LinkTask makes child a WBS child of parent.
func (s *Service) LinkTask(scheduleName, childID, parentID string) error {
	_, err := s.update(scheduleName, func(snap *engine.Snapshot) error {
		if err := snap.SetParent(childID, parentID); err != nil {
			return err
		}
		changed, err := s.settle(snap, parentID)
		if err != nil {
			return err
		}
		s.touch(changed...)
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("task linked", "schedule", scheduleName, "child", childID, "parent", parentID)
	return nil
}

// UnlinkTask moves a task to the top level of the hierarchy.
func (s *Service) UnlinkTask(scheduleName, childID string) error {
	_, err := s.update(scheduleName, func(snap *engine.Snapshot) error {
		child, err := snap.Task(childID)
		if err != nil {
			return err
		}
		if child.ParentID == "" {
			return apperr.Validationf("unlink task", "task %s has no parent", childID)
		}
		oldParent := child.ParentID
		if err := snap.ClearParent(childID); err != nil {
			return err
		}
		changed, err := s.settle(snap, oldParent)
		if err != nil {
			return err
		}
		s.touch(changed...)
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("task unlinked", "schedule", scheduleName, "task", childID)
	return nil
}

// RescheduleTask re-dates the task and everything downstream of it.
func (s *Service) RescheduleTask(scheduleName, id string) ([]*models.Task, error) {
	var changed []*models.Task
	_, err := s.update(scheduleName, func(snap *engine.Snapshot) error {
		moved, err := s.settle(snap, id)
		if err != nil {
			return err
		}
		s.touch(moved...)
		for _, t := range moved {
			changed = append(changed, t.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("task rescheduled", "schedule", scheduleName, "task", id, "changed", len(changed))
	return changed, nil
}

// GetTask returns a copy of one task.
func (s *Service) GetTask(scheduleName, id string) (*models.Task, error) {
	sc, err := s.store.LoadSchedule(scheduleName)
	if err != nil {
		return nil, err
	}
	t := sc.FindTask(id)
	if t == nil {
		return nil, apperr.NotFoundf("find task", "task %s not found in schedule %s", id, scheduleName)
	}
	return t, nil
}

// FindTask locates a task by ID alone through the task index.
func (s *Service) FindTask(id string) (string, *models.Task, error) {
	if err := s.store.EnsureIndexFresh(); err != nil {
		s.log.Warn("index refresh failed", "err", err)
	}
	name, err := s.store.LookupTask(id)
	if err != nil {
		return "", nil, err
	}
	t, err := s.GetTask(name, id)
	if err != nil {
		return "", nil, err
	}
	return name, t, nil
}

// AddDependency links pred to succ and re-dates the successor side.
func (s *Service) AddDependency(scheduleName, pred, succ, depType string, lag int) (models.Dependency, error) {
	typ, err := models.ParseDependencyType(depType)
	if err != nil {
		return models.Dependency{}, apperr.New(apperr.ErrValidation, "add dependency", err.Error())
	}

	dep := models.Dependency{
		PredecessorID: pred,
		SuccessorID:   succ,
		Type:          typ,
		Lag:           lag,
		CreatedAt:     s.now(),
	}
	_, err = s.update(scheduleName, func(snap *engine.Snapshot) error {
		if err := snap.AddDependency(dep); err != nil {
			return err
		}
		changed, err := s.settle(snap, succ)
		if err != nil {
			return err
		}
		s.touch(changed...)
		return nil
	})
	if err != nil {
		return models.Dependency{}, err
	}

	s.log.Info("dependency added", "schedule", scheduleName, "pred", pred, "succ", succ, "type", typ.Short(), "lag", lag)
	return dep, nil
}

// RemoveDependency deletes pred -> succ and re-dates the successor side.
func (s *Service) RemoveDependency(scheduleName, pred, succ string) (models.Dependency, error) {
	var removed models.Dependency
	_, err := s.update(scheduleName, func(snap *engine.Snapshot) error {
		d, err := snap.RemoveDependency(pred, succ)
		if err != nil {
			return err
		}
		changed, err := s.settle(snap, succ)
		if err != nil {
			return err
		}
		s.touch(changed...)
		removed = d
		return nil
	})
	if err != nil {
		return models.Dependency{}, err
	}

	s.log.Info("dependency removed", "schedule", scheduleName, "pred", pred, "succ", succ)
	return removed, nil
}
