package services

import (
	"log"
	"sort"
	"time"

	"wastelink-backend/internal/apperrors"
	"wastelink-backend/internal/models"
)

// ScheduleStore is the persistence surface for the schedule lifecycle.
// The Mark* transitions are guarded at the store so the Pending -> In Progress
// -> Completed machine and the at-most-one-active rule hold under concurrency.
type ScheduleStore interface {
	GetSchedule(id string) (*models.Schedule, error)
	ListSchedulesByCollector(collectorID string) ([]models.Schedule, error)
	MarkScheduleInProgress(id, collectorID string, ts int64) (bool, error)
	MarkScheduleCompleted(id string, ts int64) (bool, error)
}

// ScheduleManager owns the collection-route state machine
type ScheduleManager struct {
	store ScheduleStore
	now   func() time.Time
}

func NewScheduleManager(store ScheduleStore) *ScheduleManager {
	return &ScheduleManager{store: store, now: time.Now}
}

// ListForCollector returns the collector's schedules in calendar order
func (sm *ScheduleManager) ListForCollector(collectorID string) ([]models.Schedule, error) {
	schedules, err := sm.store.ListSchedulesByCollector(collectorID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(schedules, func(i, j int) bool {
		return schedules[i].SortKey() < schedules[j].SortKey()
	})
	return schedules, nil
}

// NextSchedule returns the earliest non-completed schedule, which is the only
// one Start/Complete will act on
func (sm *ScheduleManager) NextSchedule(collectorID string) (*models.Schedule, error) {
	schedules, err := sm.ListForCollector(collectorID)
	if err != nil {
		return nil, err
	}
	for i := range schedules {
		if schedules[i].Status != models.ScheduleStatusCompleted {
			return &schedules[i], nil
		}
	}
	return nil, nil
}

// ActiveSchedule returns the collector's In Progress schedule, if any
func (sm *ScheduleManager) ActiveSchedule(collectorID string) (*models.Schedule, error) {
	schedules, err := sm.store.ListSchedulesByCollector(collectorID)
	if err != nil {
		return nil, err
	}
	for i := range schedules {
		if schedules[i].Status == models.ScheduleStatusInProgress {
			return &schedules[i], nil
		}
	}
	return nil, nil
}

// StartRoute moves a Pending schedule to In Progress. Only the requesting
// collector's own, earliest outstanding schedule may start, and never while
// another of their schedules is already running.
func (sm *ScheduleManager) StartRoute(scheduleID, collectorID string) (*models.Schedule, error) {
	schedule, err := sm.store.GetSchedule(scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, apperrors.NotFound("schedule %s not found", scheduleID)
	}
	if schedule.CollectorID != collectorID {
		return nil, apperrors.Forbidden("schedule %s is not assigned to you", scheduleID)
	}
	if schedule.Status != models.ScheduleStatusPending {
		return nil, apperrors.InvalidState("schedule is %s, only Pending schedules can start", schedule.Status)
	}

	next, err := sm.NextSchedule(collectorID)
	if err != nil {
		return nil, err
	}
	if next != nil && next.Status == models.ScheduleStatusInProgress {
		return nil, apperrors.InvalidState("another route is already in progress")
	}
	if next != nil && next.ID != scheduleID {
		return nil, apperrors.InvalidState("schedule for %s %s must be handled first", next.Date, next.TimeOfDay)
	}

	ok, err := sm.store.MarkScheduleInProgress(scheduleID, collectorID, sm.now().Unix())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.InvalidState("schedule could not be started, another route may be in progress")
	}

	log.Printf("✅ [SCHEDULE] Route %s started by %s (%s, %s %s)", scheduleID, collectorID, schedule.Area, schedule.Date, schedule.TimeOfDay)
	return sm.store.GetSchedule(scheduleID)
}

// CompleteRoute moves an In Progress schedule to Completed
func (sm *ScheduleManager) CompleteRoute(scheduleID, collectorID string) (*models.Schedule, error) {
	schedule, err := sm.store.GetSchedule(scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, apperrors.NotFound("schedule %s not found", scheduleID)
	}
	if schedule.CollectorID != collectorID {
		return nil, apperrors.Forbidden("schedule %s is not assigned to you", scheduleID)
	}
	if schedule.Status != models.ScheduleStatusInProgress {
		return nil, apperrors.InvalidState("schedule is %s, only In Progress schedules can complete", schedule.Status)
	}

	ok, err := sm.store.MarkScheduleCompleted(scheduleID, sm.now().Unix())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.InvalidState("schedule is no longer in progress")
	}

	log.Printf("✅ [SCHEDULE] Route %s completed by %s", scheduleID, collectorID)
	return sm.store.GetSchedule(scheduleID)
}
