package models

// ScheduleStatus represents the current status of a collection schedule
type ScheduleStatus string

const (
	ScheduleStatusPending    ScheduleStatus = "Pending"     // assigned, not started
	ScheduleStatusInProgress ScheduleStatus = "In Progress" // collector on route
	ScheduleStatusCompleted  ScheduleStatus = "Completed"   // route finished
)

// Schedule represents a collector's assigned collection route for an area,
// date and time slot
type Schedule struct {
	ID          string         `json:"id" db:"id"`
	CollectorID string         `json:"collector_id" db:"collector_id"`
	Area        string         `json:"area" db:"area"`
	Date        string         `json:"date" db:"date"`   // "2006-01-02"
	TimeOfDay   string         `json:"time" db:"time_of_day"` // "15:04", 24h
	Status      ScheduleStatus `json:"status" db:"status"`
	StartedAt   *int64         `json:"started_at,omitempty" db:"started_at"`     // Unix timestamp
	CompletedAt *int64         `json:"completed_at,omitempty" db:"completed_at"` // Unix timestamp
	CreatedAt   int64          `json:"created_at" db:"created_at"`
	UpdatedAt   int64          `json:"updated_at" db:"updated_at"`
}

// SortKey orders schedules by calendar slot. Date and time are zero-padded so
// plain string comparison matches chronological order.
func (s *Schedule) SortKey() string {
	return s.Date + " " + s.TimeOfDay
}

// CreateScheduleRequest is the request body for POST /api/manager/schedules
type CreateScheduleRequest struct {
	CollectorID string `json:"collector_id"`
	Area        string `json:"area"`
	Date        string `json:"date"`
	TimeOfDay   string `json:"time"`
}

// ScheduleTransitionRequest is the request body for start/complete actions
type ScheduleTransitionRequest struct {
	ScheduleID string `json:"schedule_id"`
}
