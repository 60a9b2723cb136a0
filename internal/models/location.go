package models

// CollectorLocation represents a GPS location update from a collector's device
type CollectorLocation struct {
	CollectorID string   `json:"collector_id" db:"collector_id"`
	Latitude    float64  `json:"latitude" db:"latitude"`
	Longitude   float64  `json:"longitude" db:"longitude"`
	Heading     *float64 `json:"heading,omitempty" db:"heading"`   // direction of travel (0-360 degrees)
	Speed       *float64 `json:"speed,omitempty" db:"speed"`       // m/s
	Accuracy    *float64 `json:"accuracy,omitempty" db:"accuracy"` // meters
	IsConnected bool     `json:"is_connected" db:"is_connected"`
	Timestamp   int64    `json:"timestamp" db:"timestamp"`   // client-side timestamp
	UpdatedAt   int64    `json:"updated_at" db:"updated_at"` // server-side timestamp
}

// CollectorStatus is a collector's current state for the fleet dashboard
type CollectorStatus struct {
	CollectorID  string             `json:"collector_id"`
	Name         string             `json:"name"`
	ShiftStatus  *ScheduleStatus    `json:"shift_status,omitempty"`
	ScheduleID   *string            `json:"schedule_id,omitempty"`
	LastLocation *CollectorLocation `json:"last_location,omitempty"`
}
