package models

// Severity of a reported grievance, set at creation by the reporting side
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

var severityRanks = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the severity ordering (Low < Medium < High < Critical).
// Unknown severities rank as Low.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return severityRanks[SeverityLow]
}

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// GrievanceStatus represents the triage state of a grievance
type GrievanceStatus string

const (
	GrievanceStatusOpen       GrievanceStatus = "Open"
	GrievanceStatusInProgress GrievanceStatus = "In Progress"
	GrievanceStatusResolved   GrievanceStatus = "Resolved"
	GrievanceStatusClosed     GrievanceStatus = "Closed"
	GrievanceStatusRejected   GrievanceStatus = "Rejected"
)

// Terminal reports whether the status admits no further transitions
func (s GrievanceStatus) Terminal() bool {
	return s == GrievanceStatusResolved || s == GrievanceStatusClosed || s == GrievanceStatusRejected
}

// Note types on the grievance communication history
const (
	NoteTypeComment    = "comment"
	NoteTypeFollowUp   = "follow_up"
	NoteTypeResolution = "resolution"
)

// GrievanceNote is a single timestamped entry in a grievance's history
type GrievanceNote struct {
	ID          int    `json:"id" db:"id"`
	GrievanceID string `json:"grievance_id" db:"grievance_id"`
	AuthorRole  string `json:"author_role" db:"author_role"` // "resident", "collector" or "admin"
	NoteType    string `json:"note_type" db:"note_type"`
	Content     string `json:"content" db:"content"`
	CreatedAt   int64  `json:"created_at" db:"created_at"`
}

// Grievance is a user-reported issue tied to a specific bin
type Grievance struct {
	ID            string          `json:"id" db:"id"`
	BinID         string          `json:"bin_id" db:"bin_id"`
	ReporterID    string          `json:"reporter_id" db:"reporter_id"`
	Area          string          `json:"area" db:"area"`
	Description   string          `json:"description" db:"description"`
	Severity      Severity        `json:"severity" db:"severity"`
	Status        GrievanceStatus `json:"status" db:"status"`
	PriorityScore float64         `json:"priority_score" db:"priority_score"`
	IsEscalated   bool            `json:"is_escalated" db:"is_escalated"`
	AssignedTo    *string         `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedAt     int64           `json:"created_at" db:"created_at"`
	UpdatedAt     int64           `json:"updated_at" db:"updated_at"`
	ResolvedAt    *int64          `json:"resolved_at,omitempty" db:"resolved_at"`

	// Populated on reads, stored in grievance_notes
	Notes []GrievanceNote `json:"notes" db:"-"`
}

// BinPoint carries the referenced bin's coordinates on grievance reads so the
// map screen can place a marker without a second fetch
type BinPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GrievanceResponse is the client-facing grievance shape
type GrievanceResponse struct {
	Grievance
	Bin *BinPoint `json:"bin,omitempty"`
}

// CreateGrievanceRequest is the request body for POST /api/grievances
type CreateGrievanceRequest struct {
	BinID       string   `json:"bin_id"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// AssignGrievanceRequest is the request body for the assign action
type AssignGrievanceRequest struct {
	CollectorID string `json:"collector_id"`
}

// GrievanceNoteRequest is the request body for adding a note
type GrievanceNoteRequest struct {
	Content string `json:"content"`
}

// ResolveGrievanceRequest is the request body for the resolve action
type ResolveGrievanceRequest struct {
	ResolutionNote string `json:"resolution_note"`
}

// CloseGrievanceRequest is the request body for the administrative archive
// action; Status must be Closed or Rejected
type CloseGrievanceRequest struct {
	Status GrievanceStatus `json:"status"`
	Reason string          `json:"reason"`
}
