package services

import (
	"log"
	"sort"
	"strings"
	"time"

	"wastelink-backend/internal/apperrors"
	"wastelink-backend/internal/models"

	"github.com/google/uuid"
)

// Priority weighting. Severity bands are spaced so the maximum age and
// escalation contribution (500 + 250) can never lift a grievance past the
// next band: higher severity always outranks lower, and within a band older
// outranks newer.
const (
	severityBandWidth = 1000.0
	maxAgeHoursScored = 500.0
	escalationBonus   = 250.0
)

// PriorityScore computes the triage ranking for a grievance
func PriorityScore(severity models.Severity, ageHours float64, escalated bool) float64 {
	score := float64(severity.Rank()) * severityBandWidth

	if ageHours < 0 {
		ageHours = 0
	}
	if ageHours > maxAgeHoursScored {
		ageHours = maxAgeHoursScored
	}
	score += ageHours

	if escalated {
		score += escalationBonus
	}
	return score
}

// GrievanceStore is the persistence surface for grievance triage
type GrievanceStore interface {
	GetGrievance(id string) (*models.Grievance, error)
	InsertGrievance(g *models.Grievance) error
	ListGrievancesByAssignee(collectorID string, activeOnly bool) ([]models.Grievance, error)
	ListGrievancesByReporter(reporterID string) ([]models.Grievance, error)
	ListUnresolvedGrievances() ([]models.Grievance, error)
	AssignGrievance(id, collectorID string, ts int64) (bool, error)
	ResolveGrievance(id string, ts int64) (bool, error)
	ArchiveGrievance(id string, status models.GrievanceStatus, ts int64) (bool, error)
	AppendGrievanceNote(note *models.GrievanceNote) error
	MarkGrievanceEscalated(id string, ts int64) (bool, error)
	UpdateGrievancePriority(id string, score float64) error
	FindActiveGrievanceForBin(binID, collectorID string) (*models.Grievance, error)
}

// TriageNotifier receives triage events worth pushing to devices. Implemented
// over FCM + websocket in the wiring; nil disables notifications.
type TriageNotifier interface {
	GrievanceAssigned(g *models.Grievance, collectorID string)
	GrievanceEscalated(g *models.Grievance)
}

// TriageEngine computes priorities, assigns grievances to collectors and
// drives their status transitions
type TriageEngine struct {
	store               GrievanceStore
	notifier            TriageNotifier
	escalationThreshold time.Duration
	now                 func() time.Time
}

func NewTriageEngine(store GrievanceStore, notifier TriageNotifier, escalationThreshold time.Duration) *TriageEngine {
	return &TriageEngine{
		store:               store,
		notifier:            notifier,
		escalationThreshold: escalationThreshold,
		now:                 time.Now,
	}
}

// Score returns the grievance's current priority
func (e *TriageEngine) Score(g *models.Grievance) float64 {
	ageHours := e.now().Sub(time.Unix(g.CreatedAt, 0)).Hours()
	return PriorityScore(g.Severity, ageHours, g.IsEscalated)
}

// Create registers a citizen-reported grievance against a bin
func (e *TriageEngine) Create(reporterID string, bin *models.Bin, description string, severity models.Severity) (*models.Grievance, error) {
	if strings.TrimSpace(description) == "" {
		return nil, apperrors.Validation("description must not be empty")
	}
	if severity == "" {
		severity = models.SeverityMedium
	}
	if !severity.Valid() {
		return nil, apperrors.Validation("unknown severity %q", severity)
	}

	now := e.now().Unix()
	g := &models.Grievance{
		ID:          uuid.New().String(),
		BinID:       bin.ID,
		ReporterID:  reporterID,
		Area:        bin.Area,
		Description: strings.TrimSpace(description),
		Severity:    severity,
		Status:      models.GrievanceStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	g.PriorityScore = e.Score(g)

	if err := e.store.InsertGrievance(g); err != nil {
		return nil, err
	}

	log.Printf("📣 [TRIAGE] Grievance %s created on bin %d (%s)", g.ID, bin.BinNumber, g.Severity)
	return e.store.GetGrievance(g.ID)
}

// Assign hands an Open grievance to a collector; the status moves to
// In Progress in the same transition
func (e *TriageEngine) Assign(grievanceID, collectorID string) (*models.Grievance, error) {
	g, err := e.store.GetGrievance(grievanceID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperrors.NotFound("grievance %s not found", grievanceID)
	}
	if g.Status != models.GrievanceStatusOpen {
		return nil, apperrors.InvalidState("grievance is %s, only Open grievances can be assigned", g.Status)
	}

	ok, err := e.store.AssignGrievance(grievanceID, collectorID, e.now().Unix())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.InvalidState("grievance is no longer open")
	}

	updated, err := e.store.GetGrievance(grievanceID)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ [TRIAGE] Grievance %s assigned to %s", grievanceID, collectorID)
	if e.notifier != nil {
		e.notifier.GrievanceAssigned(updated, collectorID)
	}
	return updated, nil
}

// AddNote appends to the grievance history without touching its status
func (e *TriageEngine) AddNote(grievanceID, authorRole, noteType, content string) (*models.Grievance, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.Validation("note content must not be empty")
	}

	g, err := e.store.GetGrievance(grievanceID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperrors.NotFound("grievance %s not found", grievanceID)
	}
	if g.Status.Terminal() {
		return nil, apperrors.Validation("grievance is %s, no further notes accepted", g.Status)
	}

	if noteType == "" {
		noteType = models.NoteTypeComment
	}

	if err := e.store.AppendGrievanceNote(&models.GrievanceNote{
		GrievanceID: grievanceID,
		AuthorRole:  authorRole,
		NoteType:    noteType,
		Content:     strings.TrimSpace(content),
		CreatedAt:   e.now().Unix(),
	}); err != nil {
		return nil, err
	}

	return e.store.GetGrievance(grievanceID)
}

// Resolve closes out an In Progress grievance with a mandatory resolution
// note. Only the assigned collector may resolve.
func (e *TriageEngine) Resolve(grievanceID, collectorID, resolutionNote string) (*models.Grievance, error) {
	if strings.TrimSpace(resolutionNote) == "" {
		return nil, apperrors.Validation("resolution note must not be empty")
	}

	g, err := e.store.GetGrievance(grievanceID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperrors.NotFound("grievance %s not found", grievanceID)
	}
	if g.AssignedTo == nil || *g.AssignedTo != collectorID {
		return nil, apperrors.Forbidden("grievance %s is not assigned to you", grievanceID)
	}
	if g.Status != models.GrievanceStatusInProgress {
		return nil, apperrors.InvalidState("grievance is %s, only In Progress grievances can be resolved", g.Status)
	}

	now := e.now().Unix()
	ok, err := e.store.ResolveGrievance(grievanceID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.InvalidState("grievance is no longer in progress")
	}

	if err := e.store.AppendGrievanceNote(&models.GrievanceNote{
		GrievanceID: grievanceID,
		AuthorRole:  "collector",
		NoteType:    models.NoteTypeResolution,
		Content:     strings.TrimSpace(resolutionNote),
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}

	log.Printf("✅ [TRIAGE] Grievance %s resolved by %s", grievanceID, collectorID)
	return e.store.GetGrievance(grievanceID)
}

// Archive is the administrative Close/Reject action on a non-terminal
// grievance
func (e *TriageEngine) Archive(grievanceID string, status models.GrievanceStatus, reason string) (*models.Grievance, error) {
	if status != models.GrievanceStatusClosed && status != models.GrievanceStatusRejected {
		return nil, apperrors.Validation("archive status must be Closed or Rejected")
	}

	g, err := e.store.GetGrievance(grievanceID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperrors.NotFound("grievance %s not found", grievanceID)
	}
	if g.Status.Terminal() {
		return nil, apperrors.InvalidState("grievance is already %s", g.Status)
	}

	now := e.now().Unix()
	ok, err := e.store.ArchiveGrievance(grievanceID, status, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.InvalidState("grievance was archived concurrently")
	}

	if strings.TrimSpace(reason) != "" {
		if err := e.store.AppendGrievanceNote(&models.GrievanceNote{
			GrievanceID: grievanceID,
			AuthorRole:  "admin",
			NoteType:    models.NoteTypeComment,
			Content:     strings.TrimSpace(reason),
			CreatedAt:   now,
		}); err != nil {
			return nil, err
		}
	}

	return e.store.GetGrievance(grievanceID)
}

// ActiveForCollector returns the collector's non-terminal grievances, ranked
func (e *TriageEngine) ActiveForCollector(collectorID string) ([]models.Grievance, error) {
	grievances, err := e.store.ListGrievancesByAssignee(collectorID, true)
	if err != nil {
		return nil, err
	}
	e.Rank(grievances)
	return grievances, nil
}

// Rank sorts grievances by live priority, highest first; equal scores fall
// back to age, oldest first
func (e *TriageEngine) Rank(grievances []models.Grievance) {
	for i := range grievances {
		grievances[i].PriorityScore = e.Score(&grievances[i])
	}
	sort.SliceStable(grievances, func(i, j int) bool {
		if grievances[i].PriorityScore != grievances[j].PriorityScore {
			return grievances[i].PriorityScore > grievances[j].PriorityScore
		}
		return grievances[i].CreatedAt < grievances[j].CreatedAt
	})
}

// SweepEscalations flags every unresolved grievance older than the threshold.
// The flag is monotonic: once escalated a grievance stays escalated. Returns
// the number of newly escalated grievances.
func (e *TriageEngine) SweepEscalations() (int, error) {
	grievances, err := e.store.ListUnresolvedGrievances()
	if err != nil {
		return 0, err
	}

	now := e.now()
	escalated := 0
	for i := range grievances {
		g := &grievances[i]
		age := now.Sub(time.Unix(g.CreatedAt, 0))

		if !g.IsEscalated && age >= e.escalationThreshold {
			ok, err := e.store.MarkGrievanceEscalated(g.ID, now.Unix())
			if err != nil {
				return escalated, err
			}
			if ok {
				g.IsEscalated = true
				escalated++
				log.Printf("🚨 [TRIAGE] Grievance %s escalated after %.0fh unresolved", g.ID, age.Hours())
				if e.notifier != nil {
					e.notifier.GrievanceEscalated(g)
				}
			}
		}

		// Keep the stored score fresh so ranked reads stay cheap
		if err := e.store.UpdateGrievancePriority(g.ID, e.Score(g)); err != nil {
			return escalated, err
		}
	}

	return escalated, nil
}
