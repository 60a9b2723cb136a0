package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastelink-backend/internal/apperrors"
	"wastelink-backend/internal/models"
)

type recordingNotifier struct {
	assigned  []string
	escalated []string
}

func (n *recordingNotifier) GrievanceAssigned(g *models.Grievance, collectorID string) {
	n.assigned = append(n.assigned, g.ID)
}

func (n *recordingNotifier) GrievanceEscalated(g *models.Grievance) {
	n.escalated = append(n.escalated, g.ID)
}

func newTestEngine(store *memStore) (*TriageEngine, *recordingNotifier) {
	notifier := &recordingNotifier{}
	engine := NewTriageEngine(store, notifier, 48*time.Hour)
	engine.now = fixedNow
	return engine, notifier
}

func testBin(store *memStore, t *testing.T) *models.Bin {
	t.Helper()
	seedBin(t, store, "b1", 1, 60, "Sector 4", fixedNow().Unix())
	bin, err := store.GetBin("b1")
	require.NoError(t, err)
	return bin
}

func TestPriorityScoreSeverityDominates(t *testing.T) {
	// A fresh Critical outranks the oldest, escalated Low
	fresh := PriorityScore(models.SeverityCritical, 1, false)
	stale := PriorityScore(models.SeverityLow, 10000, true)
	assert.Greater(t, fresh, stale)
}

func TestPriorityScoreAgeBreaksTies(t *testing.T) {
	older := PriorityScore(models.SeverityHigh, 100, false)
	newer := PriorityScore(models.SeverityHigh, 1, false)
	assert.Greater(t, older, newer)
}

func TestPriorityScoreAgeIsCapped(t *testing.T) {
	capped := PriorityScore(models.SeverityMedium, 500, false)
	beyond := PriorityScore(models.SeverityMedium, 9999, false)
	assert.Equal(t, capped, beyond)
}

func TestPriorityScoreEscalationBonus(t *testing.T) {
	plain := PriorityScore(models.SeverityMedium, 10, false)
	flagged := PriorityScore(models.SeverityMedium, 10, true)
	assert.Equal(t, plain+250, flagged)
}

func TestPriorityScoreMonotonicInSeverity(t *testing.T) {
	severities := []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical}
	for i := 1; i < len(severities); i++ {
		lower := PriorityScore(severities[i-1], 500, true)
		higher := PriorityScore(severities[i], 0, false)
		assert.Greater(t, higher, lower, "%s must outrank %s", severities[i], severities[i-1])
	}
}

func TestCreateGrievance(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)
	bin := testBin(store, t)

	g, err := engine.Create("resident-1", bin, "  overflowing since Monday  ", models.SeverityHigh)
	require.NoError(t, err)
	assert.Equal(t, "overflowing since Monday", g.Description)
	assert.Equal(t, models.GrievanceStatusOpen, g.Status)
	assert.Equal(t, models.SeverityHigh, g.Severity)
	assert.Equal(t, "Sector 4", g.Area)
	assert.False(t, g.IsEscalated)
	assert.Greater(t, g.PriorityScore, 0.0)
}

func TestCreateGrievanceDefaultsToMedium(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)
	bin := testBin(store, t)

	g, err := engine.Create("resident-1", bin, "bad smell", "")
	require.NoError(t, err)
	assert.Equal(t, models.SeverityMedium, g.Severity)
}

func TestCreateGrievanceValidation(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)
	bin := testBin(store, t)

	_, err := engine.Create("resident-1", bin, "   ", models.SeverityLow)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = engine.Create("resident-1", bin, "broken lid", "Catastrophic")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAssignGrievance(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store)
	bin := testBin(store, t)

	g, err := engine.Create("resident-1", bin, "overflowing", models.SeverityHigh)
	require.NoError(t, err)

	assigned, err := engine.Assign(g.ID, "collector-1")
	require.NoError(t, err)
	assert.Equal(t, models.GrievanceStatusInProgress, assigned.Status)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "collector-1", *assigned.AssignedTo)
	assert.Equal(t, []string{g.ID}, notifier.assigned)

	// A second assign hits the state guard
	_, err = engine.Assign(g.ID, "collector-2")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))
}

func TestAssignUnknownGrievance(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)

	_, err := engine.Assign("missing", "collector-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestResolveRequiresNote(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)
	bin := testBin(store, t)

	g, err := engine.Create("resident-1", bin, "overflowing", models.SeverityHigh)
	require.NoError(t, err)
	_, err = engine.Assign(g.ID, "collector-1")
	require.NoError(t, err)

	_, err = engine.Resolve(g.ID, "collector-1", "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// State unchanged after the failed resolve
	current, err := store.GetGrievance(g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GrievanceStatusInProgress, current.Status)
}

func TestResolveOnlyByAssignee(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)
	bin := testBin(store, t)

	g, err := engine.Create("resident-1", bin, "overflowing", models.SeverityHigh)
	require.NoError(t, err)
	_, err = engine.Assign(g.ID, "collector-1")
	require.NoError(t, err)

	_, err = engine.Resolve(g.ID, "collector-2", "done")
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestResolveRequiresInProgress(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)
	bin := testBin(store, t)

	g, err := engine.Create("resident-1", bin, "overflowing", models.SeverityHigh)
	require.NoError(t, err)

	// Never assigned: AssignedTo is nil, so the assignment check fires first
	_, err = engine.Resolve(g.ID, "collector-1", "done")
	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestResolveAppendsResolutionNote(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)
	bin := testBin(store, t)

	g, err := engine.Create("resident-1", bin, "overflowing", models.SeverityHigh)
	require.NoError(t, err)
	_, err = engine.Assign(g.ID, "collector-1")
	require.NoError(t, err)

	resolved, err := engine.Resolve(g.ID, "collector-1", "emptied and washed")
	require.NoError(t, err)
	assert.Equal(t, models.GrievanceStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	require.Len(t, resolved.Notes, 1)
	assert.Equal(t, models.NoteTypeResolution, resolved.Notes[0].NoteType)
	assert.Equal(t, "emptied and washed", resolved.Notes[0].Content)

	// Terminal: no further notes or transitions
	_, err = engine.AddNote(g.ID, "resident", models.NoteTypeComment, "thanks")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = engine.Resolve(g.ID, "collector-1", "again")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))
}

func TestArchiveGrievance(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)
	bin := testBin(store, t)

	g, err := engine.Create("resident-1", bin, "duplicate report", models.SeverityLow)
	require.NoError(t, err)

	archived, err := engine.Archive(g.ID, models.GrievanceStatusRejected, "duplicate of an earlier report")
	require.NoError(t, err)
	assert.Equal(t, models.GrievanceStatusRejected, archived.Status)
	require.Len(t, archived.Notes, 1)

	// Terminal states cannot be archived again
	_, err = engine.Archive(g.ID, models.GrievanceStatusClosed, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))
}

func TestArchiveRejectsNonTerminalStatus(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)
	bin := testBin(store, t)

	g, err := engine.Create("resident-1", bin, "overflowing", models.SeverityLow)
	require.NoError(t, err)

	_, err = engine.Archive(g.ID, models.GrievanceStatusInProgress, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRankOrdersByLivePriority(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store)

	now := fixedNow().Unix()
	grievances := []models.Grievance{
		{ID: "g-low-old", Severity: models.SeverityLow, CreatedAt: now - 100*3600},
		{ID: "g-crit-new", Severity: models.SeverityCritical, CreatedAt: now - 3600},
		{ID: "g-high-old", Severity: models.SeverityHigh, CreatedAt: now - 50*3600},
		{ID: "g-high-new", Severity: models.SeverityHigh, CreatedAt: now - 3600},
	}

	engine.Rank(grievances)

	assert.Equal(t, "g-crit-new", grievances[0].ID)
	assert.Equal(t, "g-high-old", grievances[1].ID)
	assert.Equal(t, "g-high-new", grievances[2].ID)
	assert.Equal(t, "g-low-old", grievances[3].ID)
}

func TestSweepEscalationsIsMonotonic(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store)
	bin := testBin(store, t)

	g, err := engine.Create("resident-1", bin, "overflowing", models.SeverityMedium)
	require.NoError(t, err)

	// Backdate past the 48h threshold
	store.mu.Lock()
	store.grievances[g.ID].CreatedAt = fixedNow().Add(-72 * time.Hour).Unix()
	store.mu.Unlock()

	n, err := engine.SweepEscalations()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{g.ID}, notifier.escalated)

	flagged, err := store.GetGrievance(g.ID)
	require.NoError(t, err)
	assert.True(t, flagged.IsEscalated)
	scoreAfterFirst := flagged.PriorityScore

	// Second sweep flags nothing new and never clears the flag
	n, err = engine.SweepEscalations()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, notifier.escalated, 1)

	still, err := store.GetGrievance(g.ID)
	require.NoError(t, err)
	assert.True(t, still.IsEscalated)
	assert.Equal(t, scoreAfterFirst, still.PriorityScore)
}

func TestSweepIgnoresFreshGrievances(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store)
	bin := testBin(store, t)

	_, err := engine.Create("resident-1", bin, "overflowing", models.SeverityMedium)
	require.NoError(t, err)

	n, err := engine.SweepEscalations()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, notifier.escalated)
}
