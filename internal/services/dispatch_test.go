package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastelink-backend/internal/apperrors"
	"wastelink-backend/internal/models"
)

func newTestDispatcher(t *testing.T, policy CollectionPolicy) (*Dispatcher, *memStore, *TriageEngine) {
	t.Helper()
	store := newMemStore()
	monitor := NewBinMonitor(store)
	monitor.now = fixedNow
	manager := NewScheduleManager(store)
	manager.now = fixedNow
	engine, _ := newTestEngine(store)

	d := NewDispatcher(monitor, manager, engine, store, policy)
	d.now = fixedNow
	return d, store, engine
}

func TestBuildWorklistMergesAndSubsumes(t *testing.T) {
	d, store, engine := newTestDispatcher(t, DefaultCollectionPolicy())

	base := fixedNow().Unix()
	seedBin(t, store, "b1", 1, 80, "Sector 4", base) // eligible, has grievance
	seedBin(t, store, "b2", 2, 95, "Sector 4", base) // eligible, fill only
	seedBin(t, store, "b3", 3, 20, "Sector 4", base) // below threshold, grievance only

	for _, binID := range []string{"b1", "b3"} {
		bin, err := store.GetBin(binID)
		require.NoError(t, err)
		g, err := engine.Create("resident-1", bin, "issue on "+binID, models.SeverityHigh)
		require.NoError(t, err)
		_, err = engine.Assign(g.ID, "c1")
		require.NoError(t, err)
	}

	wl, err := d.BuildWorklist("c1")
	require.NoError(t, err)
	require.Len(t, wl.Items, 3)

	// Grievance entries come first, and b1 appears exactly once
	kinds := map[string]string{}
	seen := map[string]int{}
	for _, item := range wl.Items {
		kinds[item.BinID] = item.Kind
		seen[item.BinID]++
	}
	assert.Equal(t, WorkItemGrievance, kinds["b1"])
	assert.Equal(t, WorkItemGrievance, kinds["b3"])
	assert.Equal(t, WorkItemBin, kinds["b2"])
	assert.Equal(t, 1, seen["b1"])

	// Grievance items carry the referenced bin's coordinates and fill state
	for _, item := range wl.Items {
		if item.BinID == "b1" {
			assert.Equal(t, 1, item.BinNumber)
			assert.Equal(t, 80, item.FillPercentage)
			assert.Equal(t, models.FillLevelHigh, item.FillLevel)
			require.NotNil(t, item.GrievanceID)
		}
	}
	assert.Equal(t, fixedNow().Unix(), wl.GeneratedAt)
}

func TestBuildWorklistScopesToActiveScheduleArea(t *testing.T) {
	d, store, _ := newTestDispatcher(t, DefaultCollectionPolicy())

	base := fixedNow().Unix()
	seedBin(t, store, "b1", 1, 80, "Sector 4", base)
	seedBin(t, store, "b2", 2, 95, "Lakeview", base)

	seedSchedule(t, store, "s1", "c1", "2025-06-10", "08:00", models.ScheduleStatusInProgress)

	wl, err := d.BuildWorklist("c1")
	require.NoError(t, err)
	require.NotNil(t, wl.Schedule)
	assert.Equal(t, "s1", wl.Schedule.ID)

	// Only the scheduled area's bins
	require.Len(t, wl.Items, 1)
	assert.Equal(t, "b1", wl.Items[0].BinID)
}

func TestBuildWorklistAttachesDistance(t *testing.T) {
	d, store, _ := newTestDispatcher(t, DefaultCollectionPolicy())

	seedBin(t, store, "b1", 1, 80, "Sector 4", fixedNow().Unix())
	_, err := store.UpsertCollectorLocation(&models.CollectorLocation{
		CollectorID: "c1",
		Latitude:    17.5,
		Longitude:   78.5,
		Timestamp:   fixedNow().Unix(),
	})
	require.NoError(t, err)

	wl, err := d.BuildWorklist("c1")
	require.NoError(t, err)
	require.Len(t, wl.Items, 1)
	require.NotNil(t, wl.Items[0].DistanceKm)
	assert.Greater(t, *wl.Items[0].DistanceKm, 0.0)
	require.NotNil(t, wl.Location)
}

func TestCollectBinAutoResolvesLinkedGrievance(t *testing.T) {
	d, store, engine := newTestDispatcher(t, DefaultCollectionPolicy())

	seedBin(t, store, "b1", 1, 80, "Sector 4", fixedNow().Unix())
	bin, err := store.GetBin("b1")
	require.NoError(t, err)

	g, err := engine.Create("resident-1", bin, "overflowing", models.SeverityHigh)
	require.NoError(t, err)
	_, err = engine.Assign(g.ID, "c1")
	require.NoError(t, err)

	result, err := d.CollectBin("c1", "b1", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Bin.SensorData.FillPercentage)
	assert.InDelta(t, 96.0, result.WeightKg, 0.001)
	require.NotNil(t, result.ResolvedGrievanceID)
	assert.Equal(t, g.ID, *result.ResolvedGrievanceID)

	resolved, err := store.GetGrievance(g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GrievanceStatusResolved, resolved.Status)
	require.Len(t, resolved.Notes, 1)
	assert.Equal(t, "Bin collected", resolved.Notes[0].Content)
	assert.Equal(t, models.NoteTypeResolution, resolved.Notes[0].NoteType)
}

func TestCollectBinPolicyOffLeavesGrievance(t *testing.T) {
	d, store, engine := newTestDispatcher(t, CollectionPolicy{AutoResolveOnCollect: false})

	seedBin(t, store, "b1", 1, 80, "Sector 4", fixedNow().Unix())
	bin, err := store.GetBin("b1")
	require.NoError(t, err)

	g, err := engine.Create("resident-1", bin, "overflowing", models.SeverityHigh)
	require.NoError(t, err)
	_, err = engine.Assign(g.ID, "c1")
	require.NoError(t, err)

	result, err := d.CollectBin("c1", "b1", nil)
	require.NoError(t, err)
	assert.Nil(t, result.ResolvedGrievanceID)

	still, err := store.GetGrievance(g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GrievanceStatusInProgress, still.Status)
}

func TestCollectBinWithoutGrievance(t *testing.T) {
	d, store, _ := newTestDispatcher(t, DefaultCollectionPolicy())

	seedBin(t, store, "b1", 1, 50, "Sector 4", fixedNow().Unix())

	result, err := d.CollectBin("c1", "b1", nil)
	require.NoError(t, err)
	assert.Nil(t, result.ResolvedGrievanceID)
	assert.InDelta(t, 60.0, result.WeightKg, 0.001)
}

func TestCollectBinAnotherCollectorsGrievanceUntouched(t *testing.T) {
	d, store, engine := newTestDispatcher(t, DefaultCollectionPolicy())

	seedBin(t, store, "b1", 1, 80, "Sector 4", fixedNow().Unix())
	bin, err := store.GetBin("b1")
	require.NoError(t, err)

	g, err := engine.Create("resident-1", bin, "overflowing", models.SeverityHigh)
	require.NoError(t, err)
	_, err = engine.Assign(g.ID, "c2")
	require.NoError(t, err)

	// c1 collects; c2's grievance is not theirs to resolve
	result, err := d.CollectBin("c1", "b1", nil)
	require.NoError(t, err)
	assert.Nil(t, result.ResolvedGrievanceID)

	still, err := store.GetGrievance(g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GrievanceStatusInProgress, still.Status)
}

func TestCollectEmptyBinFailsBeforePolicy(t *testing.T) {
	d, store, engine := newTestDispatcher(t, DefaultCollectionPolicy())

	seedBin(t, store, "b1", 1, 0, "Sector 4", fixedNow().Unix())
	bin, err := store.GetBin("b1")
	require.NoError(t, err)

	g, err := engine.Create("resident-1", bin, "bad smell", models.SeverityLow)
	require.NoError(t, err)
	_, err = engine.Assign(g.ID, "c1")
	require.NoError(t, err)

	_, err = d.CollectBin("c1", "b1", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))

	// Failed collect leaves the grievance alone
	still, err := store.GetGrievance(g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GrievanceStatusInProgress, still.Status)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Hyderabad center to Secunderabad, about 6 km straight line
	km := HaversineKm(17.3850, 78.4867, 17.4399, 78.4983)
	assert.InDelta(t, 6.2, km, 1.0)

	assert.InDelta(t, 0.0, HaversineKm(17.4, 78.4, 17.4, 78.4), 0.0001)
}
