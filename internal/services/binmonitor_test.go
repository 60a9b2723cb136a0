package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastelink-backend/internal/apperrors"
	"wastelink-backend/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
}

func seedBin(t *testing.T, store *memStore, id string, number, fill int, area string, updatedAt int64) {
	t.Helper()
	require.NoError(t, store.InsertBin(&models.Bin{
		ID:             id,
		BinNumber:      number,
		Latitude:       17.4,
		Longitude:      78.4,
		Area:           area,
		Status:         "active",
		FillPercentage: fill,
		FillUpdatedAt:  updatedAt,
	}))
}

func TestListEligibleFiltersAndRanks(t *testing.T) {
	store := newMemStore()
	monitor := NewBinMonitor(store)
	monitor.now = fixedNow

	base := fixedNow().Unix()
	seedBin(t, store, "b1", 1, 49, "Sector 4", base)  // Normal, excluded
	seedBin(t, store, "b2", 2, 50, "Sector 4", base)  // High, boundary
	seedBin(t, store, "b3", 3, 100, "Sector 4", base) // Full
	seedBin(t, store, "b4", 4, 99, "Sector 4", base)  // High, upper boundary
	seedBin(t, store, "b5", 5, 99, "Sector 4", base-3600)

	eligible, err := monitor.ListEligible("Sector 4")
	require.NoError(t, err)
	require.Len(t, eligible, 4)

	// Fullest first; the two 99% bins tie and the staler reading wins
	assert.Equal(t, "b3", eligible[0].ID)
	assert.Equal(t, "b5", eligible[1].ID)
	assert.Equal(t, "b4", eligible[2].ID)
	assert.Equal(t, "b2", eligible[3].ID)
}

func TestListEligibleScopesToArea(t *testing.T) {
	store := newMemStore()
	monitor := NewBinMonitor(store)

	base := fixedNow().Unix()
	seedBin(t, store, "b1", 1, 80, "Sector 4", base)
	seedBin(t, store, "b2", 2, 90, "Lakeview", base)

	eligible, err := monitor.ListEligible("Lakeview")
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "b2", eligible[0].ID)
}

func TestMarkCollectedResetsFill(t *testing.T) {
	store := newMemStore()
	monitor := NewBinMonitor(store)
	monitor.now = fixedNow

	seedBin(t, store, "b1", 1, 80, "Sector 4", fixedNow().Unix()-7200)

	bin, err := monitor.MarkCollected("b1", "collector-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, bin.FillPercentage)
	assert.Equal(t, models.FillLevelNormal, bin.FillLevel())
	require.NotNil(t, bin.LastCollectedAt)
	assert.Equal(t, fixedNow().Unix(), *bin.LastCollectedAt)

	require.Len(t, store.events, 1)
	assert.Equal(t, "collector-1", store.events[0].CollectorID)
	assert.InDelta(t, 96.0, store.events[0].WeightKg, 0.001) // 80% of 120kg
}

func TestMarkCollectedObservedWeightWins(t *testing.T) {
	store := newMemStore()
	monitor := NewBinMonitor(store)
	monitor.now = fixedNow

	seedBin(t, store, "b1", 1, 100, "Sector 4", fixedNow().Unix())

	observed := 87.5
	_, err := monitor.MarkCollected("b1", "collector-1", &observed)
	require.NoError(t, err)

	require.Len(t, store.events, 1)
	assert.Equal(t, 87.5, store.events[0].WeightKg)
}

func TestMarkCollectedEmptyBinRejected(t *testing.T) {
	store := newMemStore()
	monitor := NewBinMonitor(store)

	seedBin(t, store, "b1", 1, 0, "Sector 4", fixedNow().Unix())

	_, err := monitor.MarkCollected("b1", "collector-1", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))
	assert.Empty(t, store.events)
}

func TestMarkCollectedUnknownBin(t *testing.T) {
	store := newMemStore()
	monitor := NewBinMonitor(store)

	_, err := monitor.MarkCollected("missing", "collector-1", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestIngestReadingClampsPercentage(t *testing.T) {
	store := newMemStore()
	monitor := NewBinMonitor(store)
	monitor.now = fixedNow

	seedBin(t, store, "b1", 1, 10, "Sector 4", 0)

	bin, err := monitor.IngestReading("b1", 140, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, bin.FillPercentage)
	assert.Equal(t, models.FillLevelFull, bin.FillLevel())

	bin, err = monitor.IngestReading("b1", -5, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, bin.FillPercentage)
}

func TestIngestReadingHonorsRecordedAt(t *testing.T) {
	store := newMemStore()
	monitor := NewBinMonitor(store)
	monitor.now = fixedNow

	seedBin(t, store, "b1", 1, 10, "Sector 4", 0)

	recorded := fixedNow().Unix() - 300
	bin, err := monitor.IngestReading("b1", 55, &recorded)
	require.NoError(t, err)
	assert.Equal(t, recorded, bin.FillUpdatedAt)
	assert.Equal(t, models.FillLevelHigh, bin.FillLevel())
}

func TestIngestReadingUnknownBin(t *testing.T) {
	store := newMemStore()
	monitor := NewBinMonitor(store)

	_, err := monitor.IngestReading("missing", 50, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestEstimatedWeight(t *testing.T) {
	assert.Equal(t, 0.0, EstimatedWeightKg(0))
	assert.Equal(t, 60.0, EstimatedWeightKg(50))
	assert.Equal(t, 120.0, EstimatedWeightKg(100))
}
