package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillLevelBoundaries(t *testing.T) {
	cases := []struct {
		pct  int
		want FillLevel
	}{
		{0, FillLevelNormal},
		{49, FillLevelNormal},
		{50, FillLevelHigh},
		{99, FillLevelHigh},
		{100, FillLevelFull},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FillLevelFor(tc.pct), "pct=%d", tc.pct)
	}
}

func TestCollectionEligible(t *testing.T) {
	assert.False(t, (&Bin{FillPercentage: 49}).CollectionEligible())
	assert.True(t, (&Bin{FillPercentage: 50}).CollectionEligible())
	assert.True(t, (&Bin{FillPercentage: 100}).CollectionEligible())
}

func TestToBinResponseTimestamps(t *testing.T) {
	collected := int64(1749500000)
	bin := Bin{
		ID:              "b1",
		BinNumber:       7,
		FillPercentage:  75,
		FillUpdatedAt:   1749510000,
		LastCollectedAt: &collected,
	}

	resp := bin.ToBinResponse()
	assert.Equal(t, 75, resp.SensorData.FillPercentage)
	assert.Equal(t, FillLevelHigh, resp.SensorData.FillLevel)
	assert.NotEmpty(t, resp.SensorData.LastUpdated)
	assert.NotNil(t, resp.LastCollectedIso)
}

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())

	assert.True(t, SeverityCritical.Valid())
	assert.False(t, Severity("Catastrophic").Valid())
}

func TestGrievanceStatusTerminal(t *testing.T) {
	assert.False(t, GrievanceStatusOpen.Terminal())
	assert.False(t, GrievanceStatusInProgress.Terminal())
	assert.True(t, GrievanceStatusResolved.Terminal())
	assert.True(t, GrievanceStatusClosed.Terminal())
	assert.True(t, GrievanceStatusRejected.Terminal())
}

func TestScheduleSortKey(t *testing.T) {
	morning := Schedule{Date: "2025-06-10", TimeOfDay: "08:00"}
	evening := Schedule{Date: "2025-06-10", TimeOfDay: "18:00"}
	nextDay := Schedule{Date: "2025-06-11", TimeOfDay: "06:00"}

	assert.Less(t, morning.SortKey(), evening.SortKey())
	assert.Less(t, evening.SortKey(), nextDay.SortKey())
}
