package services

import (
	"log"
	"sort"
	"time"

	"wastelink-backend/internal/apperrors"
	"wastelink-backend/internal/models"
)

// DefaultBinCapacityKg is the capacity of the standard smart-bin class.
// Weight estimates scale this by the fill percentage.
const DefaultBinCapacityKg = 120.0

// EstimatedWeightKg converts a fill percentage into an estimated load weight
func EstimatedWeightKg(fillPercentage int) float64 {
	return DefaultBinCapacityKg * float64(fillPercentage) / 100.0
}

// BinStore is the persistence surface the monitor needs
type BinStore interface {
	GetBin(id string) (*models.Bin, error)
	ListActiveBins(area string) ([]models.Bin, error)
	UpdateBinFill(id string, pct int, ts int64) (bool, error)
	ResetBinFill(id string, now int64) (bool, error)
	InsertCollectionEvent(ev *models.CollectionEvent) error
}

// BinMonitor ingests sensor readings and decides which bins are worth a stop
type BinMonitor struct {
	store BinStore
	now   func() time.Time
}

func NewBinMonitor(store BinStore) *BinMonitor {
	return &BinMonitor{store: store, now: time.Now}
}

// ListEligible returns High/Full bins, fullest first; ties go to the bin whose
// reading has sat unserviced the longest
func (m *BinMonitor) ListEligible(area string) ([]models.Bin, error) {
	bins, err := m.store.ListActiveBins(area)
	if err != nil {
		return nil, err
	}

	eligible := make([]models.Bin, 0, len(bins))
	for _, bin := range bins {
		if bin.CollectionEligible() {
			eligible = append(eligible, bin)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].FillPercentage != eligible[j].FillPercentage {
			return eligible[i].FillPercentage > eligible[j].FillPercentage
		}
		return eligible[i].FillUpdatedAt < eligible[j].FillUpdatedAt
	})

	return eligible, nil
}

// MarkCollected records a pickup: fill resets to 0, the collection time is
// stamped, and a weighted collection event is written. Collecting an already
// empty bin is an invalid transition, not a silent no-op.
func (m *BinMonitor) MarkCollected(binID, collectorID string, observedKg *float64) (*models.Bin, error) {
	bin, err := m.store.GetBin(binID)
	if err != nil {
		return nil, err
	}
	if bin == nil {
		return nil, apperrors.NotFound("bin %s not found", binID)
	}
	if bin.FillPercentage == 0 {
		return nil, apperrors.InvalidState("bin %d is already empty", bin.BinNumber)
	}

	weight := EstimatedWeightKg(bin.FillPercentage)
	if observedKg != nil {
		weight = *observedKg
	}

	now := m.now().Unix()
	ok, err := m.store.ResetBinFill(binID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with another collect
		return nil, apperrors.InvalidState("bin %d is already empty", bin.BinNumber)
	}

	if err := m.store.InsertCollectionEvent(&models.CollectionEvent{
		BinID:       binID,
		CollectorID: collectorID,
		WeightKg:    weight,
		CollectedAt: now,
	}); err != nil {
		return nil, err
	}

	log.Printf("✅ [BIN-MONITOR] Bin %d collected by %s (%.1f kg)", bin.BinNumber, collectorID, weight)

	return m.store.GetBin(binID)
}

// IngestReading consumes one telemetry sample from the external sensor feed.
// Percentages are clamped to 0..100 before classification.
func (m *BinMonitor) IngestReading(binID string, pct int, recordedAt *int64) (*models.Bin, error) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	ts := m.now().Unix()
	if recordedAt != nil {
		ts = *recordedAt
	}

	ok, err := m.store.UpdateBinFill(binID, pct, ts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotFound("bin %s not found", binID)
	}

	bin, err := m.store.GetBin(binID)
	if err != nil {
		return nil, err
	}
	if bin != nil && bin.FillLevel() == models.FillLevelFull {
		log.Printf("⚠️  [BIN-MONITOR] Bin %d reached 100%% fill", bin.BinNumber)
	}
	return bin, nil
}
