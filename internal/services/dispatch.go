package services

import (
	"log"
	"math"
	"time"

	"wastelink-backend/internal/models"
)

// CollectionPolicy controls how a collect action interacts with grievances.
// The collect-implies-resolve coupling lives here instead of inside the
// dispatcher so it can be toggled per deployment.
type CollectionPolicy struct {
	// AutoResolveOnCollect resolves the collector's In Progress grievance on
	// the bin as part of the collect action, with an auto-generated note.
	AutoResolveOnCollect bool
}

// DefaultCollectionPolicy matches the portal's behavior: collecting a bin
// also clears its linked grievance.
func DefaultCollectionPolicy() CollectionPolicy {
	return CollectionPolicy{AutoResolveOnCollect: true}
}

// Worklist item kinds
const (
	WorkItemBin       = "bin"
	WorkItemGrievance = "grievance"
)

// WorkItem is one actionable entry on a collector's worklist
type WorkItem struct {
	Kind           string                 `json:"kind"`
	BinID          string                 `json:"bin_id"`
	BinNumber      int                    `json:"bin_number"`
	Latitude       float64                `json:"latitude"`
	Longitude      float64                `json:"longitude"`
	FillPercentage int                    `json:"fill_percentage"`
	FillLevel      models.FillLevel       `json:"fill_level"`
	GrievanceID    *string                `json:"grievance_id,omitempty"`
	Severity       *models.Severity       `json:"severity,omitempty"`
	PriorityScore  float64                `json:"priority_score"`
	IsEscalated    bool                   `json:"is_escalated"`
	Description    string                 `json:"description,omitempty"`
	DistanceKm     *float64               `json:"distance_km,omitempty"`
}

// Worklist is the merged, ranked view a collector acts on
type Worklist struct {
	Schedule    *models.Schedule         `json:"schedule"`
	Location    *models.CollectorLocation `json:"location,omitempty"`
	Items       []WorkItem               `json:"items"`
	GeneratedAt int64                    `json:"generated_at"`
}

// CollectResult reports what a collect action changed
type CollectResult struct {
	Bin                 models.BinResponse `json:"bin"`
	ResolvedGrievanceID *string            `json:"resolved_grievance_id,omitempty"`
	WeightKg            float64            `json:"weight_kg"`
}

// LocationReader supplies the collector's last known position
type LocationReader interface {
	GetCollectorLocation(collectorID string) (*models.CollectorLocation, error)
}

// Dispatcher merges schedule, eligible bins, grievances and device location
// into the live worklist, and routes collect actions into the right state
// transitions
type Dispatcher struct {
	bins       *BinMonitor
	schedules  *ScheduleManager
	grievances *TriageEngine
	locations  LocationReader
	policy     CollectionPolicy
	now        func() time.Time
}

func NewDispatcher(bins *BinMonitor, schedules *ScheduleManager, grievances *TriageEngine, locations LocationReader, policy CollectionPolicy) *Dispatcher {
	return &Dispatcher{
		bins:       bins,
		schedules:  schedules,
		grievances: grievances,
		locations:  locations,
		policy:     policy,
		now:        time.Now,
	}
}

// BuildWorklist assembles the collector's current view. Grievance entries
// subsume the fill-based entry of the bin they reference, so no bin appears
// twice; grievances rank first, by priority, then eligible bins by fill.
func (d *Dispatcher) BuildWorklist(collectorID string) (*Worklist, error) {
	schedule, err := d.schedules.ActiveSchedule(collectorID)
	if err != nil {
		return nil, err
	}

	area := ""
	if schedule != nil {
		area = schedule.Area
	}

	eligible, err := d.bins.ListEligible(area)
	if err != nil {
		return nil, err
	}

	grievances, err := d.grievances.ActiveForCollector(collectorID)
	if err != nil {
		return nil, err
	}

	location, err := d.locations.GetCollectorLocation(collectorID)
	if err != nil {
		return nil, err
	}

	wl := &Worklist{
		Schedule:    schedule,
		Location:    location,
		Items:       make([]WorkItem, 0, len(grievances)+len(eligible)),
		GeneratedAt: d.now().Unix(),
	}

	subsumed := make(map[string]bool, len(grievances))
	for i := range grievances {
		g := &grievances[i]
		item := WorkItem{
			Kind:          WorkItemGrievance,
			BinID:         g.BinID,
			GrievanceID:   &g.ID,
			Severity:      &g.Severity,
			PriorityScore: g.PriorityScore,
			IsEscalated:   g.IsEscalated,
			Description:   g.Description,
		}
		if bin, err := d.bins.store.GetBin(g.BinID); err != nil {
			return nil, err
		} else if bin != nil {
			item.BinNumber = bin.BinNumber
			item.Latitude = bin.Latitude
			item.Longitude = bin.Longitude
			item.FillPercentage = bin.FillPercentage
			item.FillLevel = bin.FillLevel()
		}
		attachDistance(&item, location)
		wl.Items = append(wl.Items, item)
		subsumed[g.BinID] = true
	}

	for i := range eligible {
		bin := &eligible[i]
		if subsumed[bin.ID] {
			continue
		}
		item := WorkItem{
			Kind:           WorkItemBin,
			BinID:          bin.ID,
			BinNumber:      bin.BinNumber,
			Latitude:       bin.Latitude,
			Longitude:      bin.Longitude,
			FillPercentage: bin.FillPercentage,
			FillLevel:      bin.FillLevel(),
		}
		attachDistance(&item, location)
		wl.Items = append(wl.Items, item)
	}

	return wl, nil
}

// CollectBin executes the collect action: the bin empties, and when the
// policy says so, the collector's linked In Progress grievance resolves with
// an auto-generated note
func (d *Dispatcher) CollectBin(collectorID, binID string, observedKg *float64) (*CollectResult, error) {
	linked, err := d.grievances.store.FindActiveGrievanceForBin(binID, collectorID)
	if err != nil {
		return nil, err
	}

	// Snapshot the pre-collection fill for the weight estimate; MarkCollected
	// zeroes it
	pre, err := d.bins.store.GetBin(binID)
	if err != nil {
		return nil, err
	}

	bin, err := d.bins.MarkCollected(binID, collectorID, observedKg)
	if err != nil {
		return nil, err
	}

	weight := EstimatedWeightKg(pre.FillPercentage)
	if observedKg != nil {
		weight = *observedKg
	}

	result := &CollectResult{
		Bin:      bin.ToBinResponse(),
		WeightKg: weight,
	}

	if linked != nil && d.policy.AutoResolveOnCollect {
		if _, err := d.grievances.Resolve(linked.ID, collectorID, "Bin collected"); err != nil {
			// The pickup itself succeeded, surface the coupling failure
			log.Printf("⚠️  [DISPATCH] Collected bin %s but linked grievance %s did not resolve: %v", binID, linked.ID, err)
			return result, err
		}
		result.ResolvedGrievanceID = &linked.ID
		log.Printf("✅ [DISPATCH] Bin %s collected, grievance %s auto-resolved", binID, linked.ID)
	}

	return result, nil
}

func attachDistance(item *WorkItem, loc *models.CollectorLocation) {
	if loc == nil {
		return
	}
	km := HaversineKm(loc.Latitude, loc.Longitude, item.Latitude, item.Longitude)
	item.DistanceKm = &km
}

// HaversineKm calculates the distance between two GPS coordinates in kilometers
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371.0 // Earth's radius in kilometers

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
