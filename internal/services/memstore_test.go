package services

import (
	"sort"
	"sync"

	"wastelink-backend/internal/models"
)

// memStore is an in-memory stand-in for the Postgres store with the same
// guard semantics on state transitions
type memStore struct {
	mu         sync.Mutex
	bins       map[string]*models.Bin
	events     []models.CollectionEvent
	schedules  map[string]*models.Schedule
	grievances map[string]*models.Grievance
	notes      map[string][]models.GrievanceNote
	locations  map[string]*models.CollectorLocation
	noteSeq    int
}

func newMemStore() *memStore {
	return &memStore{
		bins:       make(map[string]*models.Bin),
		schedules:  make(map[string]*models.Schedule),
		grievances: make(map[string]*models.Grievance),
		notes:      make(map[string][]models.GrievanceNote),
		locations:  make(map[string]*models.CollectorLocation),
	}
}

// ───────────────────────── bins ─────────────────────────

func (m *memStore) GetBin(id string) (*models.Bin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bin, ok := m.bins[id]
	if !ok {
		return nil, nil
	}
	cp := *bin
	return &cp, nil
}

func (m *memStore) ListActiveBins(area string) ([]models.Bin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Bin
	for _, bin := range m.bins {
		if bin.Status != "active" {
			continue
		}
		if area != "" && bin.Area != area {
			continue
		}
		out = append(out, *bin)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BinNumber < out[j].BinNumber })
	return out, nil
}

func (m *memStore) UpdateBinFill(id string, pct int, ts int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bin, ok := m.bins[id]
	if !ok || bin.Status != "active" {
		return false, nil
	}
	bin.FillPercentage = pct
	bin.FillUpdatedAt = ts
	bin.UpdatedAt = ts
	return true, nil
}

func (m *memStore) ResetBinFill(id string, now int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bin, ok := m.bins[id]
	if !ok || bin.FillPercentage == 0 {
		return false, nil
	}
	bin.FillPercentage = 0
	bin.FillUpdatedAt = now
	bin.LastCollectedAt = &now
	bin.UpdatedAt = now
	return true, nil
}

func (m *memStore) InsertBin(bin *models.Bin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *bin
	m.bins[bin.ID] = &cp
	return nil
}

func (m *memStore) InsertCollectionEvent(ev *models.CollectionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

// ───────────────────────── schedules ─────────────────────────

func (m *memStore) GetSchedule(id string) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sch, ok := m.schedules[id]
	if !ok {
		return nil, nil
	}
	cp := *sch
	return &cp, nil
}

func (m *memStore) ListSchedulesByCollector(collectorID string) ([]models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Schedule
	for _, sch := range m.schedules {
		if sch.CollectorID == collectorID {
			out = append(out, *sch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortKey() < out[j].SortKey() })
	return out, nil
}

func (m *memStore) MarkScheduleInProgress(id, collectorID string, ts int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sch := range m.schedules {
		if sch.CollectorID == collectorID && sch.Status == models.ScheduleStatusInProgress {
			return false, nil
		}
	}
	sch, ok := m.schedules[id]
	if !ok || sch.CollectorID != collectorID || sch.Status != models.ScheduleStatusPending {
		return false, nil
	}
	sch.Status = models.ScheduleStatusInProgress
	sch.StartedAt = &ts
	sch.UpdatedAt = ts
	return true, nil
}

func (m *memStore) MarkScheduleCompleted(id string, ts int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sch, ok := m.schedules[id]
	if !ok || sch.Status != models.ScheduleStatusInProgress {
		return false, nil
	}
	sch.Status = models.ScheduleStatusCompleted
	sch.CompletedAt = &ts
	sch.UpdatedAt = ts
	return true, nil
}

func (m *memStore) InsertSchedule(sch *models.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sch
	m.schedules[sch.ID] = &cp
	return nil
}

// ───────────────────────── grievances ─────────────────────────

func (m *memStore) GetGrievance(id string) (*models.Grievance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grievances[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Notes = append([]models.GrievanceNote(nil), m.notes[id]...)
	return &cp, nil
}

func (m *memStore) InsertGrievance(g *models.Grievance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.grievances[g.ID] = &cp
	return nil
}

func (m *memStore) ListGrievancesByAssignee(collectorID string, activeOnly bool) ([]models.Grievance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Grievance
	for _, g := range m.grievances {
		if g.AssignedTo == nil || *g.AssignedTo != collectorID {
			continue
		}
		if activeOnly && g.Status.Terminal() {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (m *memStore) ListGrievancesByReporter(reporterID string) ([]models.Grievance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Grievance
	for _, g := range m.grievances {
		if g.ReporterID == reporterID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (m *memStore) ListUnresolvedGrievances() ([]models.Grievance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Grievance
	for _, g := range m.grievances {
		if !g.Status.Terminal() {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (m *memStore) AssignGrievance(id, collectorID string, ts int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grievances[id]
	if !ok || g.Status != models.GrievanceStatusOpen {
		return false, nil
	}
	g.Status = models.GrievanceStatusInProgress
	g.AssignedTo = &collectorID
	g.UpdatedAt = ts
	return true, nil
}

func (m *memStore) ResolveGrievance(id string, ts int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grievances[id]
	if !ok || g.Status != models.GrievanceStatusInProgress {
		return false, nil
	}
	g.Status = models.GrievanceStatusResolved
	g.ResolvedAt = &ts
	g.UpdatedAt = ts
	return true, nil
}

func (m *memStore) ArchiveGrievance(id string, status models.GrievanceStatus, ts int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grievances[id]
	if !ok || g.Status.Terminal() {
		return false, nil
	}
	g.Status = status
	g.UpdatedAt = ts
	return true, nil
}

func (m *memStore) AppendGrievanceNote(note *models.GrievanceNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noteSeq++
	cp := *note
	cp.ID = m.noteSeq
	m.notes[note.GrievanceID] = append(m.notes[note.GrievanceID], cp)
	return nil
}

func (m *memStore) MarkGrievanceEscalated(id string, ts int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grievances[id]
	if !ok || g.IsEscalated {
		return false, nil
	}
	g.IsEscalated = true
	g.UpdatedAt = ts
	return true, nil
}

func (m *memStore) UpdateGrievancePriority(id string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.grievances[id]; ok {
		g.PriorityScore = score
	}
	return nil
}

func (m *memStore) FindActiveGrievanceForBin(binID, collectorID string) (*models.Grievance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.Grievance
	for _, g := range m.grievances {
		if g.BinID != binID || g.Status != models.GrievanceStatusInProgress {
			continue
		}
		if g.AssignedTo == nil || *g.AssignedTo != collectorID {
			continue
		}
		if best == nil || g.CreatedAt < best.CreatedAt {
			best = g
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

// ───────────────────────── collector locations ─────────────────────────

func (m *memStore) UpsertCollectorLocation(loc *models.CollectorLocation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *loc
	cp.IsConnected = true
	cp.UpdatedAt = loc.Timestamp
	m.locations[loc.CollectorID] = &cp
	return cp.UpdatedAt, nil
}

func (m *memStore) MarkCollectorDisconnected(collectorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loc, ok := m.locations[collectorID]; ok {
		loc.IsConnected = false
	}
	return nil
}

func (m *memStore) GetCollectorLocation(collectorID string) (*models.CollectorLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locations[collectorID]
	if !ok {
		return nil, nil
	}
	cp := *loc
	return &cp, nil
}
