package database

import (
	"database/sql"

	"wastelink-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// Store is the Postgres-backed persistence layer consumed by the service
// packages. State-machine transitions run as single guarded UPDATEs so the
// database enforces them atomically; callers get back whether the guard held.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for the thin handlers (auth, users) that
// query directly, teacher-of-record being the users table
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// ───────────────────────── bins ─────────────────────────

func (s *Store) GetBin(id string) (*models.Bin, error) {
	var bin models.Bin
	err := s.db.Get(&bin, `SELECT * FROM bins WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bin, nil
}

// ListActiveBins returns active bins, optionally restricted to an area
func (s *Store) ListActiveBins(area string) ([]models.Bin, error) {
	var bins []models.Bin
	if area != "" {
		err := s.db.Select(&bins, `SELECT * FROM bins WHERE status = 'active' AND area = $1`, area)
		return bins, err
	}
	err := s.db.Select(&bins, `SELECT * FROM bins WHERE status = 'active'`)
	return bins, err
}

// UpdateBinFill writes a new sensor reading. Returns false when the bin is
// unknown or retired.
func (s *Store) UpdateBinFill(id string, pct int, ts int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE bins
		SET fill_percentage = $1, fill_updated_at = $2, updated_at = $2
		WHERE id = $3 AND status = 'active'
	`, pct, ts, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// ResetBinFill zeroes the accumulated fill after a pickup. The fill guard
// makes a double collect a no-op at the database level.
func (s *Store) ResetBinFill(id string, now int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE bins
		SET fill_percentage = 0, fill_updated_at = $1, last_collected_at = $1, updated_at = $1
		WHERE id = $2 AND fill_percentage > 0
	`, now, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (s *Store) InsertBin(bin *models.Bin) error {
	_, err := s.db.Exec(`
		INSERT INTO bins (id, bin_number, latitude, longitude, area, owner_user_id, status, fill_percentage, fill_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, bin.ID, bin.BinNumber, bin.Latitude, bin.Longitude, bin.Area, bin.OwnerUserID, bin.Status, bin.FillPercentage, bin.FillUpdatedAt)
	return err
}

func (s *Store) InsertCollectionEvent(ev *models.CollectionEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO collection_events (bin_id, collector_id, weight_kg, collected_at)
		VALUES ($1, $2, $3, $4)
	`, ev.BinID, ev.CollectorID, ev.WeightKg, ev.CollectedAt)
	return err
}

// ───────────────────────── schedules ─────────────────────────

func (s *Store) GetSchedule(id string) (*models.Schedule, error) {
	var sch models.Schedule
	err := s.db.Get(&sch, `SELECT * FROM schedules WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sch, nil
}

func (s *Store) ListSchedulesByCollector(collectorID string) ([]models.Schedule, error) {
	var schedules []models.Schedule
	err := s.db.Select(&schedules, `
		SELECT * FROM schedules
		WHERE collector_id = $1
		ORDER BY date ASC, time_of_day ASC
	`, collectorID)
	return schedules, err
}

// MarkScheduleInProgress performs Pending -> In Progress. The NOT EXISTS
// clause enforces at-most-one-active per collector atomically; a concurrent
// start of a second schedule loses the race and sees zero rows.
func (s *Store) MarkScheduleInProgress(id, collectorID string, ts int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE schedules
		SET status = 'In Progress', started_at = $1, updated_at = $1
		WHERE id = $2
		  AND collector_id = $3
		  AND status = 'Pending'
		  AND NOT EXISTS (
			SELECT 1 FROM schedules
			WHERE collector_id = $3 AND status = 'In Progress'
		  )
	`, ts, id, collectorID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// MarkScheduleCompleted performs In Progress -> Completed
func (s *Store) MarkScheduleCompleted(id string, ts int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE schedules
		SET status = 'Completed', completed_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'In Progress'
	`, ts, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (s *Store) InsertSchedule(sch *models.Schedule) error {
	_, err := s.db.Exec(`
		INSERT INTO schedules (id, collector_id, area, date, time_of_day, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sch.ID, sch.CollectorID, sch.Area, sch.Date, sch.TimeOfDay, sch.Status)
	return err
}

// ───────────────────────── grievances ─────────────────────────

func (s *Store) GetGrievance(id string) (*models.Grievance, error) {
	var g models.Grievance
	err := s.db.Get(&g, `SELECT * FROM grievances WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.Select(&g.Notes, `
		SELECT * FROM grievance_notes
		WHERE grievance_id = $1
		ORDER BY created_at ASC, id ASC
	`, id); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) InsertGrievance(g *models.Grievance) error {
	_, err := s.db.Exec(`
		INSERT INTO grievances (id, bin_id, reporter_id, area, description, severity, status, priority_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, g.ID, g.BinID, g.ReporterID, g.Area, g.Description, g.Severity, g.Status, g.PriorityScore, g.CreatedAt)
	return err
}

// ListGrievancesByAssignee returns a collector's grievances; activeOnly
// restricts to non-terminal statuses
func (s *Store) ListGrievancesByAssignee(collectorID string, activeOnly bool) ([]models.Grievance, error) {
	var grievances []models.Grievance
	query := `SELECT * FROM grievances WHERE assigned_to = $1`
	if activeOnly {
		query += ` AND status IN ('Open', 'In Progress')`
	}
	query += ` ORDER BY priority_score DESC, created_at ASC`
	err := s.db.Select(&grievances, query, collectorID)
	return grievances, err
}

func (s *Store) ListGrievancesByReporter(reporterID string) ([]models.Grievance, error) {
	var grievances []models.Grievance
	err := s.db.Select(&grievances, `
		SELECT * FROM grievances
		WHERE reporter_id = $1
		ORDER BY created_at DESC
	`, reporterID)
	return grievances, err
}

// ListUnresolvedGrievances returns every Open / In Progress grievance,
// highest priority first
func (s *Store) ListUnresolvedGrievances() ([]models.Grievance, error) {
	var grievances []models.Grievance
	err := s.db.Select(&grievances, `
		SELECT * FROM grievances
		WHERE status IN ('Open', 'In Progress')
		ORDER BY priority_score DESC, created_at ASC
	`)
	return grievances, err
}

// AssignGrievance performs Open -> In Progress and sets the assignee
func (s *Store) AssignGrievance(id, collectorID string, ts int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE grievances
		SET status = 'In Progress', assigned_to = $1, updated_at = $2
		WHERE id = $3 AND status = 'Open'
	`, collectorID, ts, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// ResolveGrievance performs In Progress -> Resolved
func (s *Store) ResolveGrievance(id string, ts int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE grievances
		SET status = 'Resolved', resolved_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'In Progress'
	`, ts, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// ArchiveGrievance performs the administrative Close/Reject transition
func (s *Store) ArchiveGrievance(id string, status models.GrievanceStatus, ts int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE grievances
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ('Open', 'In Progress')
	`, status, ts, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (s *Store) AppendGrievanceNote(note *models.GrievanceNote) error {
	_, err := s.db.Exec(`
		INSERT INTO grievance_notes (grievance_id, author_role, note_type, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, note.GrievanceID, note.AuthorRole, note.NoteType, note.Content, note.CreatedAt)
	return err
}

// MarkGrievanceEscalated raises the escalation flag. Monotonic: the guard
// means a second sweep pass reports false instead of re-flagging.
func (s *Store) MarkGrievanceEscalated(id string, ts int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE grievances
		SET is_escalated = TRUE, updated_at = $1
		WHERE id = $2 AND is_escalated = FALSE
	`, ts, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (s *Store) UpdateGrievancePriority(id string, score float64) error {
	_, err := s.db.Exec(`UPDATE grievances SET priority_score = $1 WHERE id = $2`, score, id)
	return err
}

// FindActiveGrievanceForBin returns the collector's In Progress grievance
// referencing the bin, if any
func (s *Store) FindActiveGrievanceForBin(binID, collectorID string) (*models.Grievance, error) {
	var g models.Grievance
	err := s.db.Get(&g, `
		SELECT * FROM grievances
		WHERE bin_id = $1 AND assigned_to = $2 AND status = 'In Progress'
		ORDER BY created_at ASC
		LIMIT 1
	`, binID, collectorID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ───────────────────────── collector locations ─────────────────────────

// UpsertCollectorLocation stores the latest device position; returns the
// server-side updated_at stamp
func (s *Store) UpsertCollectorLocation(loc *models.CollectorLocation) (int64, error) {
	var updatedAt int64
	err := s.db.QueryRow(`
		INSERT INTO collector_current_location (
			collector_id, latitude, longitude, heading, speed, accuracy, timestamp, is_connected, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, EXTRACT(EPOCH FROM NOW())::BIGINT)
		ON CONFLICT (collector_id)
		DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			heading = EXCLUDED.heading,
			speed = EXCLUDED.speed,
			accuracy = EXCLUDED.accuracy,
			timestamp = EXCLUDED.timestamp,
			is_connected = TRUE,
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		RETURNING updated_at
	`, loc.CollectorID, loc.Latitude, loc.Longitude, loc.Heading, loc.Speed, loc.Accuracy, loc.Timestamp).Scan(&updatedAt)
	return updatedAt, err
}

// MarkCollectorDisconnected flips the connected flag but preserves the last
// position for the fleet dashboard
func (s *Store) MarkCollectorDisconnected(collectorID string) error {
	_, err := s.db.Exec(`
		UPDATE collector_current_location
		SET is_connected = FALSE, updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE collector_id = $1
	`, collectorID)
	return err
}

func (s *Store) GetCollectorLocation(collectorID string) (*models.CollectorLocation, error) {
	var loc models.CollectorLocation
	err := s.db.Get(&loc, `SELECT * FROM collector_current_location WHERE collector_id = $1`, collectorID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// ───────────────────────── users / tokens ─────────────────────────

func (s *Store) TokensForUser(userID string) ([]string, error) {
	var tokens []string
	err := s.db.Select(&tokens, `SELECT token FROM fcm_tokens WHERE user_id = $1`, userID)
	return tokens, err
}

func (s *Store) TokensForRole(role string) ([]string, error) {
	var tokens []string
	err := s.db.Select(&tokens, `
		SELECT t.token FROM fcm_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE u.role = $1
	`, role)
	return tokens, err
}
