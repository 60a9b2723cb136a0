package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("🔌 Connecting to Postgres...")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Printf("❌ sqlx.Connect() failed: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Printf("❌ Ping() failed: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Database connection established")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Users: collectors, admins (WMA/fleet managers) and residents
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('collector', 'admin', 'resident')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Smart bins with latest sensor reading denormalized onto the row
		`CREATE TABLE IF NOT EXISTS bins (
			id TEXT PRIMARY KEY,
			bin_number INT NOT NULL UNIQUE,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			area TEXT NOT NULL,
			owner_user_id TEXT REFERENCES users(id),
			status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'retired')),
			fill_percentage INT NOT NULL DEFAULT 0 CHECK(fill_percentage BETWEEN 0 AND 100),
			fill_updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			last_collected_at BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bins_area ON bins(area)`,

		// Pickup history
		`CREATE TABLE IF NOT EXISTS collection_events (
			id SERIAL PRIMARY KEY,
			bin_id TEXT NOT NULL REFERENCES bins(id) ON DELETE CASCADE,
			collector_id TEXT NOT NULL REFERENCES users(id),
			weight_kg DOUBLE PRECISION NOT NULL,
			collected_at BIGINT NOT NULL
		)`,

		// Collection schedules (route assignments)
		`CREATE TABLE IF NOT EXISTS schedules (
			id TEXT PRIMARY KEY,
			collector_id TEXT NOT NULL REFERENCES users(id),
			area TEXT NOT NULL,
			date TEXT NOT NULL,
			time_of_day TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'Pending' CHECK(status IN ('Pending', 'In Progress', 'Completed')),
			started_at BIGINT,
			completed_at BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_schedules_collector ON schedules(collector_id, status)`,

		// Citizen-reported grievances
		`CREATE TABLE IF NOT EXISTS grievances (
			id TEXT PRIMARY KEY,
			bin_id TEXT NOT NULL REFERENCES bins(id),
			reporter_id TEXT NOT NULL REFERENCES users(id),
			area TEXT NOT NULL,
			description TEXT NOT NULL,
			severity TEXT NOT NULL CHECK(severity IN ('Low', 'Medium', 'High', 'Critical')),
			status TEXT NOT NULL DEFAULT 'Open' CHECK(status IN ('Open', 'In Progress', 'Resolved', 'Closed', 'Rejected')),
			priority_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_escalated BOOLEAN NOT NULL DEFAULT FALSE,
			assigned_to TEXT REFERENCES users(id),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			resolved_at BIGINT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_grievances_assignee ON grievances(assigned_to, status)`,
		`CREATE INDEX IF NOT EXISTS idx_grievances_bin ON grievances(bin_id, status)`,

		// Ordered note/communication history per grievance
		`CREATE TABLE IF NOT EXISTS grievance_notes (
			id SERIAL PRIMARY KEY,
			grievance_id TEXT NOT NULL REFERENCES grievances(id) ON DELETE CASCADE,
			author_role TEXT NOT NULL,
			note_type TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,

		// Last known device position per collector (upserted)
		`CREATE TABLE IF NOT EXISTS collector_current_location (
			collector_id TEXT PRIMARY KEY REFERENCES users(id),
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			heading DOUBLE PRECISION,
			speed DOUBLE PRECISION,
			accuracy DOUBLE PRECISION,
			is_connected BOOLEAN NOT NULL DEFAULT TRUE,
			timestamp BIGINT NOT NULL,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Push notification tokens
		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Printf("✅ Ran %d migrations", len(migrations))
	return nil
}
