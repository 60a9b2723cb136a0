package database

import (
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func SeedUsers(db *sqlx.DB) error {
	// Check if users already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding test users...")

	collectorPassword, err := bcrypt.GenerateFromPassword([]byte("collector123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	adminPassword, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	residentPassword, err := bcrypt.GenerateFromPassword([]byte("resident123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []map[string]interface{}{
		{
			"id":       uuid.New().String(),
			"email":    "collector@wastelink.in",
			"password": string(collectorPassword),
			"name":     "Ravi Collector",
			"role":     "collector",
		},
		{
			"id":       uuid.New().String(),
			"email":    "admin@wastelink.in",
			"password": string(adminPassword),
			"name":     "WMA Admin",
			"role":     "admin",
		},
		{
			"id":       uuid.New().String(),
			"email":    "resident@wastelink.in",
			"password": string(residentPassword),
			"name":     "Asha Resident",
			"role":     "resident",
		},
	}

	for _, user := range users {
		query := `
			INSERT INTO users (id, email, password, name, role)
			VALUES (:id, :email, :password, :name, :role)
		`
		if _, err := db.NamedExec(query, user); err != nil {
			return err
		}
		log.Printf("  ✓ Created user: %s (%s)", user["email"], user["role"])
	}

	log.Println("✓ Successfully seeded test users")
	log.Println("  📧 Collector: collector@wastelink.in / collector123")
	log.Println("  📧 Admin:     admin@wastelink.in / admin123")
	log.Println("  📧 Resident:  resident@wastelink.in / resident123")
	return nil
}

func SeedBins(db *sqlx.DB) error {
	// Check if bins already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM bins"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Bins already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding 20 bins...")

	bins := []map[string]interface{}{
		{"bin_number": 1, "area": "Sector 4", "fill_percentage": 45, "latitude": 17.4401, "longitude": 78.3489},
		{"bin_number": 2, "area": "Sector 4", "fill_percentage": 67, "latitude": 17.4412, "longitude": 78.3501},
		{"bin_number": 3, "area": "Sector 4", "fill_percentage": 23, "latitude": 17.4389, "longitude": 78.3522},
		{"bin_number": 4, "area": "Sector 4", "fill_percentage": 89, "latitude": 17.4423, "longitude": 78.3468},
		{"bin_number": 5, "area": "Sector 4", "fill_percentage": 100, "latitude": 17.4435, "longitude": 78.3510},
		{"bin_number": 6, "area": "Sector 7", "fill_percentage": 78, "latitude": 17.4521, "longitude": 78.3611},
		{"bin_number": 7, "area": "Sector 7", "fill_percentage": 56, "latitude": 17.4533, "longitude": 78.3598},
		{"bin_number": 8, "area": "Sector 7", "fill_percentage": 34, "latitude": 17.4509, "longitude": 78.3627},
		{"bin_number": 9, "area": "Sector 7", "fill_percentage": 91, "latitude": 17.4548, "longitude": 78.3640},
		{"bin_number": 10, "area": "Sector 7", "fill_percentage": 15, "latitude": 17.4562, "longitude": 78.3584},
		{"bin_number": 11, "area": "Lakeview", "fill_percentage": 82, "latitude": 17.4212, "longitude": 78.3390},
		{"bin_number": 12, "area": "Lakeview", "fill_percentage": 47, "latitude": 17.4198, "longitude": 78.3411},
		{"bin_number": 13, "area": "Lakeview", "fill_percentage": 63, "latitude": 17.4225, "longitude": 78.3372},
		{"bin_number": 14, "area": "Lakeview", "fill_percentage": 29, "latitude": 17.4240, "longitude": 78.3405},
		{"bin_number": 15, "area": "Lakeview", "fill_percentage": 71, "latitude": 17.4187, "longitude": 78.3358},
		{"bin_number": 16, "area": "Old Town", "fill_percentage": 38, "latitude": 17.4102, "longitude": 78.3295},
		{"bin_number": 17, "area": "Old Town", "fill_percentage": 95, "latitude": 17.4115, "longitude": 78.3312},
		{"bin_number": 18, "area": "Old Town", "fill_percentage": 19, "latitude": 17.4090, "longitude": 78.3331},
		{"bin_number": 19, "area": "Old Town", "fill_percentage": 86, "latitude": 17.4128, "longitude": 78.3277},
		{"bin_number": 20, "area": "Old Town", "fill_percentage": 52, "latitude": 17.4141, "longitude": 78.3306},
	}

	for _, bin := range bins {
		id := uuid.New().String()
		_, err := db.Exec(`
			INSERT INTO bins (id, bin_number, latitude, longitude, area, status, fill_percentage)
			VALUES ($1, $2, $3, $4, $5, 'active', $6)
		`, id, bin["bin_number"], bin["latitude"], bin["longitude"], bin["area"], bin["fill_percentage"])

		if err != nil {
			return err
		}
	}

	log.Println("✓ Successfully seeded 20 bins")
	return nil
}
