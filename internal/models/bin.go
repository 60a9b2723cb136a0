package models

import "time"

// FillLevel is the derived category for a bin's sensor fill percentage
type FillLevel string

const (
	FillLevelNormal FillLevel = "Normal" // below 50%, not collection-eligible
	FillLevelHigh   FillLevel = "High"   // 50-99%
	FillLevelFull   FillLevel = "Full"   // exactly 100%
)

// FillLevelFor classifies a fill percentage: <50 Normal, 50..99 High, 100 Full
func FillLevelFor(pct int) FillLevel {
	switch {
	case pct >= 100:
		return FillLevelFull
	case pct >= 50:
		return FillLevelHigh
	default:
		return FillLevelNormal
	}
}

// Bin is a sensor-equipped waste container
type Bin struct {
	ID              string  `json:"id" db:"id"`
	BinNumber       int     `json:"bin_number" db:"bin_number"`
	Latitude        float64 `json:"latitude" db:"latitude"`
	Longitude       float64 `json:"longitude" db:"longitude"`
	Area            string  `json:"area" db:"area"`
	OwnerUserID     *string `json:"owner_user_id,omitempty" db:"owner_user_id"`
	Status          string  `json:"status" db:"status"` // "active" or "retired"
	FillPercentage  int     `json:"fill_percentage" db:"fill_percentage"`
	FillUpdatedAt   int64   `json:"fill_updated_at" db:"fill_updated_at"`               // Unix timestamp of last sensor reading
	LastCollectedAt *int64  `json:"last_collected_at,omitempty" db:"last_collected_at"` // Unix timestamp
	CreatedAt       int64   `json:"created_at" db:"created_at"`
	UpdatedAt       int64   `json:"updated_at" db:"updated_at"`
}

// FillLevel returns the derived category for the bin's current reading
func (b *Bin) FillLevel() FillLevel {
	return FillLevelFor(b.FillPercentage)
}

// CollectionEligible reports whether the bin should surface on a worklist
func (b *Bin) CollectionEligible() bool {
	lvl := b.FillLevel()
	return lvl == FillLevelHigh || lvl == FillLevelFull
}

// SensorData is the nested telemetry block sent to clients
type SensorData struct {
	FillPercentage int       `json:"fill_percentage"`
	FillLevel      FillLevel `json:"fill_level"`
	LastUpdated    string    `json:"last_updated"` // RFC3339
}

// BinResponse is what we send to the client with ISO timestamps
type BinResponse struct {
	ID               string     `json:"id"`
	BinNumber        int        `json:"bin_number"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	Area             string     `json:"area"`
	OwnerUserID      *string    `json:"owner_user_id,omitempty"`
	Status           string     `json:"status"`
	SensorData       SensorData `json:"sensor_data"`
	LastCollectedIso *string    `json:"lastCollectedIso,omitempty"`
}

// ToBinResponse converts a Bin to BinResponse
func (b *Bin) ToBinResponse() BinResponse {
	resp := BinResponse{
		ID:          b.ID,
		BinNumber:   b.BinNumber,
		Latitude:    b.Latitude,
		Longitude:   b.Longitude,
		Area:        b.Area,
		OwnerUserID: b.OwnerUserID,
		Status:      b.Status,
		SensorData: SensorData{
			FillPercentage: b.FillPercentage,
			FillLevel:      b.FillLevel(),
			LastUpdated:    time.Unix(b.FillUpdatedAt, 0).UTC().Format(time.RFC3339),
		},
	}

	if b.LastCollectedAt != nil {
		iso := time.Unix(*b.LastCollectedAt, 0).UTC().Format(time.RFC3339)
		resp.LastCollectedIso = &iso
	}

	return resp
}

// CreateBinRequest is the request body for POST /api/bins
type CreateBinRequest struct {
	BinNumber      int     `json:"bin_number"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Area           string  `json:"area"`
	OwnerUserID    *string `json:"owner_user_id,omitempty"`
	FillPercentage int     `json:"fill_percentage"`
}

// SensorReadingRequest is the request body for POST /api/bins/{id}/sensor,
// sent by the external telemetry feed
type SensorReadingRequest struct {
	FillPercentage int    `json:"fill_percentage"`
	RecordedAt     *int64 `json:"recorded_at,omitempty"` // Unix timestamp, defaults to server time
}

// CollectBinRequest is the request body for the collect action
type CollectBinRequest struct {
	BinID            string   `json:"bin_id"`
	ObservedWeightKg *float64 `json:"weight,omitempty"`
}

// CollectionEvent records a completed pickup of a bin
type CollectionEvent struct {
	ID          int     `json:"id" db:"id"`
	BinID       string  `json:"bin_id" db:"bin_id"`
	CollectorID string  `json:"collector_id" db:"collector_id"`
	WeightKg    float64 `json:"weight_kg" db:"weight_kg"`
	CollectedAt int64   `json:"collected_at" db:"collected_at"`
}
