package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"wastelink-backend/internal/cache"
	"wastelink-backend/internal/database"
	"wastelink-backend/internal/models"
	"wastelink-backend/internal/services"
	"wastelink-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// GetBins returns the monitored bins, optionally filtered by area
func GetBins(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := r.URL.Query().Get("area")

		bins, err := store.ListActiveBins(area)
		if err != nil {
			log.Printf("❌ Failed to list bins: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		responses := make([]models.BinResponse, 0, len(bins))
		for i := range bins {
			responses = append(responses, bins[i].ToBinResponse())
		}
		utils.Success(w, responses)
	}
}

// GetEligibleBins returns the High/Full bins in ranked order, fullest first.
// The response is snapshot-cached; sensor ingest invalidates it.
func GetEligibleBins(monitor *services.BinMonitor, snapshots *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := r.URL.Query().Get("area")
		key := cache.Key("bins-eligible", area)

		if cached, ok := snapshots.Get(key); ok {
			utils.Success(w, cached)
			return
		}

		bins, err := monitor.ListEligible(area)
		if err != nil {
			log.Printf("❌ Failed to list eligible bins: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		responses := make([]models.BinResponse, 0, len(bins))
		for i := range bins {
			responses = append(responses, bins[i].ToBinResponse())
		}

		snapshots.Set(key, responses)
		utils.Success(w, responses)
	}
}

// GetBin returns a single bin
func GetBin(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "id")

		bin, err := store.GetBin(binID)
		if err != nil {
			log.Printf("❌ Failed to fetch bin %s: %v", binID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if bin == nil {
			utils.RespondError(w, http.StatusNotFound, "Bin not found")
			return
		}

		utils.Success(w, bin.ToBinResponse())
	}
}

// CreateBin registers a new monitored bin (admin)
func CreateBin(store *database.Store, snapshots *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateBinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.BinNumber <= 0 || req.Area == "" {
			utils.RespondError(w, http.StatusBadRequest, "bin_number and area are required")
			return
		}
		if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
			utils.RespondError(w, http.StatusBadRequest, "coordinates out of range")
			return
		}
		if req.FillPercentage < 0 || req.FillPercentage > 100 {
			utils.RespondError(w, http.StatusBadRequest, "fill_percentage must be 0-100")
			return
		}

		now := time.Now().Unix()
		bin := models.Bin{
			ID:             uuid.New().String(),
			BinNumber:      req.BinNumber,
			Latitude:       req.Latitude,
			Longitude:      req.Longitude,
			Area:           req.Area,
			OwnerUserID:    req.OwnerUserID,
			Status:         "active",
			FillPercentage: req.FillPercentage,
			FillUpdatedAt:  now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := store.InsertBin(&bin); err != nil {
			log.Printf("❌ Failed to create bin %d: %v", req.BinNumber, err)
			utils.RespondError(w, http.StatusConflict, "Bin already exists")
			return
		}

		snapshots.Invalidate("bins-eligible")
		log.Printf("✅ Bin %d created in %s", bin.BinNumber, bin.Area)
		utils.RespondJSON(w, http.StatusCreated, bin.ToBinResponse())
	}
}

// IngestSensorReading consumes a fill-percentage sample from the telemetry
// feed and re-classifies the bin
func IngestSensorReading(monitor *services.BinMonitor, snapshots *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "id")

		var req models.SensorReadingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		bin, err := monitor.IngestReading(binID, req.FillPercentage, req.RecordedAt)
		if err != nil {
			utils.RespondAppError(w, err)
			return
		}

		snapshots.Invalidate("bins-eligible")
		snapshots.Invalidate("worklist")
		utils.Success(w, bin.ToBinResponse())
	}
}
