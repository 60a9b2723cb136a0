package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"wastelink-backend/internal/cache"
	"wastelink-backend/internal/database"
	"wastelink-backend/internal/middleware"
	"wastelink-backend/internal/models"
	"wastelink-backend/internal/services"
	"wastelink-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// GetWorklist returns the collector's merged, ranked worklist. The refresher
// pushes the same shape over the socket every cycle; this endpoint is the
// pull-based fallback and the initial load.
func GetWorklist(dispatcher *services.Dispatcher, snapshots *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		key := cache.Key("worklist", user.UserID)
		if cached, ok := snapshots.Get(key); ok {
			utils.Success(w, cached)
			return
		}

		wl, err := dispatcher.BuildWorklist(user.UserID)
		if err != nil {
			log.Printf("❌ Failed to build worklist for %s: %v", user.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		snapshots.Set(key, wl)
		utils.Success(w, wl)
	}
}

// CollectBin executes the collect action: the bin empties and, per policy,
// the linked grievance resolves
func CollectBin(dispatcher *services.Dispatcher, snapshots *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req models.CollectBinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BinID == "" {
			utils.RespondError(w, http.StatusBadRequest, "bin_id is required")
			return
		}

		result, err := dispatcher.CollectBin(user.UserID, req.BinID, req.ObservedWeightKg)
		if err != nil {
			utils.RespondAppError(w, err)
			return
		}

		snapshots.Invalidate("worklist")
		snapshots.Invalidate("bins-eligible")
		utils.Success(w, result)
	}
}

// GetNavigationLink builds the map deep link for a bin. ?platform=android|ios
// selects the native scheme; anything else gets the web URL.
func GetNavigationLink(store *database.Store) http.HandlerFunc {
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

		platform := r.URL.Query().Get("platform")
		utils.Success(w, services.NavigationLink(bin.Latitude, bin.Longitude, platform))
	}
}

// GetDistance returns the straight-line distance from the collector's last
// position to a bin, for the worklist detail screen
func GetDistance(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		binID := chi.URLParam(r, "id")

		bin, err := store.GetBin(binID)
		if err != nil || bin == nil {
			utils.RespondError(w, http.StatusNotFound, "Bin not found")
			return
		}

		loc, err := store.GetCollectorLocation(user.UserID)
		if err != nil || loc == nil {
			utils.RespondError(w, http.StatusNotFound, "No known position")
			return
		}

		km := services.HaversineKm(loc.Latitude, loc.Longitude, bin.Latitude, bin.Longitude)
		utils.Success(w, map[string]string{
			"distance_km": strconv.FormatFloat(km, 'f', 3, 64),
		})
	}
}
