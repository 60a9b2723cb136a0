package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"wastelink-backend/internal/database"
	"wastelink-backend/internal/geoloc"
	"wastelink-backend/internal/middleware"
	"wastelink-backend/internal/models"
	"wastelink-backend/internal/services"
	"wastelink-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// UpdateLocation ingests a position sample over HTTP, for devices that fall
// back from the socket
func UpdateLocation(locSvc *services.LocationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var loc models.CollectorLocation
		if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		updatedAt, err := locSvc.Ingest(user.UserID, loc)
		if err != nil {
			utils.RespondAppError(w, err)
			return
		}

		utils.Success(w, map[string]int64{"updated_at": updatedAt})
	}
}

// ReportLocationFailure ingests a device-side geolocation failure over HTTP
func ReportLocationFailure(locSvc *services.LocationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		kind := geoloc.FailureTimeout
		if req.Code == "permission_denied" {
			kind = geoloc.FailurePermissionDenied
		}
		locSvc.ReportFailure(user.UserID, kind, req.Message)

		utils.Success(w, map[string]bool{"recorded": true})
	}
}

// GetCollectorLocation returns a collector's last known position (admin)
func GetCollectorLocation(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collectorID := chi.URLParam(r, "id")

		loc, err := store.GetCollectorLocation(collectorID)
		if err != nil {
			log.Printf("❌ Failed to fetch location for %s: %v", collectorID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if loc == nil {
			utils.RespondError(w, http.StatusNotFound, "No known position")
			return
		}

		utils.Success(w, loc)
	}
}
