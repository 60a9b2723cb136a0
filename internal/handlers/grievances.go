package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"wastelink-backend/internal/cache"
	"wastelink-backend/internal/database"
	"wastelink-backend/internal/middleware"
	"wastelink-backend/internal/models"
	"wastelink-backend/internal/services"
	"wastelink-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// withBinPoint decorates a grievance with its bin's coordinates so the map
// screen needs no second fetch
func withBinPoint(store *database.Store, g *models.Grievance) models.GrievanceResponse {
	resp := models.GrievanceResponse{Grievance: *g}
	if bin, err := store.GetBin(g.BinID); err == nil && bin != nil {
		resp.Bin = &models.BinPoint{Latitude: bin.Latitude, Longitude: bin.Longitude}
	}
	return resp
}

func withBinPoints(store *database.Store, grievances []models.Grievance) []models.GrievanceResponse {
	responses := make([]models.GrievanceResponse, 0, len(grievances))
	for i := range grievances {
		responses = append(responses, withBinPoint(store, &grievances[i]))
	}
	return responses
}

// CreateGrievance registers a resident-reported issue against a bin
func CreateGrievance(engine *services.TriageEngine, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req models.CreateGrievanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		bin, err := store.GetBin(req.BinID)
		if err != nil {
			log.Printf("❌ Failed to fetch bin %s: %v", req.BinID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if bin == nil {
			utils.RespondError(w, http.StatusNotFound, "Bin not found")
			return
		}

		g, err := engine.Create(user.UserID, bin, req.Description, req.Severity)
		if err != nil {
			utils.RespondAppError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusCreated, withBinPoint(store, g))
	}
}

// GetMyGrievances returns the reporting resident's own grievances, newest
// first
func GetMyGrievances(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		grievances, err := store.ListGrievancesByReporter(user.UserID)
		if err != nil {
			log.Printf("❌ Failed to list grievances for %s: %v", user.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		utils.Success(w, withBinPoints(store, grievances))
	}
}

// GetAssignedGrievances returns the collector's active grievances in live
// priority order
func GetAssignedGrievances(engine *services.TriageEngine, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		grievances, err := engine.ActiveForCollector(user.UserID)
		if err != nil {
			log.Printf("❌ Failed to list assigned grievances for %s: %v", user.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		utils.Success(w, withBinPoints(store, grievances))
	}
}

// GetUnresolvedGrievances returns every Open / In Progress grievance for the
// admin triage board, highest priority first
func GetUnresolvedGrievances(engine *services.TriageEngine, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grievances, err := store.ListUnresolvedGrievances()
		if err != nil {
			log.Printf("❌ Failed to list unresolved grievances: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		engine.Rank(grievances)
		utils.Success(w, withBinPoints(store, grievances))
	}
}

// GetGrievance returns one grievance with its note history
func GetGrievance(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grievanceID := chi.URLParam(r, "id")

		g, err := store.GetGrievance(grievanceID)
		if err != nil {
			log.Printf("❌ Failed to fetch grievance %s: %v", grievanceID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if g == nil {
			utils.RespondError(w, http.StatusNotFound, "Grievance not found")
			return
		}

		utils.Success(w, withBinPoint(store, g))
	}
}

// AssignGrievance hands an Open grievance to a collector (admin). Push and
// socket notification happen inside the triage engine's notifier.
func AssignGrievance(engine *services.TriageEngine, store *database.Store, snapshots *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grievanceID := chi.URLParam(r, "id")

		var req models.AssignGrievanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CollectorID == "" {
			utils.RespondError(w, http.StatusBadRequest, "collector_id is required")
			return
		}

		g, err := engine.Assign(grievanceID, req.CollectorID)
		if err != nil {
			utils.RespondAppError(w, err)
			return
		}

		snapshots.Invalidate("worklist")
		utils.Success(w, withBinPoint(store, g))
	}
}

// AddGrievanceNote appends a comment or follow-up to the grievance history
func AddGrievanceNote(engine *services.TriageEngine, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		grievanceID := chi.URLParam(r, "id")

		var req models.GrievanceNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		noteType := models.NoteTypeComment
		if user.Role == "collector" {
			noteType = models.NoteTypeFollowUp
		}

		g, err := engine.AddNote(grievanceID, user.Role, noteType, req.Content)
		if err != nil {
			utils.RespondAppError(w, err)
			return
		}

		utils.Success(w, withBinPoint(store, g))
	}
}

// ResolveGrievance closes out the collector's In Progress grievance with a
// mandatory resolution note
func ResolveGrievance(engine *services.TriageEngine, store *database.Store, snapshots *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		grievanceID := chi.URLParam(r, "id")

		var req models.ResolveGrievanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		g, err := engine.Resolve(grievanceID, user.UserID, req.ResolutionNote)
		if err != nil {
			utils.RespondAppError(w, err)
			return
		}

		snapshots.Invalidate("worklist")
		utils.Success(w, withBinPoint(store, g))
	}
}

// CloseGrievance is the administrative Close/Reject action
func CloseGrievance(engine *services.TriageEngine, store *database.Store, snapshots *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grievanceID := chi.URLParam(r, "id")

		var req models.CloseGrievanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		g, err := engine.Archive(grievanceID, req.Status, req.Reason)
		if err != nil {
			utils.RespondAppError(w, err)
			return
		}

		snapshots.Invalidate("worklist")
		utils.Success(w, withBinPoint(store, g))
	}
}
