package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wastelink-backend/internal/database"
	"wastelink-backend/internal/middleware"
	"wastelink-backend/internal/models"
	"wastelink-backend/internal/services"
	"wastelink-backend/internal/websocket"
	"wastelink-backend/pkg/utils"

	"github.com/google/uuid"
)

// GetSchedules returns the authenticated collector's schedules in calendar
// order. Supports ?limit=N and ?fields=a,b,c projection for the mobile
// home screen, which only renders a couple of columns.
func GetSchedules(manager *services.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		schedules, err := manager.ListForCollector(user.UserID)
		if err != nil {
			log.Printf("❌ Failed to list schedules for %s: %v", user.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if limit, err := strconv.Atoi(limitStr); err == nil && limit >= 0 && limit < len(schedules) {
				schedules = schedules[:limit]
			}
		}

		if fields := r.URL.Query().Get("fields"); fields != "" {
			utils.Success(w, projectSchedules(schedules, strings.Split(fields, ",")))
			return
		}

		utils.Success(w, schedules)
	}
}

// projectSchedules reduces schedules to the requested fields
func projectSchedules(schedules []models.Schedule, fields []string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(schedules))
	for i := range schedules {
		s := &schedules[i]
		row := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			switch strings.TrimSpace(f) {
			case "id":
				row["id"] = s.ID
			case "area":
				row["area"] = s.Area
			case "date":
				row["date"] = s.Date
			case "time":
				row["time"] = s.TimeOfDay
			case "status":
				row["status"] = s.Status
			}
		}
		out = append(out, row)
	}
	return out
}

// GetNextSchedule returns the earliest outstanding schedule, the one the
// start action will accept
func GetNextSchedule(manager *services.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next, err := manager.NextSchedule(user.UserID)
		if err != nil {
			log.Printf("❌ Failed to fetch next schedule for %s: %v", user.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		utils.Success(w, next)
	}
}

// StartSchedule moves the collector's schedule to In Progress
func StartSchedule(manager *services.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req models.ScheduleTransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScheduleID == "" {
			utils.RespondError(w, http.StatusBadRequest, "schedule_id is required")
			return
		}

		schedule, err := manager.StartRoute(req.ScheduleID, user.UserID)
		if err != nil {
			utils.RespondAppError(w, err)
			return
		}

		utils.Success(w, schedule)
	}
}

// CompleteSchedule moves the collector's schedule to Completed
func CompleteSchedule(manager *services.ScheduleManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req models.ScheduleTransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScheduleID == "" {
			utils.RespondError(w, http.StatusBadRequest, "schedule_id is required")
			return
		}

		schedule, err := manager.CompleteRoute(req.ScheduleID, user.UserID)
		if err != nil {
			utils.RespondAppError(w, err)
			return
		}

		utils.Success(w, schedule)
	}
}

// CreateSchedule assigns a route to a collector (admin). The collector is
// notified over the socket when connected and via push otherwise.
func CreateSchedule(store *database.Store, hub *websocket.Hub, fcm *services.FCMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.CollectorID == "" || req.Area == "" {
			utils.RespondError(w, http.StatusBadRequest, "collector_id and area are required")
			return
		}
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		if _, err := time.Parse("15:04", req.TimeOfDay); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "time must be HH:MM")
			return
		}

		schedule := models.Schedule{
			ID:          uuid.New().String(),
			CollectorID: req.CollectorID,
			Area:        req.Area,
			Date:        req.Date,
			TimeOfDay:   req.TimeOfDay,
			Status:      models.ScheduleStatusPending,
		}

		if err := store.InsertSchedule(&schedule); err != nil {
			log.Printf("❌ Failed to create schedule: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		log.Printf("✅ Schedule created for %s: %s on %s at %s", req.CollectorID, req.Area, req.Date, req.TimeOfDay)

		if hub != nil && hub.IsUserConnected(req.CollectorID) {
			hub.BroadcastToUser(req.CollectorID, map[string]interface{}{
				"type": "schedule_assigned",
				"data": schedule,
			})
		} else if fcm != nil {
			if tokens, err := store.TokensForUser(req.CollectorID); err == nil {
				for _, token := range tokens {
					if err := fcm.SendScheduleAssigned(token, &schedule); err != nil {
						log.Printf("⚠️ Failed to push schedule notification: %v", err)
					}
				}
			}
		}

		utils.RespondJSON(w, http.StatusCreated, schedule)
	}
}
