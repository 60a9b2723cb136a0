package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"wastelink-backend/internal/middleware"
	"wastelink-backend/internal/models"
	"wastelink-backend/pkg/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// CreateUser registers an account. Admin-only; the portal has no open signup.
func CreateUser(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Email == "" || req.Password == "" || req.Name == "" {
			utils.RespondError(w, http.StatusBadRequest, "email, password and name are required")
			return
		}
		switch req.Role {
		case "collector", "admin", "resident":
		default:
			utils.RespondError(w, http.StatusBadRequest, "role must be collector, admin or resident")
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		user := models.User{
			ID:        uuid.New().String(),
			Email:     req.Email,
			Password:  string(hashed),
			Name:      req.Name,
			Role:      req.Role,
			CreatedAt: time.Now().Unix(),
			UpdatedAt: time.Now().Unix(),
		}

		_, err = db.Exec(`
			INSERT INTO users (id, email, password, name, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, user.ID, user.Email, user.Password, user.Name, user.Role, user.CreatedAt, user.UpdatedAt)
		if err != nil {
			log.Printf("❌ Failed to create user %s: %v", req.Email, err)
			utils.RespondError(w, http.StatusConflict, "User already exists")
			return
		}

		log.Printf("✅ User created: %s (%s)", user.Email, user.Role)
		utils.RespondJSON(w, http.StatusCreated, user.ToUserResponse())
	}
}

// ListCollectors returns collector accounts for the admin assignment screens
func ListCollectors(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		if err := db.Select(&users, `SELECT * FROM users WHERE role = 'collector' ORDER BY name ASC`); err != nil {
			log.Printf("❌ Failed to list collectors: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		responses := make([]models.UserResponse, 0, len(users))
		for i := range users {
			responses = append(responses, users[i].ToUserResponse())
		}
		utils.Success(w, responses)
	}
}

type RegisterTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

// RegisterFCMToken stores a device push token for the authenticated user
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req RegisterTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "token is required")
			return
		}

		now := time.Now().Unix()
		_, err := db.Exec(`
			INSERT INTO fcm_tokens (user_id, token, device_type, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (token)
			DO UPDATE SET user_id = EXCLUDED.user_id, device_type = EXCLUDED.device_type, updated_at = EXCLUDED.updated_at
		`, user.UserID, req.Token, req.DeviceType, now)
		if err != nil {
			log.Printf("❌ Failed to register FCM token for %s: %v", user.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		log.Printf("✅ FCM token registered for %s (%s)", user.UserID, req.DeviceType)
		utils.Success(w, map[string]bool{"registered": true})
	}
}
