package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"wastelink-backend/internal/cache"
	"wastelink-backend/internal/database"
	"wastelink-backend/internal/geoloc"
	"wastelink-backend/internal/handlers"
	"wastelink-backend/internal/middleware"
	"wastelink-backend/internal/models"
	"wastelink-backend/internal/services"
	"wastelink-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

// triageNotifier fans triage events out over the socket (when the target is
// connected) and FCM (when not)
type triageNotifier struct {
	store *database.Store
	hub   *websocket.Hub
	fcm   *services.FCMService
}

func (n *triageNotifier) GrievanceAssigned(g *models.Grievance, collectorID string) {
	if n.hub != nil && n.hub.IsUserConnected(collectorID) {
		n.hub.BroadcastToUser(collectorID, map[string]interface{}{
			"type": "grievance_assigned",
			"data": g,
		})
		return
	}
	if n.fcm == nil {
		return
	}
	tokens, err := n.store.TokensForUser(collectorID)
	if err != nil {
		log.Printf("⚠️ Failed to load FCM tokens for %s: %v", collectorID, err)
		return
	}
	for _, token := range tokens {
		if err := n.fcm.SendGrievanceAssigned(token, g); err != nil {
			log.Printf("⚠️ Failed to push grievance notification: %v", err)
		}
	}
}

func (n *triageNotifier) GrievanceEscalated(g *models.Grievance) {
	if n.hub != nil {
		n.hub.BroadcastToRole("admin", map[string]interface{}{
			"type": "grievance_escalated",
			"data": g,
		})
	}
	if n.fcm == nil {
		return
	}
	tokens, err := n.store.TokensForRole("admin")
	if err != nil {
		log.Printf("⚠️ Failed to load admin FCM tokens: %v", err)
		return
	}
	ageHours := time.Since(time.Unix(g.CreatedAt, 0)).Hours()
	if err := n.fcm.SendEscalationAlert(tokens, g, ageHours); err != nil {
		log.Printf("⚠️ Failed to push escalation alert: %v", err)
	}
}

// envSeconds reads an integer env var expressed in seconds
func envSeconds(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		log.Printf("⚠️  Invalid %s=%q, using default %s", name, v, fallback)
	}
	return fallback
}

func envHours(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Hour
		}
		log.Printf("⚠️  Invalid %s=%q, using default %s", name, v, fallback)
	}
	return fallback
}

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 WASTELINK BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	log.Println("📂 Loading environment variables...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: DATABASE_URL environment variable is required")
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	defer db.Close()

	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Println("❌ FATAL ERROR: Database migrations failed")
		log.Fatal(err)
	}

	log.Println("🌱 Seeding database with initial data...")
	if err := database.SeedUsers(db); err != nil {
		log.Println("❌ FATAL ERROR: User seeding failed")
		log.Fatal(err)
	}
	if err := database.SeedBins(db); err != nil {
		log.Println("❌ FATAL ERROR: Bins seeding failed")
		log.Fatal(err)
	}

	// Initialize Firebase Cloud Messaging
	// Supports both file path and base64-encoded credentials (for cloud deployments)
	var fcmService *services.FCMService
	if fcmCredsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); fcmCredsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(fcmCredsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else {
		fcmCredentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE")
		if fcmCredentialsFile == "" {
			fcmCredentialsFile = "./firebase-service-account.json"
		}
		fcmService, err = services.NewFCMService(fcmCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	}

	store := database.NewStore(db)

	// Geolocation watch registry, fed by the location service
	watcher := geoloc.NewWatcher()
	locSvc := services.NewLocationService(store, watcher)

	// WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	// Core services
	binMonitor := services.NewBinMonitor(store)
	scheduleManager := services.NewScheduleManager(store)

	escalationThreshold := envHours("ESCALATION_THRESHOLD_HOURS", 48*time.Hour)
	triageEngine := services.NewTriageEngine(store, &triageNotifier{store: store, hub: wsHub, fcm: fcmService}, escalationThreshold)

	policy := services.DefaultCollectionPolicy()
	if v := os.Getenv("DISPATCH_AUTO_RESOLVE"); v == "false" || v == "0" {
		policy.AutoResolveOnCollect = false
		log.Println("⚠️  Collect action will NOT auto-resolve linked grievances")
	}
	dispatcher := services.NewDispatcher(binMonitor, scheduleManager, triageEngine, store, policy)

	// Short-TTL snapshot cache for the read-heavy dashboard endpoints
	snapshots := cache.NewSnapshotCache(15 * time.Second)
	defer snapshots.Close()

	// Background loops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refreshInterval := envSeconds("DISPATCH_REFRESH_SECONDS", 30*time.Second)
	refresher := services.NewRefresher(dispatcher, wsHub, refreshInterval)
	refresher.Start(ctx)

	sweeper := services.NewEscalationSweeper(triageEngine, 10*time.Minute)
	sweeper.Start(ctx)

	// Router
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub, locSvc))

	r.Route("/api", func(r chi.Router) {
		// Sensor telemetry feed (keyed ingestion endpoint; gateways do not
		// carry user JWTs)
		r.Post("/bins/{id}/sensor", handlers.IngestSensorReading(binMonitor, snapshots))

		// Authenticated routes (any role)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			r.Get("/bins", handlers.GetBins(store))
			r.Get("/bins/{id}", handlers.GetBin(store))
			r.Get("/grievances/{id}", handlers.GetGrievance(store))
			r.Post("/fcm-token", handlers.RegisterFCMToken(db))
		})

		// Collector routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("collector"))

			r.Get("/collector/schedules", handlers.GetSchedules(scheduleManager))
			r.Get("/collector/schedules/next", handlers.GetNextSchedule(scheduleManager))
			r.Post("/collector/schedules/start", handlers.StartSchedule(scheduleManager))
			r.Post("/collector/schedules/complete", handlers.CompleteSchedule(scheduleManager))

			r.Get("/collector/worklist", handlers.GetWorklist(dispatcher, snapshots))
			r.Post("/collector/collect", handlers.CollectBin(dispatcher, snapshots))
			r.Get("/collector/bins/eligible", handlers.GetEligibleBins(binMonitor, snapshots))
			r.Get("/collector/bins/{id}/navigation", handlers.GetNavigationLink(store))
			r.Get("/collector/bins/{id}/distance", handlers.GetDistance(store))

			r.Get("/collector/grievances", handlers.GetAssignedGrievances(triageEngine, store))
			r.Post("/collector/grievances/{id}/notes", handlers.AddGrievanceNote(triageEngine, store))
			r.Post("/collector/grievances/{id}/resolve", handlers.ResolveGrievance(triageEngine, store, snapshots))

			r.Post("/collector/location", handlers.UpdateLocation(locSvc))
			r.Post("/collector/location/failure", handlers.ReportLocationFailure(locSvc))
		})

		// Resident routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("resident"))

			r.Post("/grievances", handlers.CreateGrievance(triageEngine, store))
			r.Get("/resident/grievances", handlers.GetMyGrievances(store))
			r.Post("/resident/grievances/{id}/notes", handlers.AddGrievanceNote(triageEngine, store))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("admin"))

			r.Post("/users", handlers.CreateUser(db))
			r.Get("/manager/collectors", handlers.ListCollectors(db))
			r.Post("/manager/bins", handlers.CreateBin(store, snapshots))
			r.Post("/manager/schedules", handlers.CreateSchedule(store, wsHub, fcmService))

			r.Get("/manager/grievances", handlers.GetUnresolvedGrievances(triageEngine, store))
			r.Post("/manager/grievances/{id}/assign", handlers.AssignGrievance(triageEngine, store, snapshots))
			r.Post("/manager/grievances/{id}/notes", handlers.AddGrievanceNote(triageEngine, store))
			r.Post("/manager/grievances/{id}/close", handlers.CloseGrievance(triageEngine, store, snapshots))

			r.Get("/manager/collectors/{id}/location", handlers.GetCollectorLocation(store))
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		log.Printf("⚠️  PORT not set, using default: %s", port)
	}

	server := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.Println("═══════════════════════════════════════════════════════════════════")
		log.Println("✅ ALL INITIALIZATION COMPLETE")
		log.Printf("🚀 Server starting on http://localhost:%s", port)
		log.Printf("🔄 Worklist refresh every %s, escalation threshold %s", refreshInterval, escalationThreshold)
		log.Println("═══════════════════════════════════════════════════════════════════")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Println("❌ FATAL ERROR: Server failed to start")
			log.Fatal(err)
		}
	}()

	// Graceful shutdown: stop the loops, close live watches, drain HTTP
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🔻 Shutting down...")
	refresher.Stop()
	sweeper.Stop()
	watcher.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Forced shutdown: %v", err)
	}
	log.Println("👋 Server stopped")
}
