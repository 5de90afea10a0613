package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/shroomify/server/internal/config"
	"github.com/shroomify/server/internal/handlers"
	"github.com/shroomify/server/internal/inference"
	"github.com/shroomify/server/internal/localstore"
	custommw "github.com/shroomify/server/internal/middleware"
	"github.com/shroomify/server/internal/observability"
	"github.com/shroomify/server/internal/repository"
	"github.com/shroomify/server/internal/services"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize telemetry
	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("shroomify-server", serviceVersion))
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Telemetry shutdown error: %v", err)
		}
	}()

	// Initialize database and repositories
	var logRepo repository.LogRepo
	var userRepo repository.UserRepo
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL database")
		db, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
		}
		defer db.Close()
		tdb := observability.NewTraceDB(db)
		logRepo = repository.NewLogRepositoryPostgres(tdb)
		userRepo = repository.NewUserRepositoryPostgres(tdb)
	} else {
		log.Println("Using SQLite database")
		db, err := repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite database: %v", err)
		}
		defer db.Close()
		tdb := observability.NewTraceDB(db)
		logRepo = repository.NewLogRepository(tdb)
		userRepo = repository.NewUserRepository(tdb)
	}

	// Initialize the durable local stores
	scanStore, err := localstore.NewScanStore(cfg.LocalStoreDir)
	if err != nil {
		log.Fatalf("Failed to open scan store: %v", err)
	}
	sessionStore, err := localstore.NewSessionStore(cfg.LocalStoreDir)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}

	// Metrics
	scanMetrics, err := observability.NewScanMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize scan metrics: %v", err)
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize HTTP metrics: %v", err)
	}

	// Session gate, restored from the cached session if one exists
	sessionService := services.NewSessionService(sessionStore)
	sessionService.Restore()

	// WebSocket hub for pushing batch and sync updates
	hub := services.NewWebSocketHub()
	go hub.Run()

	// Inference client
	inferenceClient := inference.NewClient(
		cfg.Inference.BaseURL,
		time.Duration(cfg.Inference.TimeoutSeconds)*time.Second,
	)

	// Initialize services
	exifService := services.NewEXIFService()
	thumbnailService := services.NewThumbnailService()
	syncService := services.NewSyncService(scanStore, logRepo, hub, scanMetrics)
	batchService := services.NewBatchService(sessionService, inferenceClient, scanStore, syncService, hub, scanMetrics)
	scanService := services.NewScanService(inferenceClient, sessionService, scanStore, syncService, exifService, scanMetrics)
	historyService := services.NewHistoryService(logRepo, thumbnailService, exifService)

	var oauthConfig *oauth2.Config
	if cfg.OAuth.ClientID != "" {
		oauthConfig = &oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	authService := services.NewAuthService(userRepo, sessionService, oauthConfig, scanMetrics)

	// Initialize handlers
	scanHandler := handlers.NewScanHandler(scanService)
	batchHandler := handlers.NewBatchHandler(batchService)
	syncHandler := handlers.NewSyncHandler(syncService)
	historyHandler := handlers.NewHistoryHandler(historyService)
	authHandler := handlers.NewAuthHandler(authService, sessionService)
	healthHandler := handlers.NewHealthHandler()
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(httpMetrics.MetricsMiddleware)

	// Public routes
	r.Get("/health", healthHandler.Health)
	r.Get("/api/health", healthHandler.Health)
	r.Get("/ws", wsHandler.Serve)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/session", authHandler.Session)
		r.Post("/event", authHandler.AuthEvent)
		r.Get("/oauth/login", authHandler.OAuthLogin)
		r.Get("/oauth/callback", authHandler.OAuthCallback)
	})

	// Classification itself works without an account
	r.Post("/api/scan/classify", scanHandler.Classify)
	r.Post("/api/scan/heatmap", scanHandler.Heatmap)

	// Routes requiring an authenticated session
	r.Group(func(r chi.Router) {
		r.Use(custommw.SessionAuth(sessionService))

		r.Post("/api/scan/save", scanHandler.Save)

		r.Route("/api/batch", func(r chi.Router) {
			r.Post("/enqueue", batchHandler.Enqueue)
			r.Get("/state", batchHandler.State)
			r.Put("/mode", batchHandler.SetMode)
			r.Post("/save", batchHandler.SaveAll)
			r.Delete("/", batchHandler.Clear)
		})

		r.Route("/api/sync", func(r chi.Router) {
			r.Post("/run", syncHandler.Run)
			r.Get("/status", syncHandler.Status)
		})

		r.Route("/api/history", func(r chi.Router) {
			r.Get("/", historyHandler.List)
			r.Get("/{id}/image", historyHandler.Image)
			r.Get("/{id}/thumbnail", historyHandler.Thumbnail)
			r.Delete("/{id}", historyHandler.Delete)
			r.Post("/delete", historyHandler.BulkDelete)
		})

		r.Get("/api/profile", authHandler.Profile)
		r.Put("/api/profile", authHandler.UpdateProfile)
	})

	// Records saved before the last shutdown still need to reach the server
	if pending := scanStore.PendingCount(); pending > 0 {
		observability.WithField("pending", pending).Info("Resuming sync of saved scans")
		syncService.RunDetached()
	}

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for image uploads
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Shroomify server starting on %s", cfg.ServerAddress)
		log.Printf("Local store path: %s", cfg.LocalStoreDir)
		log.Printf("Inference endpoint: %s", cfg.Inference.BaseURL)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
