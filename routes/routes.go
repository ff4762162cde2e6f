package routes

import (
	"net/http"
	"time"

	"github.com/arbitragevault/backend/app"
	"github.com/arbitragevault/backend/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.DB.DB, deps.Logger)
	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Logger)
	batchHandler := handlers.NewBatchHandler(deps.BatchService, deps.Logger)
	nicheHandler := handlers.NewNicheHandler(deps.NicheService, deps.Logger)
	autosourcingHandler := handlers.NewAutosourcingHandler(deps.AutosourcingService, deps.Logger)
	tokenHandler := handlers.NewTokenHandler(deps.Guard, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.With(deps.AuthMiddleware.RequireAuth).Get("/me", authHandler.HandleCurrentUser)
		})

		// Token budget dashboard
		r.With(deps.AuthMiddleware.RequireAuth).Get("/tokens", tokenHandler.HandleStatus)

		// Batch analyses
		r.Route("/batches", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/", batchHandler.HandleListBatches)
			r.Post("/", batchHandler.HandleCreateBatch)
			r.Get("/{batchID}", batchHandler.HandleGetBatch)
			r.Post("/{batchID}/run", batchHandler.HandleRunBatch)
			r.Get("/{batchID}/results", batchHandler.HandleListResults)
		})

		// Saved niches
		r.Route("/niches", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/", nicheHandler.HandleListNiches)
			r.Post("/", nicheHandler.HandleCreateNiche)
			r.Get("/{nicheID}", nicheHandler.HandleGetNiche)
			r.Put("/{nicheID}", nicheHandler.HandleUpdateNiche)
			r.Delete("/{nicheID}", nicheHandler.HandleDeleteNiche)
			r.Post("/{nicheID}/rescore", nicheHandler.HandleRescoreNiche)
		})

		// Autosourcing jobs
		r.Route("/autosourcing", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/", autosourcingHandler.HandleListJobs)
			r.Post("/", autosourcingHandler.HandleCreateJob)
			r.Get("/{jobID}", autosourcingHandler.HandleGetJob)
			r.Put("/{jobID}/enabled", autosourcingHandler.HandleSetJobEnabled)
			r.Delete("/{jobID}", autosourcingHandler.HandleDeleteJob)
			r.Get("/{jobID}/picks", autosourcingHandler.HandleListPicks)
			r.Post("/{jobID}/run", autosourcingHandler.HandleRunJob)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
