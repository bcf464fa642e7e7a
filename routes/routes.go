package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/anubis/app"
	"github.com/upb/anubis/handlers"
	"github.com/upb/anubis/middleware"
	"github.com/upb/anubis/utils"
)

// SetupRoutes configures all application routes and middleware.
//
// Every request passes request-id, recovery, tenant context, authentication
// and the access decision before reaching a handler. Denied requests and
// unknown routes get the same not found response.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	requestTimeout := cfg.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type",
			middleware.HeaderAuthorization, middleware.HeaderUser, middleware.HeaderTenant,
			handlers.HeaderPublicKeyModulus, handlers.HeaderPublicKeyExponent,
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Tenant context, authentication and access decision
	r.Use(middleware.Tenant)
	if cfg.Auth.Enabled {
		r.Use(deps.AuthMiddleware.Authenticate)
		r.Use(deps.AccessMiddleware.Enforce)
	} else {
		r.Use(deps.AuthMiddleware.Bypass)
	}

	logger := deps.Logger
	healthHandler := handlers.NewHealthHandler(deps.SQLDB(), deps.SignatureService, logger)
	initializeHandler := handlers.NewInitializeHandler(deps.SignatureService, logger)
	signatureHandler := handlers.NewSignatureHandler(deps.SignatureService, logger)
	permittableHandler := handlers.NewPermittableHandler(deps.Permittables, logger)
	refreshHandler := handlers.NewRefreshHandler(deps.SignatureService, logger)

	// Probes
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/ready", healthHandler.HandleReadiness)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// Tenant provisioning and key material
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireTenant)

		r.Post("/initialize", initializeHandler.HandleInitialize)

		r.Route("/signatures", func(r chi.Router) {
			r.Get("/", signatureHandler.HandleList)
			r.Get("/{timestamp}", signatureHandler.HandleGet)
			r.Post("/{timestamp}", signatureHandler.HandleCreate)
			r.Delete("/{timestamp}", signatureHandler.HandleDelete)
			r.Get("/{timestamp}/application", signatureHandler.HandleGetApplication)
		})

		r.Post("/users/{useridentifier}/refresh", refreshHandler.HandleIssue)
		r.Get("/refresh", refreshHandler.HandleVerify)
	})

	// Discovery
	r.Get("/permittables", permittableHandler.HandleList)
	r.Get("/users/{useridentifier}/permissions", permittableHandler.HandleUserPermissions)

	// Unknown routes look exactly like denied ones
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "")
	})

	return r
}
