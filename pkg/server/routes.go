package server

import (
	"net"
	"net/http"
	"strconv"
	"time"

	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/riandyrn/otelchi"

	"github.com/piiscan/analyzer/pkg/auth"
	"github.com/piiscan/analyzer/pkg/metrics"
	"github.com/piiscan/analyzer/pkg/models"
)

const ReadHeaderTimeout = 5 * time.Second

// Create creates a new HTTP server with the given app state
func Create(appState *models.AppState) (*http.Server, error) {
	router, err := setupRouter(appState)
	if err != nil {
		return nil, err
	}
	cfg := appState.Config.Server
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}, nil
}

// @title						Analyzer REST API
// @version					1.x
// @BasePath					/
// @schemes					http https
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
// @description				Type "Bearer" followed by a space and JWT token.
func setupRouter(appState *models.AppState) (*chi.Mux, error) {
	cfg := appState.Config

	router := chi.NewRouter()
	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}))
	}
	router.Use(httpLogger.Logger("router", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(SendVersion)
	router.Use(middleware.Heartbeat("/healthz"))
	router.Use(otelchi.Middleware("analyzer", otelchi.WithChiRoutes(router)))
	router.Use(RecordMetrics)

	router.Get("/health", HealthHandler)
	if cfg.Metrics.Enabled {
		router.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	var verifier func(http.Handler) http.Handler
	if cfg.Auth.Required {
		log.Info("JWT authentication required")
		var err error
		verifier, err = auth.JWTVerifier(cfg)
		if err != nil {
			return nil, err
		}
	}

	router.Group(func(r chi.Router) {
		if verifier != nil {
			r.Use(verifier)
			r.Use(jwtauth.Authenticator)
		}

		analyze := r.With()
		if cfg.Server.MaxRequestSize > 0 {
			analyze = r.With(middleware.RequestSize(cfg.Server.MaxRequestSize))
		}
		analyze.Post("/analyze", AnalyzeHandler(appState))
		r.Get("/recognizers", RecognizersHandler(appState))
		r.Get("/supportedentities", SupportedEntitiesHandler(appState))
	})

	return router, nil
}
