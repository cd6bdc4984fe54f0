// Package webserver exposes the scan, registry, baseline and drift
// operations over HTTP.
package webserver

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/provmon/provmon/internal/checks"
	"github.com/provmon/provmon/internal/crawler"
	"github.com/provmon/provmon/internal/database"
	"github.com/provmon/provmon/internal/drift"
	"github.com/provmon/provmon/internal/monitor"
	"github.com/provmon/provmon/internal/registry"
	"github.com/provmon/provmon/internal/scan"
)

// WebServer holds the data needed for handling HTTP requests.
type WebServer struct {
	Engine   *scan.Engine
	Monitor  *monitor.Monitor
	Detector *drift.Detector
	Crawler  *crawler.Crawler
	Registry *registry.Client
	Checks   *checks.Registry
	DB       database.Database
	config   *WebserverConfig
	Logger   *logrus.Logger
}

// NewWebServer initializes a new WebServer.
func NewWebServer(engine *scan.Engine, mon *monitor.Monitor, detector *drift.Detector,
	c *crawler.Crawler, reg *registry.Client, checkReg *checks.Registry,
	db database.Database, config *WebserverConfig, logger *logrus.Logger) *WebServer {
	return &WebServer{
		Engine:   engine,
		Monitor:  mon,
		Detector: detector,
		Crawler:  c,
		Registry: reg,
		Checks:   checkReg,
		DB:       db,
		config:   config,
		Logger:   logger,
	}
}

// StartWebServer starts the HTTP server.
func StartWebServer(ctx context.Context, ws *WebServer) (*http.Server, error) {
	router := ws.InitRouter()

	// Configure CORS options
	corsOptions := cors.Options{
		AllowedOrigins:   ws.config.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		Debug:            false,
	}

	handler := cors.New(corsOptions).Handler(router)

	server := &http.Server{
		Addr:    ws.config.ListenTo,
		Handler: handler,
	}

	go func() {
		ws.Logger.Infof("Server starting on %s", ws.config.ListenTo)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.Logger.Errorf("ListenAndServe(): %v", err)
		}
	}()

	return server, nil
}

// InitRouter initializes the HTTP routes.
func (ws *WebServer) InitRouter() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/scans", ws.handleRunScan).Methods(http.MethodPost)
	api.HandleFunc("/scans", ws.handleGetScans).Methods(http.MethodGet)
	api.HandleFunc("/crawl", ws.handleCrawl).Methods(http.MethodPost)
	api.HandleFunc("/registry/{npi}", ws.handleGetRegistry).Methods(http.MethodGet)
	api.HandleFunc("/checks", ws.handleGetChecks).Methods(http.MethodGet)

	api.HandleFunc("/baselines", ws.handleSetBaselines).Methods(http.MethodPost)
	api.HandleFunc("/baselines", ws.handleGetBaselines).Methods(http.MethodGet)
	api.HandleFunc("/drift", ws.handleReportDrift).Methods(http.MethodPost)
	api.HandleFunc("/drift", ws.handleGetDrift).Methods(http.MethodGet)
	api.HandleFunc("/drift/{id}", ws.handleUpdateDrift).Methods(http.MethodPatch)
	api.HandleFunc("/heartbeat", ws.handleHeartbeat).Methods(http.MethodPost)

	api.HandleFunc("/watch", ws.handleWatch).Methods(http.MethodPost)
	api.HandleFunc("/watch", ws.handleGetWatchList).Methods(http.MethodGet)
	api.HandleFunc("/watch/{npi}", ws.handleUnwatch).Methods(http.MethodDelete)

	api.HandleFunc("/stats", ws.handleGetStats).Methods(http.MethodGet)

	return r
}
