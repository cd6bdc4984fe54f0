package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/provmon/provmon/internal/checks"
	"github.com/provmon/provmon/internal/crawler"
	"github.com/provmon/provmon/internal/database"
	"github.com/provmon/provmon/internal/drift"
	"github.com/provmon/provmon/internal/matching"
	"github.com/provmon/provmon/internal/monitor"
	"github.com/provmon/provmon/internal/notifications"
	"github.com/provmon/provmon/internal/registry"
	"github.com/provmon/provmon/internal/scan"
	"github.com/provmon/provmon/internal/webserver"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on the environment")
	}

	// Initialize Logrus
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		level, err := logrus.ParseLevel(raw)
		if err != nil {
			logrus.Warnf("Invalid LOG_LEVEL '%s', keeping info", raw)
		} else {
			logrus.SetLevel(level)
		}
	}

	// Initialize Database
	dbConfig, err := database.LoadDatabaseConfig()
	if err != nil {
		logrus.Fatalf("Failed to load database configuration: %v", err)
	}
	db, err := database.NewDatabase(dbConfig)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close(context.Background())
	logrus.WithField("type", dbConfig.Type).Info("Database initialized successfully")

	// Initialize Notifier
	notifyConfig, err := notifications.LoadNotificationConfig()
	if err != nil {
		logrus.Fatalf("Failed to load notification configuration: %v", err)
	}
	notifier, err := notifications.NewNotifier(notifyConfig)
	if err != nil {
		logrus.Fatalf("Failed to initialize notifier: %v", err)
	}

	// Initialize the drift detector
	driftConfig, err := drift.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load drift configuration: %v", err)
	}
	detector := drift.NewDetector(db, notifier, driftConfig)

	// Initialize the crawler and registry client
	crawlConfig, err := crawler.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load crawler configuration: %v", err)
	}
	siteCrawler := crawler.New(*crawlConfig)

	registryConfig, err := registry.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load registry configuration: %v", err)
	}
	registryClient := registry.NewClient(registryConfig)

	// Initialize the scan engine with the full check registry
	scanConfig, err := scan.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load scan configuration: %v", err)
	}
	checkRegistry := checks.NewRegistry()
	engine := scan.NewEngine(siteCrawler, registryClient, checkRegistry,
		db, detector, scanConfig)

	if raw := os.Getenv("MATCH_SYNONYM_TABLE"); raw != "" {
		table, err := matching.ParseSynonymTable(raw)
		if err != nil {
			logrus.Warnf("Invalid MATCH_SYNONYM_TABLE, keeping defaults: %v", err)
		} else {
			engine.SetSynonyms(table)
		}
	}

	// Initialize the watch list monitor
	monitorConfig, err := monitor.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load monitor configuration: %v", err)
	}
	mon := monitor.NewMonitor(engine, db, monitorConfig)

	// Initialize Web Server
	wsConfig, err := webserver.NewWebserverConfig()
	if err != nil {
		logrus.Fatalf("Failed to load webserver configuration: %v", err)
	}
	webServer := webserver.NewWebServer(engine, mon, detector, siteCrawler,
		registryClient, checkRegistry, db, wsConfig, logrus.StandardLogger())

	// Create a cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the web server
	server, err := webserver.StartWebServer(ctx, webServer)
	if err != nil {
		logrus.Fatalf("Failed to start web server: %v", err)
	}

	// Start monitoring in a separate goroutine
	go func() {
		logrus.Info("Starting watch list monitor")
		mon.Start(ctx)
	}()

	// Listen for OS signals to handle graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigs
	logrus.Infof("Received signal: %s. Initiating shutdown...", sig)

	// Initiate shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Fatalf("Failed to gracefully shutdown the server: %v", err)
	}

	logrus.Info("Shutdown complete. Exiting.")
}
