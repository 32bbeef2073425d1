package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"prop_harvester/config"
	"prop_harvester/logging"
	"prop_harvester/scheduler"
	"prop_harvester/scraper"
	"prop_harvester/storage"
	"prop_harvester/workers"
)

var (
	scrapeNow  = flag.Bool("scrape", false, "Run scrape once and exit")
	phaseFlag  = flag.String("phase", "all", "Which stage to run: discover, details, ingest, all")
	portalFlag = flag.String("portals", "", "Comma-separated portal names (default: all configured)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("harvester.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting prop_harvester...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d portal configs", len(cfg.Portals))
	for name, pc := range cfg.Portals {
		log.Printf("  - %s (%s, %d seeds)", name, pc.ScrapingMode, len(pc.SeedURLs))
	}

	phase, err := scraper.ParsePhase(*phaseFlag)
	if err != nil {
		log.Fatalf("Bad -phase: %v", err)
	}
	var portals []string
	if *portalFlag != "" {
		portals = strings.Split(*portalFlag, ",")
	}

	ctx := context.Background()

	// Postgres is optional; without it the run still stages everything to
	// disk and ingest is skipped.
	var pgStore *storage.PostgresStore
	var sink storage.ListingSink
	if cfg.DatabaseURL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		sink = pgStore
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
	} else {
		log.Println("No DATABASE_URL set, staging to disk only")
	}

	sqliteStore, err := storage.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.SQLitePath)

	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore, sink)

	if *scrapeNow {
		log.Printf("Running scrape (phase=%s)...", phase)
		if err := orchestrator.RunAll(ctx, phase, portals); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, orchestrator)
	if pgStore != nil {
		healthcheckWorker := workers.NewHealthcheckWorker(pgStore)
		go healthcheckWorker.Run(ctx, 6*time.Hour)
		sched.SetHealthcheck(healthcheckWorker)
		log.Println("Healthcheck worker started")
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	cancel()
	log.Println("Goodbye!")
}

// maskConnectionString hides the password portion of a DSN for logging.
func maskConnectionString(connStr string) string {
	schemeEnd := strings.Index(connStr, "://")
	if schemeEnd == -1 {
		return connStr
	}
	rest := connStr[schemeEnd+3:]
	at := strings.Index(rest, "@")
	if at == -1 {
		return connStr
	}
	creds := rest[:at]
	if colon := strings.Index(creds, ":"); colon != -1 {
		creds = creds[:colon] + ":****"
	}
	return connStr[:schemeEnd+3] + creds + rest[at:]
}
