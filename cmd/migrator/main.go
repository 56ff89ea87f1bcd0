package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/crmops/crm-migrator/internal/api"
	"github.com/crmops/crm-migrator/internal/config"
	"github.com/crmops/crm-migrator/internal/crm"
	"github.com/crmops/crm-migrator/internal/migration"
	"github.com/crmops/crm-migrator/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			fmt.Printf("crm-migrator %s (commit: %s, built: %s)\n", version, commit, date)
			os.Exit(0)
		}
	}

	cfg := config.Parse()
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	var jobStore store.JobStore
	if cfg.MongoURI != "" {
		ms, err := store.ConnectMongo(context.Background(), cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Fatal("connecting job store", "err", err)
		}
		jobStore = ms
		logger.Info("job store: mongodb", "database", cfg.MongoDatabase)
	} else {
		jobStore = store.NewMemoryStore()
		logger.Warn("job store: in-memory (job history is lost on restart)")
	}

	client := crm.NewClient(cfg.CRMBaseURL, cfg.CRMAPIVersion,
		cfg.RateLimitRPS, cfg.RateBurst, time.Duration(cfg.HTTPTimeout)*time.Second)

	categories := make([]migration.CategorySource, 0)
	for _, ep := range client.Categories() {
		categories = append(categories, ep)
	}

	manager := migration.NewManager(jobStore, categories, logger, cfg.MaxParallelCategories)

	server := &api.Server{
		Manager:   manager,
		Validator: migration.NewValidator(client),
		Analyzer:  migration.NewAnalyzer(categories, cfg.SecondsPerRecord),
		Exporter:  migration.NewExporter(categories),
	}

	logger.Info("crm-migrator starting",
		"version", version,
		"listen", cfg.Listen,
		"crm", cfg.CRMBaseURL,
		"apiVersion", cfg.CRMAPIVersion,
		"rps", cfg.RateLimitRPS)

	if err := http.ListenAndServe(cfg.Listen, api.NewRouter(server)); err != nil {
		logger.Fatal("http server", "err", err)
	}
}
