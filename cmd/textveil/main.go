package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/archive"
	"github.com/textveil/textveil/internal/cache"
	"github.com/textveil/textveil/internal/config"
	"github.com/textveil/textveil/internal/events"
	"github.com/textveil/textveil/internal/history"
	"github.com/textveil/textveil/internal/logger"
	"github.com/textveil/textveil/internal/masking"
	"github.com/textveil/textveil/internal/rules"
	"github.com/textveil/textveil/internal/server"
	"github.com/textveil/textveil/internal/store"
	"github.com/textveil/textveil/internal/transform"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Path to configuration file")
		showVersion   = flag.Bool("version", false, "Show version information")
		healthCheck   = flag.Bool("health-check", false, "Perform health check and exit")
		exportArchive = flag.String("export-archive", "", "Export history to a Parquet file at the given path and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("textveil %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *exportArchive != "" {
		runArchiveExport(cfg, log, *exportArchive)
		return
	}

	log.Info("Starting textveil",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	engine := masking.NewEngine(log.Logger)
	pipeline := transform.NewPipeline(engine, log.Logger)

	deps := server.Deps{}

	if cfg.Store.Enabled {
		db, err := store.Open(cfg.Store, log.Logger)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		ruleStore, err := rules.NewStore(db, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize rule store", zap.Error(err))
		}
		deps.Rules = ruleStore

		historyStore, err := history.NewStore(db, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize history store", zap.Error(err))
		}
		deps.History = historyStore

		if cfg.Autosave.Enabled {
			deps.Autosave = history.NewAutosave(historyStore, history.AutosaveConfig{
				Debounce:            cfg.Autosave.Debounce,
				SimilarityThreshold: cfg.Autosave.SimilarityThreshold,
				OnError: func(err error) {
					log.Warn("Autosave failed", zap.Error(err))
				},
			}, log.Logger)
		}
	}

	if cfg.Cache.Enabled {
		resultCache, err := cache.New(cfg.Cache, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize result cache", zap.Error(err))
		}
		defer resultCache.Close()
		deps.Cache = resultCache
	}

	if cfg.Events.Enabled {
		deps.Hub = events.NewHub(cfg.Events, log.Logger)
	}

	srv := server.New(cfg, log, engine, pipeline, deps)

	if err := config.Watch(cfg, srv.ApplyConfig); err != nil {
		log.Warn("Configuration watching disabled", zap.Error(err))
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// runArchiveExport dumps persisted history to a Parquet file and exits.
func runArchiveExport(cfg *config.Config, log *logger.Logger, path string) {
	if !cfg.Store.Enabled {
		fmt.Fprintln(os.Stderr, "Archive export requires the store to be enabled")
		os.Exit(1)
	}

	db, err := store.Open(cfg.Store, log.Logger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	historyStore, err := history.NewStore(db, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize history store", zap.Error(err))
	}

	exporter := archive.NewExporter(historyStore, log.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	written, err := exporter.Export(ctx, path, 10000)
	if err != nil {
		log.Fatal("Archive export failed", zap.Error(err))
	}

	fmt.Printf("Exported %d history records to %s\n", written, path)
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
