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
	"github.com/joho/godotenv"

	"github.com/sunovault/sunovault/internal/api"
	"github.com/sunovault/sunovault/internal/catalog"
	"github.com/sunovault/sunovault/internal/config"
	"github.com/sunovault/sunovault/internal/domain"
	"github.com/sunovault/sunovault/internal/filter"
	"github.com/sunovault/sunovault/internal/ingest"
	"github.com/sunovault/sunovault/internal/logger"
	"github.com/sunovault/sunovault/internal/store"
)

func main() {
	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Initialize DB
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Controller
	controller := ingest.New(ingest.RunConfig{
		Token:           cfg.Token,
		APIBaseURL:      cfg.APIBaseURL,
		OutputDir:       cfg.OutputDir,
		StartPage:       cfg.StartPage,
		MaxPages:        cfg.MaxPages,
		DownloadDelay:   cfg.DownloadDelay,
		Workers:         cfg.Workers,
		PreferWAV:       cfg.PreferWAV,
		EmbedMetadata:   cfg.EmbedMetadata,
		SaveLyrics:      cfg.SaveLyrics,
		OrganizeByMonth: cfg.OrganizeByMonth,
		StemSubfolders:  cfg.StemSubfolders,
		AdaptiveStop:    cfg.AdaptiveStop,
		Filters: filter.Config{
			LikedOnly:       cfg.LikedOnly,
			HideDisliked:    cfg.HideDisliked,
			HideStems:       cfg.HideStems,
			StemsOnly:       cfg.StemsOnly,
			HideStudioClips: cfg.HideStudioClips,
			IncludeTrashed:  cfg.IncludeTrashed,
			SourceType:      cfg.SourceType,
			SearchText:      cfg.SearchText,
			CollectionID:    cfg.CollectionID,
			CollectionKind:  cfg.CollectionKind,
		},
	}, appLogger)

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := api.NewHandler(db, catalog.New(cfg.APIBaseURL, cfg.Token, appLogger), appLogger)
	h.SetActive(controller)
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Persist run history and relay events while the run executes.
	run := &domain.Run{
		ID:        controller.ID(),
		Source:    "catalog",
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := db.CreateRun(run); err != nil {
		appLogger.Error("Failed to record run", "error", err)
	}

	eventsDone := make(chan struct{})
	go consumeEvents(controller, db, appLogger, eventsDone)

	runDone := make(chan error, 1)
	go func() {
		runDone <- controller.Run(context.Background())
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		log.Println("Shutting down, stopping run...")
		controller.Stop()
		runErr = <-runDone
	case runErr = <-runDone:
	}
	<-eventsDone

	finishRun(db, controller, runErr, appLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
	if runErr != nil {
		os.Exit(1)
	}
}

// consumeEvents drains the controller's event stream, logging lifecycle
// events and persisting per-asset outcomes.
func consumeEvents(c *ingest.Controller, db *store.DB, appLogger *logger.Logger, done chan<- struct{}) {
	defer close(done)
	for ev := range c.Events() {
		switch ev.Kind {
		case domain.EventStatusChanged:
			appLogger.Info(ev.Message)
		case domain.EventAssetFound:
			appLogger.Info("Found", "asset_id", ev.AssetID, "title", ev.Title)
		case domain.EventAssetProgress:
			appLogger.Debug("Progress", "asset_id", ev.AssetID, "percent", ev.Percent)
		case domain.EventAssetFinished:
			appLogger.Info("Finished", "asset_id", ev.AssetID, "status", ev.Status, "path", ev.Path)
			out := &domain.Outcome{
				AssetID:     ev.AssetID,
				Title:       ev.Title,
				Status:      domain.OutcomeStatus(ev.Status),
				FilePath:    ev.Path,
				Error:       ev.Message,
				CompletedAt: time.Now(),
			}
			if err := db.RecordOutcome(c.ID(), out); err != nil {
				appLogger.Error("Failed to record outcome", "error", err)
			}
		case domain.EventError:
			appLogger.Error(ev.Message)
		}
	}
}

func finishRun(db *store.DB, c *ingest.Controller, runErr error, appLogger *logger.Logger) {
	status := domain.RunStatusComplete
	errMsg := ""
	switch {
	case runErr != nil:
		status = domain.RunStatusError
		errMsg = runErr.Error()
	case c.Stopped():
		status = domain.RunStatusStopped
	}
	if err := db.FinishRun(c.ID(), status, errMsg); err != nil {
		appLogger.Error("Failed to finish run", "error", err)
	}
}
