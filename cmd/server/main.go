package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"medical-triage/internal/catalog"
	"medical-triage/internal/config"
	"medical-triage/internal/dialog"
	"medical-triage/internal/platform/database"
	"medical-triage/internal/platform/logging"
	"medical-triage/internal/platform/telegram"
	"medical-triage/internal/platform/web"
	"medical-triage/internal/report"
	"medical-triage/internal/scheduler"
	"medical-triage/internal/story"
)

func main() {
	if err := run(); err != nil {
		logging.Logger().Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.Setup(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Storage
	var (
		source   catalog.Source
		archive  story.Archiver
		sessions dialog.SessionStore = dialog.NewMemoryStore()
	)
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		db, err := database.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(cfg.MigrationsPath, cfg.DatabaseURL, log); err != nil {
			return err
		}
		source = catalog.NewRepository(db)
		archive = story.NewRepository(db)
		if cfg.SessionBackend == config.StoragePostgres {
			sessions = dialog.NewRepository(db)
		}
	case config.StorageMemory:
		snap, err := catalog.LoadSnapshotFile(cfg.CatalogSeedPath)
		if err != nil {
			return err
		}
		source = catalog.NewMemory(snap)
		archive = story.NewMemoryArchiver()
		log.Warn("using in-memory storage, stories are lost on restart")
	}

	// 2. Catalog cache, refreshed in the background
	cache := catalog.NewCache(source)
	if err := cache.Refresh(ctx); err != nil {
		return fmt.Errorf("initial catalog load: %w", err)
	}
	sched := scheduler.New(log)
	if err := sched.Add("catalog-refresh", cfg.CatalogRefreshSpec, cache.Refresh); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// 3. Doctor reports
	var reports dialog.ReportSink
	if cfg.ReportsEnabled() {
		tgClient, err := telegram.NewClient(cfg.TelegramBotToken)
		if err != nil {
			log.Warn("doctor reports disabled", "error", err)
		} else {
			reports = report.NewService(tgClient, cfg.DoctorChatID, cfg.ReportFontPath)
		}
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN or DOCTOR_CHAT_ID is not set, doctor reports disabled")
	}

	// 4. Services
	dialogSvc := dialog.NewService(cache, sessions, archive, reports, cfg.TopRankingSize)
	dialogHandler := dialog.NewHandler(dialogSvc)
	storyHandler := story.NewHandler(archive)

	// 5. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for frontend
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if r.Method == http.MethodOptions {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		web.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		dialog.RegisterRoutes(r, dialogHandler)
		story.RegisterRoutes(r, storyHandler)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "storage", cfg.StorageBackend, "sessions", cfg.SessionBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
