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

	"go.uber.org/zap"

	"attendance-sheet-go/config"
	"attendance-sheet-go/db"
	"attendance-sheet-go/handlers"
	applogger "attendance-sheet-go/logger"
	"attendance-sheet-go/models"
	"attendance-sheet-go/render"
	"attendance-sheet-go/sheet"
)

func main() {
	cfg, err := config.Load(os.Getenv("ATTENDANCE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open roster store", zap.Error(err))
	}
	defer closeStore()

	if cfg.Storage.SeedDemo {
		checkAndSeedData(store, logger)
	}

	compositor, err := sheet.LoadCompositor(cfg.Sheet.TemplatePath, cfg.Sheet.LogoPath, logger)
	if err != nil {
		logger.Fatal("failed to load sheet template", zap.Error(err))
	}

	renderer, err := render.NewBrowserRenderer(render.Options{
		PoolSize:      cfg.Render.PoolSize,
		RenderTimeout: cfg.Render.Timeout,
		LaunchTimeout: cfg.Render.LaunchTimeout,
		Headless:      cfg.Render.Headless,
		Args:          cfg.Render.Args,
	}, logger)
	if err != nil {
		logger.Fatal("failed to start browser renderer", zap.Error(err))
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			logger.Error("failed to close renderer", zap.Error(err))
		}
	}()

	generator := sheet.NewGenerator(store, compositor, renderer, cfg.Sheet.StrictChecks, logger)
	apiHandler := handlers.NewAPIHandler(store, generator, logger)
	router := handlers.SetupRouter(apiHandler, logger, cfg.Server.StaticDir)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

// openStore builds the configured roster backend and its cleanup
func openStore(cfg *config.Config, logger *zap.Logger) (db.StudentStore, func(), error) {
	switch cfg.Storage.Driver {
	case "redis":
		client, err := db.InitializeRedisClient(&cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Storage.Redis.Addr), zap.Int("db", cfg.Storage.Redis.DB))
		return db.NewRedisStore(client, logger), func() { client.Close() }, nil
	default:
		logger.Info("using roster file", zap.String("path", cfg.Storage.FilePath))
		return db.NewFileStore(cfg.Storage.FilePath, logger), func() {}, nil
	}
}

// checkAndSeedData adds a small demo roster when the store is empty
func checkAndSeedData(store db.StudentStore, logger *zap.Logger) {
	ctx := context.Background()
	count, err := store.Count(ctx)
	if err != nil {
		logger.Warn("could not check roster size, skipping demo data", zap.Error(err))
		return
	}
	if count > 0 {
		logger.Info("roster already populated, skipping demo data", zap.Int("count", count))
		return
	}

	logger.Info("roster is empty, adding demo students")
	demo := []models.Student{
		{ID: "0081234501", Name: "Ayu Lestari", ClassName: "7A"},
		{ID: "0081234502", Name: "Budi Santoso", ClassName: "7A"},
		{ID: "0081234503", Name: "Citra Dewi", ClassName: "8B"},
	}
	for _, s := range demo {
		if _, err := store.Add(ctx, s); err != nil {
			logger.Warn("failed to add demo student", zap.String("id", s.ID), zap.Error(err))
		}
	}
}
