package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mangasync/internal/catalog"
	"mangasync/internal/config"
	"mangasync/internal/importer"
	"mangasync/internal/mangadex"
	"mangasync/internal/proxy"
	"mangasync/internal/retry"
	"mangasync/pkg/database"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config failed")
	}

	db, err := database.Open(database.Config{Path: cfg.Database.Path})
	if err != nil {
		logger.Fatal().Err(err).Msg("open database failed")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("db migrate failed")
	}

	md := mangadex.NewClient(cfg.MangaDex.BaseURL, cfg.MangaDex.Timeout,
		logger.With().Str("component", "mangadex").Logger())
	runner := retry.NewRunner(cfg.Sync.MaxRetries,
		logger.With().Str("component", "retry").Logger())
	repo := catalog.NewRepo(db)
	imp := importer.New(md, repo, runner, cfg.Sync,
		logger.With().Str("component", "importer").Logger())

	router := gin.Default()

	// Optional: avoid “trusted all proxies” warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "not_ready",
				"db_error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Database.Path})
	})

	// Catalog (public)
	catalogHandler := catalog.NewHandler(repo, md, md,
		logger.With().Str("component", "catalog").Logger())
	catalogHandler.RegisterRoutes(router.Group("/manga"), router.Group("/chapters"))
	router.GET("/search", catalogHandler.SearchLive)

	// Import trigger + status
	importer.NewHandler(imp).RegisterRoutes(router.Group("/import"))

	// Image proxy
	proxy.NewHandler(logger.With().Str("component", "proxy").Logger()).
		RegisterRoutes(router.Group("/proxy"))

	// Background sync: once at startup, then on the configured period.
	schedCtx, stopSched := context.WithCancel(context.Background())
	var schedDone chan struct{}
	if cfg.Sync.Enabled {
		sched := &importer.Scheduler{
			Importer:   imp,
			Interval:   cfg.Sync.Interval,
			RunTimeout: cfg.Sync.RunTimeout,
			Log:        logger.With().Str("component", "scheduler").Logger(),
		}
		schedDone = make(chan struct{})
		go func() {
			defer close(schedDone)
			sched.Run(schedCtx)
		}()
	}

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	logger.Info().Msg("shutting down")
	stopSched()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if schedDone != nil {
		<-schedDone
	}
	logger.Info().Msg("server stopped")
}
