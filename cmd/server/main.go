package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/infomatrix/infomatrix/app/api"
	"github.com/infomatrix/infomatrix/app/cache"
	"github.com/infomatrix/infomatrix/app/cfg"
	"github.com/infomatrix/infomatrix/app/database"
	"github.com/infomatrix/infomatrix/app/feed"
	"github.com/infomatrix/infomatrix/app/scheduler"
	"github.com/infomatrix/infomatrix/app/sources"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting InfoMatrix server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	// A missing cache degrades reads to the database; it never blocks startup.
	cacheClient, err := cache.NewClient(appCfg.RedisAddr)
	if err != nil {
		slog.Warn("Redis unavailable, caching disabled", "addr", appCfg.RedisAddr, "error", err)
		cacheClient = nil
	} else {
		defer cacheClient.Close()
	}

	srcs, err := sources.Load(appCfg.SourcesFile)
	if err != nil {
		slog.Error("Failed to load feed sources", "file", appCfg.SourcesFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Feed sources loaded", "count", len(srcs))

	blogRepo := database.NewBlogRepository(db)
	postRepo := database.NewPostRepository(db)
	featuredRepo := database.NewFeaturedRepository(db)

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 5,
		},
	}
	fetcher := feed.NewFetcher(httpClient, feed.NewParser(), appCfg.UserAgent,
		time.Duration(appCfg.FetchTimeout)*time.Second)

	var feedCache feed.Cache
	if cacheClient != nil {
		feedCache = cacheClient
	}
	svc := feed.NewService(srcs, fetcher, blogRepo, postRepo, feedCache,
		time.Duration(appCfg.CacheTTL)*time.Second)

	sched := scheduler.New(svc, time.Duration(appCfg.RefreshInterval)*time.Second)
	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(svc, db, blogRepo, postRepo, featuredRepo, cacheClient)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler and connections are stopped via defers
	slog.Info("Shutdown complete")
}
