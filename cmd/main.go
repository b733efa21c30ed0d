package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/KhrulSergey/league-core-sub002/brackets"
	"github.com/KhrulSergey/league-core-sub002/config"
	"github.com/KhrulSergey/league-core-sub002/db"
	"github.com/KhrulSergey/league-core-sub002/handlers"
	"github.com/KhrulSergey/league-core-sub002/middleware"
	"github.com/KhrulSergey/league-core-sub002/repositories"
	"github.com/KhrulSergey/league-core-sub002/routes"
	"github.com/KhrulSergey/league-core-sub002/services"
	"github.com/KhrulSergey/league-core-sub002/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	handlers.SetLogger(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	uploader := storage.NewNoopUploader()
	if cfg.UploadsEnabled() {
		uploader, err = storage.NewR2Uploader(storage.R2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2Bucket,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("R2 uploader initialized", slog.String("bucket", cfg.R2Bucket))
	} else {
		logger.Warn("object storage not configured, logo uploads disabled")
	}

	hub := brackets.NewHub(logger)
	go hub.Run()

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	proposalRepo := repositories.NewPostgresProposalRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)
	seriesRepo := repositories.NewPostgresSeriesRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	txManager := repositories.NewSQLTxManager(dbConn)

	locks := services.NewTournamentLocks()
	ledger := services.NewLoggingLedger(logger)
	roster := services.OpenRosterProvider{}

	// Wired in dependency order: match resolution cascades into series
	// progression, which cascades into round progression.
	roundService := services.NewRoundService(roundRepo, seriesRepo, tournamentRepo, txManager, locks, hub, logger)
	seriesService := services.NewSeriesService(seriesRepo, matchRepo, roundRepo, tournamentRepo, roundService, txManager, locks, hub, logger)
	matchService := services.NewMatchService(matchRepo, seriesRepo, roundRepo, tournamentRepo, seriesService, txManager, locks, hub, logger)
	proposalService := services.NewProposalService(proposalRepo, tournamentRepo, txManager, locks, ledger, roster, hub, logger)
	bracketService := services.NewBracketService(tournamentRepo, proposalRepo, roundRepo, seriesRepo, txManager, locks, hub, logger)
	tournamentService := services.NewTournamentService(tournamentRepo, txManager, locks, uploader, hub, logger)

	auth := middleware.NewAuthenticator(cfg.JWTSecretKey)

	router := routes.InitRoutes(routes.Handlers{
		Auth:       handlers.NewAuthHandler(auth, cfg.AdminPasswordHash),
		Tournament: handlers.NewTournamentHandler(tournamentService, bracketService),
		Proposal:   handlers.NewProposalHandler(proposalService),
		Round:      handlers.NewRoundHandler(roundService, seriesService),
		Series:     handlers.NewSeriesHandler(seriesService),
		Match:      handlers.NewMatchHandler(matchService),
		WebSocket:  handlers.NewWebSocketHandler(hub, cfg.CORSAllowedOrigins, logger),
	}, auth, cfg.CORSAllowedOrigins)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
