package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/pathrpg/engine/internal/achievements"
	"github.com/pathrpg/engine/internal/auth"
	"github.com/pathrpg/engine/internal/config"
	"github.com/pathrpg/engine/internal/handlers"
	"github.com/pathrpg/engine/internal/logger"
	"github.com/pathrpg/engine/internal/middleware"
	"github.com/pathrpg/engine/internal/services/events"
	"github.com/pathrpg/engine/internal/storage"
	"github.com/pathrpg/engine/pkg/engine"
	"github.com/pathrpg/engine/pkg/scene"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Path RPG API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"scenes_dir", cfg.ScenesDir)

	sessions, err := storage.NewRedisStore(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create session store", "error", err)
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startupCancel()
	if err := sessions.WaitForConnection(startupCtx); err != nil {
		log.Error("Failed to connect to session store", "error", err)
		os.Exit(1)
	}

	db, err := storage.OpenSQLite(cfg.DBPath, log)
	if err != nil {
		log.Error("Failed to open game database", "error", err)
		os.Exit(1)
	}
	log.Info("Game database ready", "path", cfg.DBPath)

	scenes := scene.NewStore(cfg.ScenesDir, log)

	// Fail fast on broken scene data instead of surfacing it mid-game.
	all, err := scenes.LoadAll(startupCtx)
	if err != nil {
		log.Error("Failed to load scene data", "error", err)
		os.Exit(1)
	}
	report, err := scene.CheckGraph(all)
	if err != nil {
		log.Error("Scene graph check failed", "error", err)
		os.Exit(1)
	}
	if !report.OK() {
		log.Error("Scene graph has dangling references", "dangling", report.Dangling)
		os.Exit(1)
	}
	log.Info("Scene graph loaded", "scenes", len(all), "unreachable", report.Unreachable)

	checker := achievements.NewChecker(db, log)
	broadcaster := events.NewBroadcaster(sessions.Client(), log)

	eng := engine.New(scenes, sessions, db, log,
		engine.WithObserver(checker),
		engine.WithObserver(broadcaster))

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)

	authHandler := handlers.NewAuthHandler(db, tokens, log)
	gameHandler := handlers.NewGameHandler(eng, scenes, log)
	leaderboardHandler := handlers.NewLeaderboardHandler(db, log)
	achievementsHandler := handlers.NewAchievementsHandler(db, log)
	healthHandler := handlers.NewHealthHandler(sessions, db, log)

	r := mux.NewRouter()
	r.Handle("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/register", authHandler.Register).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login", authHandler.Login).Methods(http.MethodPost)
	r.HandleFunc("/v1/leaderboard", leaderboardHandler.Get).Methods(http.MethodGet)

	game := r.PathPrefix("/v1").Subrouter()
	game.HandleFunc("/game", gameHandler.Get).Methods(http.MethodGet)
	game.HandleFunc("/game", gameHandler.Start).Methods(http.MethodPost)
	game.HandleFunc("/game/choice", gameHandler.Choose).Methods(http.MethodPost)
	game.HandleFunc("/game/complete", gameHandler.Complete).Methods(http.MethodPost)
	game.HandleFunc("/achievements", achievementsHandler.Get).Methods(http.MethodGet)
	game.Use(func(next http.Handler) http.Handler {
		return middleware.Auth(tokens, log, next)
	})

	handler := middleware.Logger(log, r)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	if err := sessions.Close(); err != nil {
		log.Error("Error closing session store", "error", err)
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing game database", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
