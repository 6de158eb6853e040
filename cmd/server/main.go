package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yscoder310/bext-chat-app-sub001/internal/config"
	"github.com/yscoder310/bext-chat-app-sub001/internal/httpserver"
	"github.com/yscoder310/bext-chat-app-sub001/internal/security"
	"github.com/yscoder310/bext-chat-app-sub001/internal/store/postgres"
	"github.com/yscoder310/bext-chat-app-sub001/internal/store/sqlite"
	"github.com/yscoder310/bext-chat-app-sub001/internal/ws"
)

// @title           bext-chat API
// @version         1.0
// @description     Backend API for the bext-chat application.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize database
	var db *sql.DB
	switch cfg.DBDriver {
	case "postgres":
		if db, err = postgres.Open(cfg.DatabaseURL); err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		if err := postgres.Migrate(db); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	default:
		if db, err = sqlite.Open(cfg.SQLitePath); err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		if err := sqlite.Migrate(db); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}
	defer db.Close()

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(0)

	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey))
	if err != nil {
		log.Fatalf("failed to initialize encryptor: %v", err)
	}

	// Repositories, services and event routing
	repos := httpserver.BuildRepositories(cfg, db)
	svcs := httpserver.BuildServices(cfg, repos, tokenSvc, passwordHasher, encryptor)
	events := ws.NewRouter(repos.Users, svcs.Messages, svcs.Groups, nil, ws.DefaultTypingWindow)

	// Build HTTP router
	router := httpserver.NewRouter(cfg, repos, svcs, events, tokenSvc)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("Starting bext-chat server on %s\n", cfg.HTTPAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
