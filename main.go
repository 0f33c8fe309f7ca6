// Package main is the khakishop server entrypoint.
//
// main wires every layer together:
//
//  1. Config
//  2. Database
//  3. i18n
//  4. Storage
//  5. Repositories
//  6. WebSocket hub
//  7. Services (+ bootstrap admin)
//  8. Handlers
//  9. Routes (middleware chains live in init_routes.go)
//  10. CORS
//  11. HTTP server
//  12. Graceful shutdown
//
// No globals: everything is built here and passed down.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/khakishop/server/config"
	"github.com/khakishop/server/database"
	"github.com/khakishop/server/pkg/i18n"
	"github.com/khakishop/server/pkg/storage"
	"github.com/khakishop/server/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] khakishop server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d, storage=%s)", cfg.Server.Port, cfg.Storage.Driver)

	// ─── 2. Database ───
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. i18n ───
	if err := i18n.LoadEmbedded(); err != nil {
		log.Fatalf("[main] failed to load i18n translations: %v", err)
	}

	// ─── 4. Storage ───
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	store, err := storage.New(startCtx, cfg.Storage, cfg.Upload.Dir)
	if err != nil {
		log.Fatalf("[main] failed to initialize storage: %v", err)
	}

	// ─── 5. Repositories ───
	repos := initRepositories(db.Conn)

	// ─── 6. WebSocket Hub ───
	// The hub is the EventPublisher of the services: admin clients get
	// notified of catalog changes and refetch.
	hub := ws.NewHub()
	go hub.Run()

	// ─── 7. Services ───
	svcs, limiters := initServices(db.Conn, repos, store, hub, cfg)
	defer limiters.Close()

	if err := ensureAdmin(startCtx, svcs.Auth, cfg.Admin); err != nil {
		log.Fatalf("[main] failed to create bootstrap admin: %v", err)
	}

	// ─── 8. Handlers ───
	h := initHandlers(svcs, limiters, db, store, hub, cfg)

	// ─── 9. Routes ───
	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth, repos.User)

	// ─── 10. CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	})

	// ─── 11. HTTP Server ───
	// WriteTimeout covers a full batch upload on a slow connection.
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           corsHandler.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// ─── 12. Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	// WebSocket clients first, then in-flight HTTP requests (5s).
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}
