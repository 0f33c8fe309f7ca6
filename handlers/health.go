package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/khakishop/server/pkg"
)

// Pinger is satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageChecker is satisfied by every storage.Store.
type StorageChecker interface {
	Check(ctx context.Context) error
	Driver() string
}

// ConnectionCounter is satisfied by *ws.Hub.
type ConnectionCounter interface {
	ConnectionCount() int
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	Storage       string `json:"storage"`
	StorageDriver string `json:"storage_driver"`
	AdminsOnline  int    `json:"admins_online"`
}

// HealthHandler reports whether the server's dependencies answer.
type HealthHandler struct {
	db    Pinger
	store StorageChecker
	hub   ConnectionCounter
}

// NewHealthHandler is the constructor.
func NewHealthHandler(db Pinger, store StorageChecker, hub ConnectionCounter) *HealthHandler {
	return &HealthHandler{db: db, store: store, hub: hub}
}

// Health godoc
// GET /api/health
// 200 when the database and the store answer, 503 otherwise. Public, so the
// body only says "ok" or "unavailable"; details go to the log.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:        "ok",
		Database:      "ok",
		Storage:       "ok",
		StorageDriver: h.store.Driver(),
		AdminsOnline:  h.hub.ConnectionCount(),
	}

	if err := h.db.Ping(ctx); err != nil {
		log.Printf("[health] database: %v", err)
		resp.Database = "unavailable"
		resp.Status = "degraded"
	}
	if err := h.store.Check(ctx); err != nil {
		log.Printf("[health] storage: %v", err)
		resp.Storage = "unavailable"
		resp.Status = "degraded"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	pkg.JSON(w, status, resp)
}
