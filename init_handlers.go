// Package main: handler layer setup.
package main

import (
	"github.com/khakishop/server/config"
	"github.com/khakishop/server/database"
	"github.com/khakishop/server/handlers"
	"github.com/khakishop/server/pkg/storage"
	"github.com/khakishop/server/ws"
)

// Handlers holds every handler instance.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Image    *handlers.ImageHandler
	Upload   *handlers.UploadHandler
	Category *handlers.CategoryHandler
	Product  *handlers.ProductHandler
	Health   *handlers.HealthHandler
	File     *handlers.FileHandler
	WS       *ws.Handler
}

// initHandlers builds the handlers over the services.
func initHandlers(svcs *Services, limiters *RateLimiters, db *database.DB, store storage.Store, hub *ws.Hub, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:     handlers.NewAuthHandler(svcs.Auth, limiters.Login, cfg.Language),
		Image:    handlers.NewImageHandler(svcs.Image),
		Upload:   handlers.NewUploadHandler(svcs.Upload, limiters.Upload, cfg.Upload.MaxSize, cfg.Upload.MaxFiles, cfg.Language),
		Category: handlers.NewCategoryHandler(svcs.Category, cfg.Language),
		Product:  handlers.NewProductHandler(svcs.Product),
		Health:   handlers.NewHealthHandler(db, store, hub),
		File:     handlers.NewFileHandler(store),
		WS:       ws.NewHandler(hub, svcs.Auth, cfg.CORS.AllowedOrigins),
	}
}
