// Package main: service layer setup.
//
// The OrderAllocator is shared by the upload and image services so that
// appends from uploads and moves between buckets never take the same
// display_order slot.
package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/khakishop/server/config"
	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg/cache"
	"github.com/khakishop/server/pkg/ratelimit"
	"github.com/khakishop/server/pkg/storage"
	"github.com/khakishop/server/services"
	"github.com/khakishop/server/ws"
)

const (
	loginAttempts = 5
	loginWindow   = 2 * time.Minute

	uploadsPerWindow = 60
	uploadWindow     = time.Minute
	uploadCooldown   = time.Minute

	productListingTTL = 30 * time.Second
)

// Services holds every service instance.
type Services struct {
	Auth     services.AuthService
	Image    services.ImageService
	Upload   services.UploadService
	Category services.CategoryService
	Product  services.ProductService
}

// RateLimiters holds the limiters and caches that own a cleanup goroutine
// and must be closed on shutdown.
type RateLimiters struct {
	Login    *ratelimit.LoginRateLimiter
	Upload   *ratelimit.UploadRateLimiter
	Listings *services.ProductCache
}

// Close stops every cleanup goroutine.
func (l *RateLimiters) Close() {
	l.Login.Close()
	l.Upload.Close()
	l.Listings.Close()
}

// initServices builds the services, the limiters and the listing cache.
func initServices(db *sql.DB, repos *Repositories, store storage.Store, hub ws.EventPublisher, cfg *config.Config) (*Services, *RateLimiters) {
	limiters := &RateLimiters{
		Login:    ratelimit.NewLoginRateLimiter(loginAttempts, loginWindow),
		Upload:   ratelimit.NewUploadRateLimiter(uploadsPerWindow, uploadWindow, uploadCooldown),
		Listings: cache.New[string, []models.Product](productListingTTL, time.Minute),
	}

	orders := services.NewOrderAllocator(repos.Image)

	svcs := &Services{
		Auth: services.NewAuthService(
			repos.User,
			repos.Session,
			cfg.JWT.Secret,
			cfg.JWT.AccessTokenExpiry,
			cfg.JWT.RefreshTokenExpiry,
		),
		Image:    services.NewImageService(db, repos.Image, store, orders, hub, limiters.Listings),
		Upload:   services.NewUploadService(repos.Image, store, orders, hub, cfg.Upload.MaxSize, cfg.Upload.MaxFiles),
		Category: services.NewCategoryService(repos.Image),
		Product:  services.NewProductService(repos.Product, hub, limiters.Listings),
	}

	return svcs, limiters
}

// ensureAdmin creates the bootstrap admin when ADMIN_USERNAME and
// ADMIN_PASSWORD are set and the account does not exist yet.
func ensureAdmin(ctx context.Context, auth services.AuthService, cfg config.AdminConfig) error {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}

	created, err := auth.EnsureAdmin(ctx, &models.CreateUserRequest{
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return err
	}
	if created {
		log.Printf("[main] bootstrap admin %q created", cfg.Username)
	}
	return nil
}
