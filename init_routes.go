// Package main: HTTP route registration.
//
// Chain helpers:
//   - auth: JWT validation
//   - admin: auth + admin gate
package main

import (
	"net/http"

	"github.com/khakishop/server/middleware"
	"github.com/khakishop/server/repository"
	"github.com/khakishop/server/services"
	"github.com/khakishop/server/static"
)

// initRoutes wires the middleware chains and registers every endpoint.
//
// Literal segments win over wildcards in the mux, so
// "/api/admin/images/reorder" never reaches the {id} routes.
func initRoutes(
	mux *http.ServeMux,
	h *Handlers,
	authService services.AuthService,
	userRepo repository.UserRepository,
) {
	// ─── Middleware ───
	authMw := middleware.NewAuthMiddleware(authService, userRepo)
	adminMw := middleware.NewAdminMiddleware()

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(handler)
	}
	admin := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(adminMw.Require(handler))
	}

	// ─── Public ───
	mux.HandleFunc("GET /api/health", h.Health.Health)

	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	mux.HandleFunc("POST /api/auth/logout", h.Auth.Logout)
	mux.Handle("GET /api/auth/me", auth(h.Auth.Me))

	mux.HandleFunc("GET /api/categories", h.Category.List)
	mux.HandleFunc("GET /api/categories/{slug}", h.Category.Get)

	mux.HandleFunc("GET /api/products/{category}", h.Product.ListPublished)
	mux.HandleFunc("GET /api/products/{category}/{slug}", h.Product.GetPublished)

	mux.HandleFunc("GET /api/uploads/{key}", h.File.Serve)

	// ─── Admin: images ───
	mux.Handle("GET /api/admin/images", admin(h.Image.List))
	mux.Handle("PATCH /api/admin/images/reorder", admin(h.Image.Reorder))
	mux.Handle("GET /api/admin/images/{id}", admin(h.Image.Get))
	mux.Handle("PATCH /api/admin/images/{id}", admin(h.Image.Update))
	mux.Handle("PATCH /api/admin/images/{id}/protection", admin(h.Image.SetProtection))
	mux.Handle("DELETE /api/admin/images/{id}", admin(h.Image.Delete))

	mux.Handle("POST /api/admin/upload-image", admin(h.Upload.Upload))
	mux.Handle("POST /api/admin/upload-images", admin(h.Upload.UploadBatch))

	// ─── Admin: products ───
	mux.Handle("GET /api/admin/products", admin(h.Product.ListAll))
	mux.Handle("POST /api/admin/products", admin(h.Product.Create))
	mux.Handle("PATCH /api/admin/products/{id}", admin(h.Product.Update))
	mux.Handle("DELETE /api/admin/products/{id}", admin(h.Product.Delete))

	// ─── WebSocket ───
	// Browsers cannot set headers on the upgrade request, so the token
	// travels as ?token= and the ws handler validates it itself.
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)

	// ─── Storefront ───
	mux.Handle("GET /", static.Handler())
}
