package middleware

import (
	"net/http"

	"github.com/khakishop/server/handlers"
	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
)

// AdminMiddleware gates the admin API. It runs after AuthMiddleware, so the
// user is already in the context.
//
//	authMw.Require(adminMw.Require(http.HandlerFunc(imageHandler.List)))
type AdminMiddleware struct{}

// NewAdminMiddleware is the constructor.
func NewAdminMiddleware() *AdminMiddleware {
	return &AdminMiddleware{}
}

// Require answers 403 unless the context user is an admin.
func (m *AdminMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(handlers.UserContextKey).(*models.User)
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
			return
		}

		if !user.IsAdmin {
			pkg.ErrorWithMessage(w, http.StatusForbidden, "admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
