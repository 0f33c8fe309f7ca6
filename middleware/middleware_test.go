package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/khakishop/server/database"
	"github.com/khakishop/server/handlers"
	"github.com/khakishop/server/models"
	"github.com/khakishop/server/repository"
	"github.com/khakishop/server/services"
)

type env struct {
	auth       *AuthMiddleware
	admin      *AdminMiddleware
	adminToken string
	staffToken string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := repository.NewSQLiteUserRepo(db.Conn)
	authService := services.NewAuthService(users, repository.NewSQLiteSessionRepo(db.Conn), "mw-secret", 15, 7)

	_, err = authService.EnsureAdmin(ctx, &models.CreateUserRequest{Username: "owner", Password: "curtains-123"})
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("staff-pass-1"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, users.Create(ctx, &models.User{Username: "staff", PasswordHash: string(hash)}))

	login := func(username, password string) string {
		tokens, err := authService.Login(ctx, &models.LoginRequest{Username: username, Password: password})
		require.NoError(t, err)
		return tokens.AccessToken
	}

	return &env{
		auth:       NewAuthMiddleware(authService, users),
		admin:      NewAdminMiddleware(),
		adminToken: login("owner", "curtains-123"),
		staffToken: login("staff", "staff-pass-1"),
	}
}

// whoami answers the username found in the context.
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(handlers.UserContextKey).(*models.User)
	if user.PasswordHash != "" {
		http.Error(w, "hash leaked", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(user.Username))
})

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/images", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware_Require(t *testing.T) {
	e := newEnv(t)
	h := e.auth.Require(whoami)

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
		wantBody      string
	}{
		{"missing header", "", http.StatusUnauthorized, "authorization header required"},
		{"wrong scheme", "Basic b3duZXI6eA==", http.StatusUnauthorized, "Bearer"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, ""},
		{"admin", "Bearer " + e.adminToken, http.StatusOK, "owner"},
		{"staff", "Bearer " + e.staffToken, http.StatusOK, "staff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.authorization)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestAdminMiddleware_Require(t *testing.T) {
	e := newEnv(t)
	h := e.auth.Require(e.admin.Require(whoami))

	rec := serve(h, "Bearer "+e.adminToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, "Bearer "+e.staffToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin access required")

	// Without AuthMiddleware in front there is no user.
	rec = serve(e.admin.Require(whoami), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
