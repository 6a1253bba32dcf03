// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/course-portal/internal/middleware"
	"github.com/carterperez-dev/course-portal/internal/user"
)

func withClaims(claims *middleware.SessionClaims) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithClaims(r.Context(), claims)))
		})
	}
}

func TestOverview(t *testing.T) {
	h := NewHandler(HandlerConfig{
		DBPing:    func(context.Context) error { return nil },
		RedisPing: func(context.Context) error { return errors.New("down") },
		UserCounts: func(context.Context) (*user.Counts, error) {
			return &user.Counts{Total: 5, Premium: 2, Admins: 1}, nil
		},
		CountClasses:       func(context.Context) (int, error) { return 3, nil },
		CountApplications:  func(context.Context) (int, error) { return 0, errors.New("boom") },
		CountConversations: func(context.Context) (int, error) { return 4, nil },
	})

	r := chi.NewRouter()
	h.RegisterRoutes(r,
		withClaims(&middleware.SessionClaims{UserID: "a", Role: middleware.RoleAdmin, IsAdmin: true}),
		middleware.RequireAdmin,
	)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body OverviewResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	assert.Equal(t, 5, body.Portal.Users)
	assert.Equal(t, 2, body.Portal.PremiumUsers)
	assert.Equal(t, 1, body.Portal.Admins)
	assert.Equal(t, 3, body.Portal.Other["classes"])
	assert.Equal(t, -1, body.Portal.Other["pending_applications"])
	assert.Equal(t, 4, body.Portal.Other["conversations"])
	assert.True(t, body.Database.Healthy)
	assert.False(t, body.Redis.Healthy)
	assert.NotEmpty(t, body.Runtime.GoVersion)
}

func TestOverviewRequiresAdmin(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(HandlerConfig{}).RegisterRoutes(r,
		withClaims(&middleware.SessionClaims{UserID: "u", Role: middleware.RoleUser}),
		middleware.RequireAdmin,
	)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
