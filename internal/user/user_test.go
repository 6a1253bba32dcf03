// AngelaMos | 2026
// user_test.go

package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/course-portal/internal/auth"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

type memoryRepo struct {
	mu    sync.Mutex
	users map[string]*User
	clock time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users: map[string]*User{},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRepo) add(name string, admin bool) *User {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clock = m.clock.Add(time.Minute)
	u := &User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     strings.ToLower(name) + "@example.com",
		IsAdmin:   admin,
		CreatedAt: m.clock,
		UpdatedAt: m.clock,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp
}

func (m *memoryRepo) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return core.ErrDuplicateKey
		}
	}
	m.clock = m.clock.Add(time.Minute)
	user.CreatedAt, user.UpdatedAt = m.clock, m.clock
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memoryRepo) FirstAdmin(_ context.Context) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first *User
	for _, u := range m.users {
		if u.IsAdmin && (first == nil || u.CreatedAt.Before(first.CreatedAt)) {
			first = u
		}
	}
	if first == nil {
		return nil, core.ErrNotFound
	}
	cp := *first
	return &cp, nil
}

func (m *memoryRepo) Update(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, u := range m.users {
		if id != user.ID && strings.EqualFold(u.Email, user.Email) {
			return core.ErrDuplicateKey
		}
	}
	if _, ok := m.users[user.ID]; !ok {
		return core.ErrNotFound
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryRepo) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return core.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

// WithAccountLock runs fn against a private copy of the table and keeps
// the copy only when fn succeeds.
func (m *memoryRepo) WithAccountLock(_ context.Context, fn func(tx AccountTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryAccountTx{users: make(map[string]*User, len(m.users))}
	for id, u := range m.users {
		cp := *u
		tx.users[id] = &cp
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.users = tx.users
	return nil
}

type memoryAccountTx struct {
	users map[string]*User
}

func (tx *memoryAccountTx) LockUser(_ context.Context, id string) (*User, error) {
	u, ok := tx.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (tx *memoryAccountTx) CountOtherAdmins(_ context.Context, excludeID string) (int, error) {
	n := 0
	for _, u := range tx.users {
		if u.IsAdmin && u.ID != excludeID {
			n++
		}
	}
	return n, nil
}

func (tx *memoryAccountTx) SaveFlags(_ context.Context, user *User) error {
	u, ok := tx.users[user.ID]
	if !ok {
		return core.ErrNotFound
	}
	u.IsPremium, u.IsAdmin = user.IsPremium, user.IsAdmin
	return nil
}

func (tx *memoryAccountTx) Delete(_ context.Context, id string) error {
	if _, ok := tx.users[id]; !ok {
		return core.ErrNotFound
	}
	delete(tx.users, id)
	return nil
}

func (m *memoryRepo) List(_ context.Context, _ ListUsersParams) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) Counts(_ context.Context) (*Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var c Counts
	for _, u := range m.users {
		c.Total++
		if u.IsPremium {
			c.Premium++
		}
		if u.IsAdmin {
			c.Admins++
		}
	}
	return &c, nil
}

type recordingIssuer struct {
	issued []*auth.UserInfo
}

func (r *recordingIssuer) IssueSession(w http.ResponseWriter, u *auth.UserInfo) (*auth.IssuedToken, error) {
	r.issued = append(r.issued, u)
	http.SetCookie(w, &http.Cookie{Name: "session_token", Value: "reissued"})
	return &auth.IssuedToken{Token: "reissued"}, nil
}

func boolPtr(b bool) *bool { return &b }

func TestAdminCannotDemoteOrDeleteSelf(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	admin := repo.add("Root", true)
	repo.add("Second", true)

	_, err := svc.UpdateFlags(ctx, admin.ID, admin.ID, UpdateFlagsRequest{IsAdmin: boolPtr(false)})
	assert.ErrorIs(t, err, ErrSelfDemotion)

	err = svc.DeleteUser(ctx, admin.ID, admin.ID)
	assert.ErrorIs(t, err, ErrSelfDeletion)

	updated, err := svc.UpdateFlags(ctx, admin.ID, admin.ID, UpdateFlagsRequest{IsPremium: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.IsPremium)
	assert.True(t, updated.IsAdmin)
}

func TestDeleteAdmins(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	first := repo.add("First", true)
	second := repo.add("Second", true)

	require.NoError(t, svc.DeleteUser(ctx, first.ID, second.ID), "non-last admin can be deleted")

	other := repo.add("Other", false)
	_, err := svc.UpdateFlags(ctx, other.ID, first.ID, UpdateFlagsRequest{IsAdmin: boolPtr(false)})
	assert.ErrorIs(t, err, ErrLastAdmin)

	err = svc.DeleteUser(ctx, other.ID, first.ID)
	assert.ErrorIs(t, err, ErrLastAdmin)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.GetUser(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = svc.DeleteUser(ctx, uuid.NewString(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDesignatedAdminIsEarliest(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.DesignatedAdmin(ctx)
	assert.ErrorIs(t, err, core.ErrNotFound)

	repo.add("Student", false)
	first := repo.add("First", true)
	repo.add("Later", true)

	admin, err := svc.DesignatedAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, admin.ID)
	assert.True(t, admin.IsAdmin)
}

func TestUpdateProfile(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	alice := repo.add("Alice", false)
	repo.add("Bob", false)

	taken := "BOB@example.com"
	_, err := svc.UpdateProfile(ctx, alice.ID, UpdateProfileRequest{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	name := "  Alice Liddell "
	email := "Alice.L@Example.com"
	password := "new-secret"
	updated, err := svc.UpdateProfile(ctx, alice.ID, UpdateProfileRequest{
		Name:     &name,
		Email:    &email,
		Password: &password,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", updated.Name)
	assert.Equal(t, "alice.l@example.com", updated.Email)

	ok, err := core.VerifyPassword(password, updated.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func newTestRouter(svc *Service, issuer SessionIssuer, claims *middleware.SessionClaims) http.Handler {
	withClaims := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithClaims(r.Context(), claims)))
		})
	}

	h := NewHandler(svc, issuer)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r, withClaims)
		h.RegisterAdminRoutes(r, withClaims, middleware.RequireAdmin)
	})
	return r
}

func adminClaims(u *User) *middleware.SessionClaims {
	return &middleware.SessionClaims{
		UserID:  u.ID,
		Email:   u.Email,
		Role:    middleware.RoleAdmin,
		IsAdmin: true,
	}
}

func TestAdminHandlers(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	admin := repo.add("Root", true)
	student := repo.add("Student", false)
	router := newTestRouter(svc, &recordingIssuer{}, adminClaims(admin))

	t.Run("self deletion is a conflict", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/users/"+admin.ID, nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body core.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "CONFLICT", body.Code)
		assert.Equal(t, ErrSelfDeletion.Error(), body.Message)
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("grant premium", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/users/"+student.ID,
			strings.NewReader(`{"isPremium":true}`))
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body UserResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.True(t, body.IsPremium)
		assert.False(t, body.IsAdmin)
	})

	t.Run("delete student", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/users/"+student.ID, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	})
}

func TestAdminRoutesRejectNonAdmin(t *testing.T) {
	repo := newMemoryRepo()
	student := repo.add("Student", false)

	router := newTestRouter(NewService(repo), &recordingIssuer{}, &middleware.SessionClaims{
		UserID: student.ID,
		Role:   middleware.RoleUser,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProfileUpdateReissuesSession(t *testing.T) {
	repo := newMemoryRepo()
	student := repo.add("Student", false)
	issuer := &recordingIssuer{}

	router := newTestRouter(NewService(repo), issuer, &middleware.SessionClaims{
		UserID: student.ID,
		Role:   middleware.RoleUser,
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/users/profile", strings.NewReader(`{"name":"Renamed"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, issuer.issued, 1)
	assert.Equal(t, "Renamed", issuer.issued[0].Name)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "session_token=reissued")
}

func TestRefusedDemotionLeavesAccountUntouched(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	only := repo.add("Only", true)
	actor := repo.add("Actor", false)

	_, err := svc.UpdateFlags(ctx, actor.ID, only.ID, UpdateFlagsRequest{
		IsPremium: boolPtr(true),
		IsAdmin:   boolPtr(false),
	})
	require.ErrorIs(t, err, ErrLastAdmin)

	stored, err := repo.GetByID(ctx, only.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAdmin)
	assert.False(t, stored.IsPremium)

	promoted, err := svc.UpdateFlags(ctx, only.ID, actor.ID, UpdateFlagsRequest{IsAdmin: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)

	demoted, err := svc.UpdateFlags(ctx, actor.ID, only.ID, UpdateFlagsRequest{IsAdmin: boolPtr(false)})
	require.NoError(t, err, "demotion is allowed once another admin exists")
	assert.False(t, demoted.IsAdmin)
}

func TestBlankNameIsRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, "   ", "blank@example.com", "hash")
	assert.ErrorIs(t, err, ErrBlankName)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	alice := repo.add("Alice", false)
	blank := " \t "
	_, err = svc.UpdateProfile(ctx, alice.ID, UpdateProfileRequest{Name: &blank})
	assert.ErrorIs(t, err, ErrBlankName)

	stored, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.Name)

	router := newTestRouter(svc, &recordingIssuer{}, &middleware.SessionClaims{
		UserID: alice.ID,
		Role:   middleware.RoleUser,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/users/profile",
		strings.NewReader(`{"name":"   "}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body core.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "name is required", body.Message)
}
