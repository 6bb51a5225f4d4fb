package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/taskbarter/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockValidator struct {
	userID uuid.UUID
	role   string
	err    error
}

func (m mockValidator) ValidateToken(_ context.Context, _ string) (uuid.UUID, string, error) {
	return m.userID, m.role, m.err
}

type mockLookup struct {
	users map[uuid.UUID]*models.User
}

func (m mockLookup) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

// echoUser writes 200 and asserts the user landed in context.
func echoUser(t *testing.T, want uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := UserFromCtx(r.Context())
		if u == nil {
			t.Error("user missing from context")
		} else if u.ID != want {
			t.Errorf("context user: got %s, want %s", u.ID, want)
		}
		w.WriteHeader(http.StatusOK)
	})
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestAuth_ValidToken(t *testing.T) {
	userID := uuid.New()
	u := &models.User{ID: userID, Role: models.RoleUser}

	handler := Auth(
		mockValidator{userID: userID, role: models.RoleUser},
		mockLookup{users: map[uuid.UUID]*models.User{userID: u}},
	)(echoUser(t, userID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	handler := Auth(mockValidator{}, mockLookup{})(echoUser(t, uuid.Nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	handler := Auth(
		mockValidator{err: errors.New("token expired")},
		mockLookup{},
	)(echoUser(t, uuid.Nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuth_BannedUser(t *testing.T) {
	userID := uuid.New()
	u := &models.User{ID: userID, IsBanned: true}

	handler := Auth(
		mockValidator{userID: userID},
		mockLookup{users: map[uuid.UUID]*models.User{userID: u}},
	)(echoUser(t, userID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for banned user, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// RequireAdmin
// ---------------------------------------------------------------------------

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name string
		user *models.User
		want int
	}{
		{"admin passes", &models.User{ID: uuid.New(), Role: models.RoleAdmin}, http.StatusOK},
		{"plain user rejected", &models.User{ID: uuid.New(), Role: models.RoleUser}, http.StatusForbidden},
		{"no user rejected", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.user != nil {
				req = req.WithContext(WithUser(req.Context(), tc.user))
			}
			rec := httptest.NewRecorder()
			RequireAdmin(ok).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("got %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
