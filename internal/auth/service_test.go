package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/taskbarter/backend/internal/models"
)

type mockUserStore struct {
	byEmail map[string]*models.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{byEmail: make(map[string]*models.User)}
}

func (m *mockUserStore) Create(_ context.Context, u *models.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return errors.New("duplicate")
	}
	cp := *u
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *mockUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *u
	return &cp, nil
}

func TestRegisterLoginValidate(t *testing.T) {
	store := newMockUserStore()
	svc := NewService(store)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Alice", "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Credits != models.StartingCredits {
		t.Errorf("starting credits: got %d, want %d", u.Credits, models.StartingCredits)
	}
	if u.Role != models.RoleUser {
		t.Errorf("role: got %q, want user", u.Role)
	}
	if u.PasswordHash == "hunter22" {
		t.Error("password must not be stored in plaintext")
	}

	token, err := svc.Login(ctx, "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, role, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if id != u.ID {
		t.Errorf("token subject: got %s, want %s", id, u.ID)
	}
	if role != models.RoleUser {
		t.Errorf("token role: got %q, want user", role)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	store := newMockUserStore()
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Alice", "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for bad password, got: %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got: %v", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewService(newMockUserStore())
	if _, _, err := svc.ValidateToken(context.Background(), "not.a.jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}
