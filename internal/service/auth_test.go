package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/articles-api/internal/apperror"
	"github.com/sakif/articles-api/internal/auth"
)

// newTestAuthService returns an AuthService wired with fake dependencies.
func newTestAuthService(t *testing.T, repo *fakeUserRepo) (*AuthService, *auth.TokenService) {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	// Cost 4 is the bcrypt minimum; keeps the tests fast.
	ps := auth.NewPasswordService(4)

	return NewAuthService(repo, ts, ps, testLogger()), ts
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_ThenLogin_TokenSubjectIsUserID(t *testing.T) {
	repo := newFakeUserRepo()
	svc, ts := newTestAuthService(t, repo)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.User.ID == 0 {
		t.Fatal("Register() did not assign a user ID")
	}

	login, err := svc.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	for name, token := range map[string]string{"register": reg.Token, "login": login.Token} {
		id, err := ts.Validate(token)
		if err != nil {
			t.Fatalf("%s token invalid: %v", name, err)
		}
		if id.ID != reg.User.ID || id.Username != "alice" {
			t.Errorf("%s token identity = %+v, want {%d alice}", name, id, reg.User.ID)
		}
	}
}

func TestRegister_StoresHashNotPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)

	if _, err := svc.Register(context.Background(), "alice", "s3cret"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	stored := repo.byName["alice"].PasswordHash
	if stored == "s3cret" || !strings.HasPrefix(stored, "$2") {
		t.Errorf("stored password = %q, want a bcrypt hash", stored)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "one"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := svc.Register(ctx, "alice", "two")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Register() error = %v, want ErrConflict", err)
	}
}

func TestRegister_RacingDuplicateIsStillConflict(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "one"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	// The existence check misses; the unique constraint catches it.
	repo.existsAlwaysFalse = true
	_, err := svc.Register(ctx, "alice", "two")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Register() error = %v, want ErrConflict", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())

	tests := []struct {
		name, username, password string
	}{
		{"empty username", "", "pw"},
		{"blank username", "   ", "pw"},
		{"empty password", "alice", ""},
		{"password over 72 bytes", "alice", strings.Repeat("p", 73)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRegister_RepositoryFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.existsErr = errors.New("db down")
	svc, _ := newTestAuthService(t, repo)

	_, err := svc.Register(context.Background(), "alice", "pw")
	if err == nil {
		t.Fatal("Register() should fail when the repository fails")
	}
	if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Register() error = %v, should not look like a client error", err)
	}
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin_UnknownUserAndWrongPasswordLookTheSame(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "right"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, unknownErr := svc.Login(ctx, "nobody", "right")
	_, wrongErr := svc.Login(ctx, "alice", "wrong")

	for name, err := range map[string]error{"unknown user": unknownErr, "wrong password": wrongErr} {
		if !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("%s: error = %v, want ErrUnauthorized", name, err)
		}
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Errorf("messages differ: %q vs %q", unknownErr.Error(), wrongErr.Error())
	}
}

func TestLogin_TrimsUsername(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, " alice ", "pw"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

// failingHasher fails every hash the way a broken entropy source would.
type failingHasher struct{ *auth.PasswordService }

func (failingHasher) Hash(string) (string, error) {
	return "", errors.New("crypto/rand: read failed")
}

func TestRegister_HashFailureIsInternal(t *testing.T) {
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, ts, failingHasher{auth.NewPasswordService(4)}, testLogger())

	_, err = svc.Register(context.Background(), "alice", "s3cret")
	if err == nil {
		t.Fatal("Register() error = nil, want hashing error")
	}
	if errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Register() error = %v, must not be a validation error", err)
	}
	if _, ok := repo.byName["alice"]; ok {
		t.Error("user stored despite hashing failure")
	}
}

// =========================================================================
// CURRENT USER TESTS
// =========================================================================

func TestCurrentUser(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	reg, err := svc.Register(ctx, "dave", "pw")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	user, err := svc.CurrentUser(ctx, &auth.Identity{ID: reg.User.ID, Username: "dave"})
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.Username != "dave" {
		t.Errorf("Username = %q, want dave", user.Username)
	}

	_, err = svc.CurrentUser(ctx, &auth.Identity{ID: 999, Username: "ghost"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CurrentUser(unknown) error = %v, want ErrNotFound", err)
	}
}
