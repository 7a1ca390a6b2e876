package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/zarrinbook/zarrinbook/internal/domain"
	"github.com/zarrinbook/zarrinbook/internal/service"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type mockAuthStore struct {
	user *domain.User
	cred *domain.Credential

	tokens      map[string]*domain.RefreshToken
	credUpdates []map[string]any
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, &domain.ErrNotFound{Resource: "user", ID: email}
	}
	return m.user, nil
}

func (m *mockAuthStore) GetUserByID(_ context.Context, userID string) (*domain.User, error) {
	if m.user == nil || m.user.ID != userID {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	return m.user, nil
}

func (m *mockAuthStore) GetCredentials(_ context.Context, userID string) (*domain.Credential, error) {
	if m.cred == nil {
		return nil, &domain.ErrNotFound{Resource: "credentials", ID: userID}
	}
	return m.cred, nil
}

func (m *mockAuthStore) UpdateCredentials(_ context.Context, _ string, updates map[string]any) error {
	m.credUpdates = append(m.credUpdates, updates)
	return nil
}

func (m *mockAuthStore) StoreRefreshToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	if m.tokens == nil {
		m.tokens = make(map[string]*domain.RefreshToken)
	}
	m.tokens[tokenHash] = &domain.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (m *mockAuthStore) GetRefreshToken(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	if t, ok := m.tokens[tokenHash]; ok {
		return t, nil
	}
	return nil, &domain.ErrNotFound{Resource: "refresh token", ID: tokenHash}
}

func (m *mockAuthStore) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	if t, ok := m.tokens[tokenHash]; ok {
		t.Revoked = true
	}
	return nil
}

func (m *mockAuthStore) RevokeAllRefreshTokens(_ context.Context, userID string) error {
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func newAuthFixture(t *testing.T, password string) (*mockAuthStore, *service.AuthService) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	store := &mockAuthStore{
		user: &domain.User{
			ID:       "user-1",
			TenantID: "t-1",
			Email:    "owner@example.com",
			Name:     "Owner",
			Role:     domain.RoleTenant,
			Status:   "active",
		},
		cred:   &domain.Credential{UserID: "user-1", PasswordHash: string(hash)},
		tokens: make(map[string]*domain.RefreshToken),
	}
	svc := service.NewAuthService(store, "test-secret", time.Minute, time.Hour, zap.NewNop())
	return store, svc
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	_, svc := newAuthFixture(t, "hunter2hunter2")

	resp, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "owner@example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if resp.TenantID != "t-1" || resp.Role != domain.RoleTenant {
		t.Errorf("unexpected identity fields: tenant='%s' role='%s'", resp.TenantID, resp.Role)
	}

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("expected valid access token, got %v", err)
	}
	if claims.Sub != "user-1" || claims.TenantID != "t-1" {
		t.Errorf("unexpected claims: sub='%s' tenant='%s'", claims.Sub, claims.TenantID)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	_, svc := newAuthFixture(t, "hunter2hunter2")

	_, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogin_WrongPasswordCountsAttempt(t *testing.T) {
	store, svc := newAuthFixture(t, "hunter2hunter2")

	_, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "owner@example.com",
		Password: "wrong",
	})
	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	if len(store.credUpdates) != 1 {
		t.Fatalf("expected 1 credential update, got %d", len(store.credUpdates))
	}
	if got := store.credUpdates[0]["failed_attempts"]; got != 1 {
		t.Errorf("expected failed_attempts=1, got %v", got)
	}
}

func TestLogin_LocksAfterMaxAttempts(t *testing.T) {
	store, svc := newAuthFixture(t, "hunter2hunter2")
	store.cred.FailedAttempts = 4

	_, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "owner@example.com",
		Password: "wrong",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if len(store.credUpdates) != 1 {
		t.Fatalf("expected 1 credential update, got %d", len(store.credUpdates))
	}
	if _, locked := store.credUpdates[0]["locked_until"]; !locked {
		t.Error("expected lockout to be recorded on the fifth failure")
	}
}

func TestLogin_RejectedWhileLocked(t *testing.T) {
	store, svc := newAuthFixture(t, "hunter2hunter2")
	lockedUntil := time.Now().Add(10 * time.Minute)
	store.cred.LockedUntil = &lockedUntil

	_, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "owner@example.com",
		Password: "hunter2hunter2",
	})
	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected unauthorized while locked, got %v", err)
	}
}

func TestLogin_DisabledUser(t *testing.T) {
	store, svc := newAuthFixture(t, "hunter2hunter2")
	store.user.Status = "disabled"

	_, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "owner@example.com",
		Password: "hunter2hunter2",
	})
	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

// --- Refresh ---

func TestRefresh_RotatesToken(t *testing.T) {
	store, svc := newAuthFixture(t, "hunter2hunter2")

	login, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "owner@example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), &domain.RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("expected a new refresh token on rotation")
	}

	old := store.tokens[sha256Hex(login.RefreshToken)]
	if old == nil || !old.Revoked {
		t.Error("expected the used refresh token to be revoked")
	}

	// Re-using the rotated-out token must fail.
	_, err = svc.Refresh(context.Background(), &domain.RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected unauthorized on token re-use, got %v", err)
	}
}

func TestRefresh_ExpiredToken(t *testing.T) {
	store, svc := newAuthFixture(t, "hunter2hunter2")

	raw := "expired-refresh-token"
	store.tokens[sha256Hex(raw)] = &domain.RefreshToken{
		UserID:    "user-1",
		TokenHash: sha256Hex(raw),
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	_, err := svc.Refresh(context.Background(), &domain.RefreshRequest{RefreshToken: raw})
	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if !store.tokens[sha256Hex(raw)].Revoked {
		t.Error("expected the expired token to be revoked")
	}
}

// --- Logout & password ---

func TestLogout_RevokesAllTokens(t *testing.T) {
	store, svc := newAuthFixture(t, "hunter2hunter2")

	login, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "owner@example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(context.Background(), "user-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !store.tokens[sha256Hex(login.RefreshToken)].Revoked {
		t.Error("expected refresh token to be revoked on logout")
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	_, svc := newAuthFixture(t, "hunter2hunter2")

	err := svc.ChangePassword(context.Background(), "user-1", &domain.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "a-new-password",
	})
	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestChangePassword_TooShort(t *testing.T) {
	_, svc := newAuthFixture(t, "hunter2hunter2")

	err := svc.ChangePassword(context.Background(), "user-1", &domain.ChangePasswordRequest{
		CurrentPassword: "hunter2hunter2",
		NewPassword:     "short",
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChangePassword_RevokesSessions(t *testing.T) {
	store, svc := newAuthFixture(t, "hunter2hunter2")

	login, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email:    "owner@example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), "user-1", &domain.ChangePasswordRequest{
		CurrentPassword: "hunter2hunter2",
		NewPassword:     "a-new-password",
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !store.tokens[sha256Hex(login.RefreshToken)].Revoked {
		t.Error("expected refresh tokens to be revoked after password change")
	}
}

// --- Token validation ---

func TestValidateAccessToken_Garbage(t *testing.T) {
	_, svc := newAuthFixture(t, "hunter2hunter2")

	if _, err := svc.ValidateAccessToken("not-a-jwt"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	_, signer := newAuthFixture(t, "hunter2hunter2")

	login, err := signer.Login(context.Background(), &domain.LoginRequest{
		Email:    "owner@example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	other := service.NewAuthService(&mockAuthStore{}, "different-secret", time.Minute, time.Hour, zap.NewNop())
	if _, err := other.ValidateAccessToken(login.AccessToken); err == nil {
		t.Fatal("expected error for token signed with another secret")
	}
}
