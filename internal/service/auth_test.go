package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/repository"
)

func TestRegisterAndLogin(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	user, err := e.auth.Register(ctx, "alice", " Alice@Example.com ", testPassword)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Expected normalized email, got %s", user.Email)
	}
	if user.PasswordHash == testPassword {
		t.Error("Expected password to be hashed")
	}
	if e.mailer.last(t).to != "alice@example.com" {
		t.Errorf("Expected welcome email to alice@example.com")
	}

	goSkill := model.NewSkill("Go", "")
	err = e.skills.Create(ctx, goSkill)
	if err != nil {
		t.Fatalf("Failed to create skill: %v", err)
	}
	_, err = e.user.SetSkill(ctx, user.ID, goSkill.ID, model.LevelAdvanced)
	if err != nil {
		t.Fatalf("SetSkill failed: %v", err)
	}

	got, err := e.auth.Login(ctx, "ALICE@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Expected user %d, got %d", user.ID, got.ID)
	}
	if len(got.Skills) != 1 || got.Skills[0].Level != model.LevelAdvanced {
		t.Errorf("Expected login to load skills, got %+v", got.Skills)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.auth.Register(ctx, "alice", "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, wrongPassword := e.auth.Login(ctx, "alice@example.com", "Wrong-Horse-42")
	_, unknownEmail := e.auth.Login(ctx, "nobody@example.com", testPassword)

	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for wrong password, got %v", wrongPassword)
	}
	if !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown email, got %v", unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Errorf("Expected identical messages, got %q and %q", wrongPassword, unknownEmail)
	}
}

func TestRegisterRejects(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.auth.Register(ctx, "alice", "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name     string
		username string
		email    string
		password string
		want     error
	}{
		{"duplicate email", "alice2", "ALICE@example.com", testPassword, model.ErrConflict},
		{"weak password", "bob", "bob@example.com", "short", model.ErrInvalid},
		{"bad email", "bob", "bob", testPassword, model.ErrInvalid},
		{"bad username", "b", "bob@example.com", testPassword, model.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.auth.Register(ctx, tt.username, tt.email, tt.password)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	e := setup(t)
	user := &model.User{ID: 7, Role: model.RoleAdmin}

	token, expiry, err := e.auth.GenerateJWT(user)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	if !expiry.After(time.Now()) {
		t.Errorf("Expected expiry in the future, got %v", expiry)
	}

	claims, err := e.auth.VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT failed: %v", err)
	}
	if claims.UserID != 7 || claims.Role != model.RoleAdmin {
		t.Errorf("Expected user 7 as admin, got %d as %s", claims.UserID, claims.Role)
	}

	other := NewAuthService(nil, nil, nil, nil, "", "", "another-secret-16-chars", false, time.Hour, time.Hour)
	_, err = other.VerifyJWT(token)
	if !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Expected token from another secret to be rejected, got %v", err)
	}

	expired := NewAuthService(nil, nil, nil, nil, "", "", "test-secret-at-least-16", false, -time.Minute, time.Hour)
	old, _, err := expired.GenerateJWT(user)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	_, err = e.auth.VerifyJWT(old)
	if !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Expected expired token to be rejected, got %v", err)
	}
}

type countingTokens struct {
	repository.ResetTokenRepository
	lookups int
}

func (c *countingTokens) ByHash(ctx context.Context, hash string) (*model.ResetToken, error) {
	c.lookups++
	return c.ResetTokenRepository.ByHash(ctx, hash)
}

func requestReset(t *testing.T, e *testEnv, email string) string {
	t.Helper()
	err := e.auth.RequestPasswordReset(context.Background(), email)
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	m := tokenInMail.FindStringSubmatch(e.mailer.last(t).html)
	if m == nil {
		t.Fatalf("Expected a reset link in the email")
	}
	return m[1]
}

func TestResetTokenExpiry(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.createUser(t, "alice", model.RoleUser)

	issued := model.Now()
	e.auth.now = func() time.Time { return issued }
	plain := requestReset(t, e, "alice@example.com")

	stored, err := e.tokens.ByHash(ctx, HashToken(plain))
	if err != nil {
		t.Fatalf("Expected token to be stored by hash: %v", err)
	}
	if stored.TokenHash == plain {
		t.Error("Expected the plaintext token not to be stored")
	}

	tests := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"one second before expiry", stored.ExpiresAt.Add(-time.Second), true},
		{"at expiry", stored.ExpiresAt, false},
		{"one second after expiry", stored.ExpiresAt.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.auth.now = func() time.Time { return tt.at }
			_, err := e.auth.ValidateResetToken(ctx, plain)
			if tt.valid && err != nil {
				t.Errorf("Expected token to be valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidResetToken) {
				t.Errorf("Expected ErrInvalidResetToken, got %v", err)
			}
		})
	}

	if !stored.ExpiresAt.Equal(issued.Add(time.Hour)) {
		t.Errorf("Expected expiry one hour after issue, got %v", stored.ExpiresAt)
	}
}

func TestMalformedResetTokenSkipsDatabase(t *testing.T) {
	e := setup(t)
	counter := &countingTokens{ResetTokenRepository: e.tokens}
	e.auth.tokenRepository = counter

	for _, token := range []string{"", "abc", strings.Repeat("g", 64), strings.Repeat("A", 64), strings.Repeat("a", 65)} {
		_, err := e.auth.ValidateResetToken(context.Background(), token)
		if !errors.Is(err, ErrInvalidResetToken) {
			t.Errorf("Expected %q to be rejected, got %v", token, err)
		}
	}
	if counter.lookups != 0 {
		t.Errorf("Expected no database lookups, got %d", counter.lookups)
	}

	_, err := e.auth.ValidateResetToken(context.Background(), strings.Repeat("a", 64))
	if !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("Expected unknown token to be rejected, got %v", err)
	}
	if counter.lookups != 1 {
		t.Errorf("Expected one lookup for a well-formed token, got %d", counter.lookups)
	}
}

func TestResetPasswordIsSingleUse(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.auth.Register(ctx, "alice", "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	plain := requestReset(t, e, "alice@example.com")

	const newPassword = "Battery-Staple-7"
	err = e.auth.ResetPassword(ctx, plain, newPassword)
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	_, err = e.auth.Login(ctx, "alice@example.com", newPassword)
	if err != nil {
		t.Errorf("Expected login with the new password, got %v", err)
	}
	_, err = e.auth.Login(ctx, "alice@example.com", testPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected the old password to stop working, got %v", err)
	}

	err = e.auth.ResetPassword(ctx, plain, "Another-Pass-99")
	if !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("Expected second use to fail, got %v", err)
	}
	_, err = e.auth.ValidateResetToken(ctx, plain)
	if !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("Expected used token to be invalid, got %v", err)
	}
}

func TestResetPasswordPolicyKeepsToken(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.createUser(t, "alice", model.RoleUser)
	plain := requestReset(t, e, "alice@example.com")

	err := e.auth.ResetPassword(ctx, plain, "weak")
	var verr *model.ValidationError
	if !errors.As(err, &verr) || len(verr.Problems) == 0 {
		t.Fatalf("Expected itemized ValidationError, got %v", err)
	}

	_, err = e.auth.ValidateResetToken(ctx, plain)
	if err != nil {
		t.Errorf("Expected token to survive a rejected password, got %v", err)
	}
}

func TestRequestResetUnknownEmailIsSilent(t *testing.T) {
	e := setup(t)
	err := e.auth.RequestPasswordReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("Expected silent success, got %v", err)
	}
	if len(e.mailer.sent) != 0 {
		t.Errorf("Expected no email, got %d", len(e.mailer.sent))
	}
}

func TestNewResetRequestReplacesOldToken(t *testing.T) {
	e := setup(t)
	e.createUser(t, "alice", model.RoleUser)

	first := requestReset(t, e, "alice@example.com")
	second := requestReset(t, e, "alice@example.com")

	_, err := e.auth.ValidateResetToken(context.Background(), first)
	if !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("Expected the first token to be revoked, got %v", err)
	}
	_, err = e.auth.ValidateResetToken(context.Background(), second)
	if err != nil {
		t.Errorf("Expected the newest token to be valid, got %v", err)
	}
}
