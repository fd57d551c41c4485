package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/crud"
	"github.com/templui/skillfolio/internal/model"
	"github.com/templui/skillfolio/internal/repository"
	"github.com/templui/skillfolio/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("reset link is invalid or has expired")
	ErrInvalidSession     = errors.New("invalid session")
)

const (
	resetTokenBytes = 32

	// SessionCookieName holds the signed session token.
	SessionCookieName = "auth_token"
)

var resetTokenRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// dummyHash is compared against when the email is unknown so both login
// failures cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("skillfolio-dummy-password"), bcrypt.DefaultCost)

// SessionClaims identify the current user in a session token.
type SessionClaims struct {
	UserID int64      `json:"user_id"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	db               *sqlx.DB
	userRepository   repository.UserRepository
	tokenRepository  repository.ResetTokenRepository
	mailer           Mailer
	appURL           string
	appName          string
	jwtSecret        []byte
	isProduction     bool
	jwtExpiry        time.Duration
	resetTokenExpiry time.Duration
	now              func() time.Time
}

func NewAuthService(
	db *sqlx.DB,
	userRepository repository.UserRepository,
	tokenRepository repository.ResetTokenRepository,
	mailer Mailer,
	appURL string,
	appName string,
	jwtSecret string,
	isProduction bool,
	jwtExpiry time.Duration,
	resetTokenExpiry time.Duration,
) *AuthService {
	return &AuthService{
		db:               db,
		userRepository:   userRepository,
		tokenRepository:  tokenRepository,
		mailer:           mailer,
		appURL:           appURL,
		appName:          appName,
		jwtSecret:        []byte(jwtSecret),
		isProduction:     isProduction,
		jwtExpiry:        jwtExpiry,
		resetTokenExpiry: resetTokenExpiry,
		now:              model.Now,
	}
}

// Register creates a user account with the default role.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	email = validation.NormalizeEmail(email)

	err := validation.ValidateUsername(username)
	if err != nil {
		return nil, err
	}
	err = validation.ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	err = validation.ValidatePassword(password)
	if err != nil {
		return nil, err
	}

	taken, err := s.userRepository.EmailTaken(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("email: %w", model.ErrConflict)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.NewUser(username, email, hash)
	err = s.userRepository.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	subject, body := welcomeEmailTemplate(username, s.appURL+"/app/me", s.appName)
	err = s.mailer.Send(ctx, email, subject, body)
	if err != nil {
		slog.Warn("failed to send welcome email", "error", err, "user_id", user.ID)
	}

	slog.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login returns the user with their skills. An unknown email and a wrong
// password both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = validation.NormalizeEmail(email)

	user, err := s.userRepository.ByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		_ = s.ComparePassword(password, string(dummyHash))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	err = s.ComparePassword(password, user.PasswordHash)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	full, err := s.userRepository.WithSkills(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return full, nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateToken returns 32 random bytes, hex encoded.
func GenerateToken() (string, error) {
	bytes := make([]byte, resetTokenBytes)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HashToken is the form a reset token is stored and looked up in.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) GenerateJWT(user *model.User) (string, time.Time, error) {
	now := time.Now()
	expiry := now.Add(s.jwtExpiry)
	claims := SessionClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiry, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidSession
	}
	_, err = model.ParseRole(claims.Role.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return claims, nil
}

func (s *AuthService) SetJWTCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequestPasswordReset mails a reset link to email. Unknown emails succeed
// silently so the response does not reveal which addresses are registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return err
	}

	_, err = s.userRepository.ByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		slog.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	err = s.tokenRepository.DeleteForEmail(ctx, email)
	if err != nil {
		slog.Warn("failed to delete old reset tokens", "error", err)
	}

	plain, err := GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	token := &model.ResetToken{
		Email:     email,
		TokenHash: HashToken(plain),
		ExpiresAt: s.now().Add(s.resetTokenExpiry),
		CreatedAt: s.now(),
	}
	err = s.tokenRepository.Create(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/auth/reset-password/%s", s.appURL, plain)
	subject, body := passwordResetEmailTemplate(resetURL, s.appName, s.resetTokenExpiry.String())
	err = s.mailer.Send(ctx, email, subject, body)
	if err != nil {
		slog.Error("failed to send password reset email", "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("password reset link sent", "token_id", token.ID)
	return nil
}

// ValidateResetToken returns the stored token if it can still be redeemed.
// Malformed tokens are rejected without touching the database.
func (s *AuthService) ValidateResetToken(ctx context.Context, plain string) (*model.ResetToken, error) {
	if !resetTokenRe.MatchString(plain) {
		return nil, ErrInvalidResetToken
	}

	token, err := s.tokenRepository.ByHash(ctx, HashToken(plain))
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if !token.IsValid(s.now()) {
		return nil, ErrInvalidResetToken
	}
	return token, nil
}

// ResetPassword redeems a reset token and sets the new password. The token is
// consumed in the same transaction as the password update.
func (s *AuthService) ResetPassword(ctx context.Context, plain, password string) error {
	if !resetTokenRe.MatchString(plain) {
		return ErrInvalidResetToken
	}
	err := validation.ValidatePassword(password)
	if err != nil {
		return err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return crud.RunInTx(ctx, s.db, func(tx *crud.Tx) error {
		token, err := s.tokenRepository.WithTx(tx).Consume(ctx, HashToken(plain), s.now())
		if errors.Is(err, model.ErrNotFound) {
			return ErrInvalidResetToken
		}
		if err != nil {
			return fmt.Errorf("failed to consume token: %w", err)
		}

		users := s.userRepository.WithTx(tx)
		user, err := users.ByEmail(ctx, token.Email)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		user.PasswordHash = hash
		err = users.Update(ctx, user)
		if err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}

		slog.Info("password reset", "user_id", user.ID)
		return nil
	})
}
