package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"edulearn-quiz-service/internal/domain"
	"edulearn-quiz-service/internal/logger"
)

const (
	DefaultBcryptCost = 12
	DefaultTokenTTL   = 7 * 24 * time.Hour
)

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	FullName string `json:"fullName" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginInput is the sign-in payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthConfig configures token issuance and hashing.
type AuthConfig struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}

// AuthService registers users, logs them in and verifies bearer tokens.
type AuthService struct {
	users    UserRepository
	validate *validator.Validate
	secret   []byte
	ttl      time.Duration
	cost     int
	log      *logger.Logger
	now      func() time.Time
}

type tokenClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func NewAuthService(users UserRepository, cfg AuthConfig, log *logger.Logger) (*AuthService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	return &AuthService{
		users:    users,
		validate: validator.New(),
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TokenTTL,
		cost:     cfg.BcryptCost,
		log:      log,
		now:      time.Now,
	}, nil
}

// SetClock is test-only.
func (a *AuthService) SetClock(now func() time.Time) {
	a.now = now
}

// Register creates an active account with zeroed stats and returns it with a token.
func (a *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, string, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	if err := a.validate.Struct(in); err != nil {
		return domain.User{}, "", translateValidation(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.cost)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: string(hash),
		IsActive:     true,
		Stats:        domain.NewUserStats(),
		CreatedAt:    a.now().UTC(),
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, "", err
	}

	token, err := a.issue(user)
	if err != nil {
		return domain.User{}, "", err
	}
	a.log.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// Login checks credentials. Unknown email, inactive account and wrong
// password are indistinguishable to the caller.
func (a *AuthService) Login(ctx context.Context, in LoginInput) (domain.User, string, error) {
	in.Email = normalizeEmail(in.Email)
	if err := a.validate.Struct(in); err != nil {
		return domain.User{}, "", translateValidation(err)
	}

	user, err := a.users.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, "", err
	}
	if !user.IsActive {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	token, err := a.issue(user)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// Authenticate resolves a bearer token to an active user.
func (a *AuthService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, domain.ErrUnauthenticated
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return domain.User{}, domain.ErrInvalidToken
	}

	user, err := a.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrUserInactive
	}
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsActive {
		return domain.User{}, domain.ErrUserInactive
	}
	return user, nil
}

func (a *AuthService) issue(user domain.User) (string, error) {
	now := a.now()
	claims := tokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// translateValidation turns the first validator failure into a readable message.
func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("invalid input")
	}
	fe := verrs[0]
	switch fe.Field() {
	case "FullName":
		return domain.NewValidationError("Full name must be between 2 and 50 characters")
	case "Email":
		return domain.NewValidationError("Please provide a valid email")
	case "Password":
		if fe.Tag() == "min" {
			return domain.NewValidationError("Password must be at least 8 characters long")
		}
		return domain.NewValidationError("Password is required")
	}
	return domain.NewValidationError("%s is invalid", fe.Field())
}
