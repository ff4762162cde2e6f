package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/arbitragevault/backend/middleware"
	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/repositories"
	"github.com/arbitragevault/backend/services"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service handles user registration, login and token validation
type Service struct {
	users    repositories.UserRepository
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewService creates a new auth Service
func NewService(users repositories.UserRepository, secret string, tokenTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// Register creates a new user with a bcrypt-hashed password
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	if len(password) < 8 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "password must be at least 8 characters", nil)
	}

	if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, services.ErrDuplicateEmail
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, services.WrapInternal("failed to check existing user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, services.WrapInternal("failed to hash password", err)
	}

	user := models.NewUser(email, string(hash))
	if err := s.users.Create(ctx, user); err != nil {
		return nil, services.WrapInternal("failed to create user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login verifies credentials and issues a signed JWT
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, services.ErrInvalidCredentials
		}
		return "", nil, services.WrapInternal("failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, services.ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, services.WrapInternal("failed to sign token", err)
	}

	s.logger.Debug("user logged in", zap.String("user_id", user.ID.String()))
	return signed, user, nil
}

// ValidateToken parses and verifies a JWT, returning middleware claims.
// Implements middleware.TokenValidator.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*middleware.Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, services.ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, services.ErrTokenExpired
		}
		return nil, services.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, services.ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" {
		return nil, services.ErrInvalidToken
	}

	return &middleware.Claims{
		UserID: sub,
		Email:  email,
	}, nil
}
