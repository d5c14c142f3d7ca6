// Package auth registers users, issues HS256 access tokens and guards routes with them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"paisable/internal/core"
	"paisable/internal/ports"
)

const (
	bcryptCost      = 12
	minPasswordLen  = 6
	DefaultTokenTTL = 30 * 24 * time.Hour
)

// Session is what a successful register or login returns.
type Session struct {
	User  core.User `json:"user"`
	Token string    `json:"token"`
}

type Service struct {
	users  ports.UserStore
	secret []byte
	ttl    time.Duration

	now   func() time.Time
	newID func() string
	cost  int
}

func NewService(users ports.UserStore, secret string, ttl time.Duration) (*Service, error) {
	if len(secret) < 16 {
		return nil, errors.New("JWT secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		cost:   bcryptCost,
	}, nil
}

// Register creates a user with a hashed password. A taken email is ErrConflict.
func (s *Service) Register(ctx context.Context, name, email, password string) (Session, error) {
	email = core.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, core.ErrInvalidCredential
	}
	if len(password) < minPasswordLen {
		return Session{}, core.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return Session{}, fmt.Errorf("register %s: %w", email, core.ErrConflict)
	} else if !errors.Is(err, core.ErrNotFound) {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, core.User{
		ID:           s.newID(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return Session{}, err
	}
	return s.session(u)
}

// Login checks credentials. Unknown email and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = core.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, core.ErrInvalidCredential
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, core.ErrUnauthorized
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, core.ErrUnauthorized
	}
	return s.session(u)
}

func (s *Service) Me(ctx context.Context, userID string) (core.User, error) {
	return s.users.GetUser(ctx, userID)
}

// CompleteSetup records the owner's default currency and marks the account
// as set up. Running it again replaces the currency.
func (s *Service) CompleteSetup(ctx context.Context, userID, currency string) (core.User, error) {
	code, err := core.NormalizeCurrency(currency)
	if err != nil {
		return core.User{}, err
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return core.User{}, err
	}
	u.DefaultCurrency = code
	u.IsSetupComplete = true
	return s.users.UpdateUser(ctx, u)
}

func (s *Service) session(u core.User) (Session, error) {
	token, err := s.GenerateToken(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token}, nil
}

func (s *Service) GenerateToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": now.Add(s.ttl).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken returns the subject of a valid, unexpired token.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", core.ErrUnauthorized
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: 'sub' claim missing", core.ErrUnauthorized)
	}
	return sub, nil
}
