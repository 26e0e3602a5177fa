package auth

import (
	"context"
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/praxis-lms/praxis/internal/platform/httpx"
	"github.com/praxis-lms/praxis/internal/session"
)

const minPasswordLength = 8

// Service verifies credentials and manages session revocation.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate checks the credentials and returns the user on success. An
// unknown email and a wrong password produce the same error so the
// response never reveals which one failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, session.ErrUserNotFound) {
			return nil, httpx.Unauthorized("Invalid email or password")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, httpx.Unauthorized("Invalid email or password")
	}
	return user, nil
}

// LogoutAll revokes every outstanding session for the user by bumping the
// token version.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	_, err := s.repo.IncrementTokenVersion(ctx, userID)
	if errors.Is(err, session.ErrUserNotFound) {
		return httpx.Unauthorized("User not found")
	}
	return err
}

// HashPassword derives a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ValidatePassword enforces the password policy: at least 8 characters,
// one uppercase letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return httpx.Validation("Password must be at least 8 characters", nil)
	}
	var upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return httpx.Validation("Password must contain an uppercase letter", nil)
	}
	if !digit {
		return httpx.Validation("Password must contain a digit", nil)
	}
	return nil
}
