package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/abernathy/patientfront/internal/credential"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

type Service struct {
	users   UserRepository
	cost    int
	compare func(hash, password []byte) error

	dummyOnce sync.Once
	dummy     []byte
}

func NewService(users UserRepository) *Service {
	return &Service{users: users, cost: bcrypt.DefaultCost, compare: bcrypt.CompareHashAndPassword}
}

// dummyHash is compared against when the username is unknown, so that path
// costs as much as a wrong password.
func (s *Service) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummy, _ = bcrypt.GenerateFromPassword([]byte("patientfront-unknown-user"), s.cost)
	})
	return s.dummy
}

// Authenticate checks a username/password pair and returns the identity of
// the matching account.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*credential.Identity, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		_ = s.compare(s.dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := s.compare([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u.Identity(), nil
}

// CreateUser stores a new account with a bcrypt hash of password.
func (s *Service) CreateUser(ctx context.Context, username, password string, role Role) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{Username: username, PasswordHash: string(hash), Role: ParseRole(string(role))}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
