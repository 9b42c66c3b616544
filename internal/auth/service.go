// Package auth implements sign-up and login against a credential store.
package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/agrisense/farm-advisor/internal/datastore"
	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/logger"
)

// User-facing failures. Login never says whether the username or the password was wrong.
var (
	ErrBlankCredentials   = errors.NewStd("Please fill out both fields.")
	ErrInvalidCredentials = errors.NewStd("Invalid username or password")
	ErrUserExists         = errors.NewStd("Username already exists")
)

// Result labels passed to the Observer.
const (
	ResultSuccess = "success"
	ResultBlank   = "blank"
	ResultInvalid = "invalid"
	ResultExists  = "exists"
	ResultError   = "error"
)

// Observer receives authentication outcomes.
type Observer interface {
	RecordLogin(result string)
	RecordSignUp(result string)
}

// Service checks credentials. Passwords are stored as bcrypt hashes.
type Service struct {
	store    datastore.CredentialStore
	cost     int
	observer Observer
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost != 0 {
			s.cost = cost
		}
	}
}

// WithObserver reports outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService creates a Service over store.
func NewService(store datastore.CredentialStore, opts ...Option) *Service {
	s := &Service{store: store, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func blank(username, password string) bool {
	return strings.TrimSpace(username) == "" || strings.TrimSpace(password) == ""
}

// SignUp registers a new user. Blank fields are rejected before the store is touched.
func (s *Service) SignUp(ctx context.Context, username, password string) error {
	if blank(username, password) {
		s.recordSignUp(ResultBlank)
		return errors.New(ErrBlankCredentials).
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		s.recordSignUp(ResultError)
		return errors.New(err).
			Component("auth").
			Category(errors.CategoryValidation).
			Context("operation", "hash-password").
			Build()
	}

	err = s.store.InsertUser(ctx, &datastore.User{Username: username, Password: string(hash)})
	switch {
	case err == nil:
		s.recordSignUp(ResultSuccess)
		GetLogger().Info("User registered", logger.String("username", username))
		return nil
	case errors.Is(err, datastore.ErrUserExists):
		s.recordSignUp(ResultExists)
		return errors.New(ErrUserExists).
			Component("auth").
			Category(errors.CategoryConflict).
			Context("username", username).
			Build()
	default:
		s.recordSignUp(ResultError)
		return err
	}
}

// Login returns the user when username and password match a stored account.
func (s *Service) Login(ctx context.Context, username, password string) (*datastore.User, error) {
	// Blank fields get the same answer as a wrong password but skip the store.
	if blank(username, password) {
		s.recordLogin(ResultBlank)
		return nil, invalidCredentials()
	}

	user, err := s.store.FindUser(ctx, username)
	if err != nil && !errors.Is(err, datastore.ErrUserNotFound) {
		s.recordLogin(ResultError)
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		s.recordLogin(ResultInvalid)
		GetLogger().Info("Login rejected", logger.String("username", username))
		return nil, invalidCredentials()
	}

	s.recordLogin(ResultSuccess)
	return user, nil
}

// EnsureUser creates username unless it already exists. It is used to seed
// the default account at startup.
func (s *Service) EnsureUser(ctx context.Context, username, password string) (bool, error) {
	err := s.SignUp(ctx, username, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUserExists):
		return false, nil
	default:
		return false, err
	}
}

func invalidCredentials() error {
	return errors.New(ErrInvalidCredentials).
		Component("auth").
		Category(errors.CategoryAuth).
		Build()
}

func (s *Service) recordLogin(result string) {
	if s.observer != nil {
		s.observer.RecordLogin(result)
	}
}

func (s *Service) recordSignUp(result string) {
	if s.observer != nil {
		s.observer.RecordSignUp(result)
	}
}
