// Package datastore persists user credentials in SQLite, MySQL or MongoDB.
package datastore

import (
	"context"
	"time"

	"github.com/agrisense/farm-advisor/internal/errors"
)

// User is one registered account. Password holds a bcrypt hash, never plaintext.
type User struct {
	ID        uint      `gorm:"primaryKey" bson:"-" json:"-"`
	Username  string    `gorm:"size:255;not null;uniqueIndex:idx_users_username" bson:"username" json:"username"`
	Password  string    `gorm:"size:255;not null" bson:"password" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// CredentialStore looks up and inserts users. Implementations enforce username
// uniqueness in the backing store, so concurrent inserts of one name cannot both succeed.
type CredentialStore interface {
	// FindUser returns ErrUserNotFound when no user has username.
	FindUser(ctx context.Context, username string) (*User, error)
	// InsertUser returns ErrUserExists when username is taken.
	InsertUser(ctx context.Context, user *User) error
	Close() error
}

var (
	ErrUserNotFound = errors.NewStd("user not found")
	ErrUserExists   = errors.NewStd("user already exists")
)

func notFound(username string) error {
	return errors.New(ErrUserNotFound).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("username", username).
		Build()
}

func duplicate(username string, cause error) error {
	return errors.New(errors.Join(ErrUserExists, cause)).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("username", username).
		Build()
}

func dbError(operation string, err error) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
