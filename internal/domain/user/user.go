// Package user holds the buyer/admin account record. Accounts are created by
// the external identity service; this package only reads them.
package user

import (
	"context"
	"strings"
	"time"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/auth"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = apperr.New(apperr.ErrNotFound, "user not found")

// User is a marketplace account.
type User struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Role      auth.Role
	IsDeleted bool
	CreatedAt time.Time
}

// FullName joins first and last name, falling back to "A User".
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return "A User"
	}
	return name
}

// Repository reads and seeds users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u *User) error
}
