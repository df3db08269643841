package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xenking/extraweb/internal/domain/auth"
	"github.com/xenking/extraweb/internal/domain/user"
)

type userModel struct {
	ID        string    `bson:"_id"`
	FirstName string    `bson:"firstName"`
	LastName  string    `bson:"lastName"`
	Email     string    `bson:"email"`
	Role      string    `bson:"role"`
	IsDeleted bool      `bson:"isDeleted"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Users implements user.Repository.
type Users struct {
	s *Store
}

var _ user.Repository = (*Users)(nil)

// Users returns the user repository.
func (s *Store) Users() *Users { return &Users{s: s} }

func (r *Users) GetByID(ctx context.Context, userID string) (*user.User, error) {
	return r.findOne(ctx, bson.M{"_id": userID})
}

// GetByEmail looks a user up by its unique email.
func (r *Users) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *Users) findOne(ctx context.Context, filter bson.M) (*user.User, error) {
	var m userModel
	if err := r.s.col(colUsers).FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("extraweb/mongo: get user: %w", err)
	}
	return &user.User{
		ID:        m.ID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		Role:      auth.Role(m.Role),
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
	}, nil
}

func (r *Users) Create(ctx context.Context, u *user.User) error {
	m := &userModel{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      string(u.Role),
		IsDeleted: u.IsDeleted,
		CreatedAt: u.CreatedAt,
	}
	if _, err := r.s.col(colUsers).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("extraweb/mongo: create user: %w", dupKey(err, "email"))
	}
	return nil
}
