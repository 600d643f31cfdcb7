package auth

import (
	"context"
	"errors"
	"fmt"

	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

// Repository stores user accounts.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// ErrUserNotFound is returned when no account matches.
var ErrUserNotFound = errors.New("user not found")

type emailIndex struct {
	UserID string `json:"userId"`
}

func emailKey(email string) string { return "user_email_" + email }

// kvRepository keeps users under user_<uuid> and an email index under
// user_email_<email>.
type kvRepository struct {
	store kvstore.Store
}

func NewRepository(store kvstore.Store) Repository {
	return &kvRepository{store: store}
}

func (r *kvRepository) CreateUser(ctx context.Context, user *User) error {
	return r.store.Transact(ctx, func(tx kvstore.Tx) error {
		_, err := tx.Get(ctx, emailKey(user.Email))
		if err == nil {
			return apperrors.Validation("A user with this email address has already been registered")
		}
		if !errors.Is(err, kvstore.ErrNotFound) {
			return apperrors.Upstream("Failed to create user", err)
		}
		if err := kvstore.SetJSON(ctx, tx, user.ID, user); err != nil {
			return err
		}
		return kvstore.SetJSON(ctx, tx, emailKey(user.Email), emailIndex{UserID: user.ID})
	})
}

func (r *kvRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	user, err := kvstore.GetJSON[User](ctx, r.store, id)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return user, nil
}

func (r *kvRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	idx, err := kvstore.GetJSON[emailIndex](ctx, r.store, emailKey(email))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load email index: %w", err)
	}
	return r.GetUserByID(ctx, idx.UserID)
}
