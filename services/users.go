package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/carebook/cli/api"
)

// Users reads and updates profiles.
type Users struct {
	client *api.Client
}

func NewUsers(client *api.Client) *Users {
	return &Users{client: client}
}

// Me returns the signed-in user.
func (u *Users) Me(ctx context.Context) (*User, error) {
	data, err := u.client.Get(ctx, "/users/me")
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return api.Decode[*User](data)
}

func (u *Users) Get(ctx context.Context, id string) (*User, error) {
	data, err := u.client.Get(ctx, userPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return api.Decode[*User](data)
}

func (u *Users) Update(ctx context.Context, id string, in UserUpdate) (*User, error) {
	data, err := u.client.Put(ctx, userPath(id), in)
	if err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", id, err)
	}
	return api.Decode[*User](data)
}

func userPath(id string) string {
	return "/users/" + url.PathEscape(id)
}
