// Package services wraps the carebook backend endpoints with typed calls on
// top of api.Client.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/carebook/cli/api"
)

// Auth endpoints.
const (
	LoginEndpoint    = "/auth/login"
	RegisterEndpoint = "/auth/register"
)

// ErrInvalidCredentials is returned by Login when the backend rejects the
// email/password pair.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrSaveTokens is returned when the backend accepted the login but the
// tokens could not be persisted.
var ErrSaveTokens = errors.New("failed to save tokens")

// TokenWriter persists tokens handed out by the auth endpoints.
type TokenWriter interface {
	Save(accessToken, refreshToken string) error
	Clear() error
}

// Auth signs users in and out.
type Auth struct {
	client *api.Client
	tokens TokenWriter
}

// NewAuth returns an Auth that stores tokens in tokens.
func NewAuth(client *api.Client, tokens TokenWriter) *Auth {
	return &Auth{client: client, tokens: tokens}
}

// Session is the result of a successful sign-in.
type Session struct {
	User  *User
	Token *oauth2.Token
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Country   string `json:"country,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Login exchanges email and password for tokens and saves them.
func (a *Auth) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	data, err := a.client.Post(ctx, LoginEndpoint,
		map[string]string{"email": email, "password": password},
		api.WithoutRefresh(),
	)
	if err != nil {
		if api.IsUnauthorized(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return a.startSession(data)
}

// Register creates an account. When the backend signs the new user in
// straight away the returned session is saved; otherwise Session.Token is
// nil and the caller should Login.
func (a *Auth) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	data, err := a.client.Post(ctx, RegisterEndpoint, in, api.WithoutRefresh())
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	var probe struct {
		AccessToken      string `json:"access_token"`
		AccessTokenCamel string `json:"accessToken"`
	}
	if err := json.Unmarshal(data, &probe); err == nil &&
		(probe.AccessToken != "" || probe.AccessTokenCamel != "") {
		return a.startSession(data)
	}

	user, err := decodeUser(data)
	if err != nil {
		return nil, err
	}
	return &Session{User: user}, nil
}

// Logout forgets the stored tokens.
func (a *Auth) Logout() error {
	return a.tokens.Clear()
}

func (a *Auth) startSession(data json.RawMessage) (*Session, error) {
	token, err := api.ParseToken(data)
	if err != nil {
		return nil, fmt.Errorf("invalid token response: %w", err)
	}
	if token.Expiry.IsZero() {
		if exp, ok := TokenExpiry(token.AccessToken); ok {
			token.Expiry = exp
		}
	}
	if err := a.tokens.Save(token.AccessToken, token.RefreshToken); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSaveTokens, err)
	}

	var body struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &Session{User: body.User, Token: token}, nil
}

func decodeUser(data json.RawMessage) (*User, error) {
	var body struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.User != nil {
		return body.User, nil
	}
	return api.Decode[*User](data)
}

// TokenExpiry reads the exp claim of a JWT access token without verifying
// its signature. It reports false for opaque tokens.
func TokenExpiry(accessToken string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
