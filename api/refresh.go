package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// RefreshEndpoint exchanges a refresh token for a new access token.
const RefreshEndpoint = "/auth/refresh"

const refreshKey = "refresh"

// refresher collapses concurrent 401 recoveries into one refresh call.
type refresher struct {
	baseURL string
	store   TokenStore
	http    *retry.Client
	log     zerolog.Logger
	group   singleflight.Group

	// budget bounds the whole refresh, retries included.
	budget time.Duration
}

// refreshBudget is the time a refresh may take when every attempt uses the
// full per-attempt timeout. Retry delays are doubled to leave room for
// jitter.
func refreshBudget(timeout time.Duration, policy RetryPolicy) time.Duration {
	budget := timeout * time.Duration(policy.MaxRetries+1)
	for i := range policy.MaxRetries {
		budget += 2 * policy.Backoff(i)
	}
	return budget
}

// recover is called after an attempt sent staleAccess and got a 401. It
// returns nil when the caller should retry once, or the original 401 when
// no refresh is possible or the refresh failed.
func (r *refresher) recover(ctx context.Context, staleAccess string, original error) error {
	if r.store.Credentials().RefreshToken == "" {
		return original
	}

	// The refresh must not die with whichever caller happened to start it.
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.budget)
	defer cancel()

	_, err, shared := r.group.Do(refreshKey, func() (any, error) {
		return nil, r.refresh(refreshCtx, staleAccess)
	})
	if err != nil {
		r.log.Warn().Err(err).Bool("shared", shared).Msg("token refresh failed")
		return original
	}
	r.log.Debug().Bool("shared", shared).Msg("token refreshed")
	return nil
}

// refresh runs inside the single-flight slot, so at most one instance is
// active at a time and it sees the results of the previous one.
func (r *refresher) refresh(ctx context.Context, staleAccess string) error {
	r.store.Load()
	creds := r.store.Credentials()

	// Another refresh already replaced the token this caller was rejected with.
	if creds.AccessToken != "" && creds.AccessToken != staleAccess {
		return nil
	}
	if creds.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	token, err := r.exchange(ctx, creds.RefreshToken)
	if err != nil {
		r.clear()
		return err
	}

	// Rotation: use the new refresh token if the backend sent one, otherwise
	// the store keeps the old one. The backend may already have invalidated
	// the old pair, so an unsaved result ends the session too.
	if err := r.store.Save(token.AccessToken, token.RefreshToken); err != nil {
		r.clear()
		return err
	}
	return nil
}

func (r *refresher) clear() {
	if err := r.store.Clear(); err != nil {
		r.log.Error().Err(err).Msg("failed to clear tokens after refresh failure")
	}
}

// tokenResponse accepts both snake_case and camelCase token fields.
type tokenResponse struct {
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refresh_token"`
	TokenType         string `json:"token_type"`
	ExpiresIn         int    `json:"expires_in"`
	AccessTokenCamel  string `json:"accessToken"`
	RefreshTokenCamel string `json:"refreshToken"`
}

// Token converts the response to an oauth2.Token.
func (t tokenResponse) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = t.AccessTokenCamel
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = t.RefreshTokenCamel
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}

// ParseToken decodes a login or refresh result into a token.
func ParseToken(data json.RawMessage) (*oauth2.Token, error) {
	resp, err := Decode[tokenResponse](data)
	if err != nil {
		return nil, err
	}
	tok := resp.Token()
	if tok.AccessToken == "" {
		return nil, errors.New("access_token is empty")
	}
	if tok.TokenType != "" && !isBearer(tok.TokenType) {
		return nil, fmt.Errorf("unexpected token_type: %s (expected Bearer)", tok.TokenType)
	}
	return tok, nil
}

func isBearer(tokenType string) bool {
	return tokenType == "Bearer" || tokenType == "bearer"
}

func (r *refresher) exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.baseURL+RefreshEndpoint,
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := normalize(resp)
	if err != nil {
		return nil, err
	}

	token, err := ParseToken(data)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh response: %w", err)
	}
	return token, nil
}
