// Package api is the authenticated HTTP client for the carebook backend.
//
// Every call reloads the stored tokens, attaches the bearer token, enforces a
// per-attempt timeout, retries transient failures with exponential backoff
// and recovers from an expired access token with a single shared refresh.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/carebook/cli/tokenstore"
)

// DefaultTimeout bounds a single attempt when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// HeaderIdempotencyKey is attached to mutating requests so the backend can
// discard duplicates produced by retries.
const HeaderIdempotencyKey = "Idempotency-Key"

// TokenStore is the credential storage the client reads before every attempt
// and updates after a refresh. *tokenstore.Store implements it.
type TokenStore interface {
	Load()
	Save(accessToken, refreshToken string) error
	Clear() error
	Credentials() tokenstore.Credentials
}

// Observer receives notifications about retries and token refreshes. Methods
// are called synchronously from the goroutine issuing the request.
type Observer interface {
	OnRetry(method, endpoint string, retryCount int, delay time.Duration, err error)
	OnUnauthorized(endpoint string)
	OnRefreshed(endpoint string)
	OnRefreshFailed(endpoint string, err error)
}

type nopObserver struct{}

func (nopObserver) OnRetry(string, string, int, time.Duration, error) {}
func (nopObserver) OnUnauthorized(string)                             {}
func (nopObserver) OnRefreshed(string)                                {}
func (nopObserver) OnRefreshFailed(string, error)                     {}

// Config holds the tunables read from the process configuration.
type Config struct {
	BaseURL string
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	Retry   RetryPolicy
}

// Client issues JSON requests against BaseURL.
type Client struct {
	baseURL   string
	timeout   time.Duration
	policy    RetryPolicy
	store     TokenStore
	http      *http.Client
	refresher *refresher
	observer  Observer
	log       zerolog.Logger
	sleep     func(context.Context, time.Duration) error
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the diagnostics logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithObserver registers o for retry and refresh notifications.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New returns a Client for cfg that reads and writes tokens through store.
func New(cfg Config, store TokenStore, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	if store == nil {
		return nil, errors.New("token store is required")
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  cfg.Timeout,
		policy:   cfg.Retry.withDefaults(),
		store:    store,
		http:     &http.Client{},
		observer: nopObserver{},
		log:      zerolog.Nop(),
		sleep:    sleepContext,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}

	// The refresh call gets its own transient-failure retries; a failed
	// refresh logs the user out, so it is worth a second try. Each of its
	// attempts is bounded like a regular one.
	refreshHC := *c.http
	refreshHC.Timeout = c.timeout
	refreshHTTP, err := retry.NewClient(
		retry.WithHTTPClient(&refreshHC),
		retry.WithMaxRetries(c.policy.MaxRetries),
		retry.WithInitialRetryDelay(c.policy.BaseDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	c.refresher = &refresher{
		baseURL: c.baseURL,
		store:   store,
		http:    refreshHTTP,
		log:     c.log,
		budget:  refreshBudget(c.timeout, c.policy),
	}
	return c, nil
}

// BaseURL returns the backend root all endpoints are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one logical call. It is not modified by the client.
type Request struct {
	Endpoint string
	Method   string
	// Body is JSON-encoded when non-nil.
	Body    any
	Headers map[string]string
	// SkipRefresh surfaces a 401 directly instead of refreshing, for the
	// endpoints that hand out tokens.
	SkipRefresh bool
}

// RequestOption adjusts a Request built by the verb helpers.
type RequestOption func(*Request)

// WithHeader sets a header, overriding the client defaults.
func WithHeader(name, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[name] = value
	}
}

// WithoutRefresh disables the refresh-on-401 path for this request.
func WithoutRefresh() RequestOption {
	return func(r *Request) { r.SkipRefresh = true }
}

func (c *Client) Get(ctx context.Context, endpoint string, opts ...RequestOption) (json.RawMessage, error) {
	return c.verb(ctx, http.MethodGet, endpoint, nil, opts)
}

func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...RequestOption) (json.RawMessage, error) {
	return c.verb(ctx, http.MethodPost, endpoint, body, opts)
}

func (c *Client) Put(ctx context.Context, endpoint string, body any, opts ...RequestOption) (json.RawMessage, error) {
	return c.verb(ctx, http.MethodPut, endpoint, body, opts)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body any, opts ...RequestOption) (json.RawMessage, error) {
	return c.verb(ctx, http.MethodPatch, endpoint, body, opts)
}

func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (json.RawMessage, error) {
	return c.verb(ctx, http.MethodDelete, endpoint, nil, opts)
}

func (c *Client) verb(
	ctx context.Context,
	method, endpoint string,
	body any,
	opts []RequestOption,
) (json.RawMessage, error) {
	req := &Request{Endpoint: endpoint, Method: method, Body: body}
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(ctx, req)
}

// call is a Request frozen for execution: body encoded, headers resolved.
type call struct {
	method      string
	endpoint    string
	body        []byte
	headers     map[string]string
	skipRefresh bool
}

// Do executes r. The result is the unwrapped JSON payload, nil for a null or
// empty result. Failures are *APIError values, except for cancellation of
// ctx which is returned as is.
func (c *Client) Do(ctx context.Context, r *Request) (json.RawMessage, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	if r.Body != nil {
		var err error
		if body, err = json.Marshal(r.Body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	headers := maps.Clone(r.Headers)
	if headers == nil {
		headers = make(map[string]string)
	}
	if !isSafeMethod(method) && !hasHeader(headers, HeaderIdempotencyKey) {
		headers[HeaderIdempotencyKey] = uuid.NewString()
	}

	return c.execute(ctx, &call{
		method:      method,
		endpoint:    r.Endpoint,
		body:        body,
		headers:     headers,
		skipRefresh: r.SkipRefresh,
	})
}

func (c *Client) execute(ctx context.Context, cl *call) (json.RawMessage, error) {
	retryCount := 0
	refreshed := false

	for {
		data, sentToken, err := c.attempt(ctx, cl)
		if err == nil {
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if IsUnauthorized(err) && !cl.skipRefresh && !refreshed {
			c.observer.OnUnauthorized(cl.endpoint)
			if recoverErr := c.refresher.recover(ctx, sentToken, err); recoverErr != nil {
				c.observer.OnRefreshFailed(cl.endpoint, recoverErr)
				return nil, recoverErr
			}
			c.observer.OnRefreshed(cl.endpoint)
			// The mandatory retry after a refresh does not count against
			// the backoff budget.
			refreshed = true
			continue
		}

		if !c.policy.ShouldRetry(cl.method, err, retryCount) {
			return nil, err
		}

		delay := c.policy.Backoff(retryCount)
		c.log.Warn().
			Err(err).
			Str("method", cl.method).
			Str("endpoint", cl.endpoint).
			Int("retry", retryCount+1).
			Dur("delay", delay).
			Msg("retrying request")
		c.observer.OnRetry(cl.method, cl.endpoint, retryCount+1, delay, err)

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		retryCount++
	}
}

// attempt sends cl once and returns the access token it used.
func (c *Client) attempt(ctx context.Context, cl *call) (json.RawMessage, string, error) {
	c.store.Load()
	accessToken := c.store.Credentials().AccessToken

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, cl.method, c.baseURL+cl.endpoint, body)
	if err != nil {
		return nil, accessToken, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	setBearer(req, accessToken)
	for name, value := range cl.headers {
		req.Header.Set(name, value)
	}

	c.log.Debug().Str("method", cl.method).Str("endpoint", cl.endpoint).Msg("sending request")
	data, err := c.send(ctx, attemptCtx, req)
	return data, accessToken, err
}

// send performs req and normalizes the response, classifying transport
// failures as timeout or network errors.
func (c *Client) send(ctx, attemptCtx context.Context, req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	data, err := normalize(resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, c.transportError(ctx, attemptCtx, err)
	}
	return data, nil
}

func (c *Client) transportError(ctx, attemptCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return timeoutError(err)
	}
	return networkError(err)
}

func setBearer(req *http.Request, accessToken string) {
	if accessToken == "" {
		return
	}
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(name) {
			return true
		}
	}
	return false
}
