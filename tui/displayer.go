package tui

import (
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"
)

// Summary is what the CLI shows once all calls finished.
type Summary struct {
	User         string
	TokenPreview string
	Expiry       time.Time
	Journals     int
	Appointments int
	UploadURL    string
}

// Displayer abstracts all output from the CLI session.
type Displayer interface {
	Banner()
	SessionFound(path string)
	SessionMissing()
	LoggedOut(path string)
	LoggingIn(email string)
	LoginOK(name string)
	TokenSaved(path string)
	TokenSaveFailed(err error)
	Loading(resource string)
	Loaded(resource, detail string)
	LoadFailed(resource string, err error)
	RetryScheduled(method, endpoint string, attempt int, delay time.Duration, err error)
	AccessTokenRejected(endpoint string)
	TokenRefreshedRetrying(endpoint string)
	RefreshFailed(err error)
	ReAuthRequired()
	Uploading(name string)
	UploadDone(name, url string)
	Done(s Summary)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stdout is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== Carebook CLI ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) SessionFound(path string) {
	fmt.Fprintf(p.w, "Found existing session in %s\n", path)
}

func (p *PlainDisplayer) SessionMissing() {
	fmt.Fprintln(p.w, "No existing session, logging in...")
}

func (p *PlainDisplayer) LoggedOut(path string) {
	fmt.Fprintf(p.w, "Signed out, session removed from %s\n", path)
}

func (p *PlainDisplayer) LoggingIn(email string) {
	fmt.Fprintf(p.w, "Logging in as %s...\n", email)
}

func (p *PlainDisplayer) LoginOK(name string) {
	if name == "" {
		fmt.Fprintln(p.w, "Login successful!")
		return
	}
	fmt.Fprintf(p.w, "Login successful! Welcome, %s\n", name)
}

func (p *PlainDisplayer) TokenSaved(path string) {
	fmt.Fprintf(p.w, "Tokens saved to %s\n", path)
}

func (p *PlainDisplayer) TokenSaveFailed(err error) {
	fmt.Fprintf(p.w, "Warning: Failed to save tokens: %v\n", err)
}

func (p *PlainDisplayer) Loading(resource string) {
	fmt.Fprintf(p.w, "Loading %s...\n", resource)
}

func (p *PlainDisplayer) Loaded(resource, detail string) {
	fmt.Fprintf(p.w, "Loaded %s: %s\n", resource, detail)
}

func (p *PlainDisplayer) LoadFailed(resource string, err error) {
	fmt.Fprintf(p.w, "Failed to load %s: %v\n", resource, err)
}

func (p *PlainDisplayer) RetryScheduled(
	method, endpoint string,
	attempt int,
	delay time.Duration,
	err error,
) {
	fmt.Fprintf(p.w, "%s %s failed (%v), retry %d in %s\n", method, endpoint, err, attempt, delay)
}

func (p *PlainDisplayer) AccessTokenRejected(endpoint string) {
	fmt.Fprintf(p.w, "Access token rejected (401) on %s, refreshing...\n", endpoint)
}

func (p *PlainDisplayer) TokenRefreshedRetrying(endpoint string) {
	fmt.Fprintf(p.w, "Token refreshed, retrying %s...\n", endpoint)
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
}

func (p *PlainDisplayer) ReAuthRequired() {
	fmt.Fprintln(p.w, "Session expired, logging in again...")
}

func (p *PlainDisplayer) Uploading(name string) {
	fmt.Fprintf(p.w, "Uploading %s...\n", name)
}

func (p *PlainDisplayer) UploadDone(name, url string) {
	fmt.Fprintf(p.w, "Uploaded %s: %s\n", name, url)
}

func (p *PlainDisplayer) Done(s Summary) {
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintf(p.w, "User: %s\n", s.User)
	fmt.Fprintf(p.w, "Journals: %d\n", s.Journals)
	fmt.Fprintf(p.w, "Appointments: %d\n", s.Appointments)
	if s.UploadURL != "" {
		fmt.Fprintf(p.w, "Uploaded: %s\n", s.UploadURL)
	}
	fmt.Fprintf(p.w, "Access Token: %s...\n", s.TokenPreview)
	fmt.Fprintf(p.w, "Expires In: %s\n", expiresIn(s.Expiry))
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// expiresIn renders the time left until expiry, or "unknown" for opaque
// tokens.
func expiresIn(expiry time.Time) string {
	if expiry.IsZero() {
		return "unknown"
	}
	return formatDuration(time.Until(expiry))
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                                                     {}
func (NoopDisplayer) SessionFound(_ string)                                       {}
func (NoopDisplayer) SessionMissing()                                             {}
func (NoopDisplayer) LoggedOut(_ string)                                          {}
func (NoopDisplayer) LoggingIn(_ string)                                          {}
func (NoopDisplayer) LoginOK(_ string)                                            {}
func (NoopDisplayer) TokenSaved(_ string)                                         {}
func (NoopDisplayer) TokenSaveFailed(_ error)                                     {}
func (NoopDisplayer) Loading(_ string)                                            {}
func (NoopDisplayer) Loaded(_, _ string)                                          {}
func (NoopDisplayer) LoadFailed(_ string, _ error)                                {}
func (NoopDisplayer) RetryScheduled(_, _ string, _ int, _ time.Duration, _ error) {}
func (NoopDisplayer) AccessTokenRejected(_ string)                                {}
func (NoopDisplayer) TokenRefreshedRetrying(_ string)                             {}
func (NoopDisplayer) RefreshFailed(_ error)                                       {}
func (NoopDisplayer) ReAuthRequired()                                             {}
func (NoopDisplayer) Uploading(_ string)                                          {}
func (NoopDisplayer) UploadDone(_, _ string)                                      {}
func (NoopDisplayer) Done(_ Summary)                                              {}
func (NoopDisplayer) Fatal(_ error)                                               {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) SessionFound(path string) {
	t.p.Send(MsgSessionFound{Path: path})
}

func (t *ProgramDisplayer) SessionMissing() {
	t.p.Send(MsgSessionMissing{})
}

func (t *ProgramDisplayer) LoggedOut(path string) {
	t.p.Send(MsgLoggedOut{Path: path})
}

func (t *ProgramDisplayer) LoggingIn(email string) {
	t.p.Send(MsgLoggingIn{Email: email})
}

func (t *ProgramDisplayer) LoginOK(name string) {
	t.p.Send(MsgLoginOK{Name: name})
}

func (t *ProgramDisplayer) TokenSaved(path string) {
	t.p.Send(MsgTokenSaved{Path: path})
}

func (t *ProgramDisplayer) TokenSaveFailed(err error) {
	t.p.Send(MsgTokenSaveFailed{Err: err})
}

func (t *ProgramDisplayer) Loading(resource string) {
	t.p.Send(MsgLoading{Resource: resource})
}

func (t *ProgramDisplayer) Loaded(resource, detail string) {
	t.p.Send(MsgLoaded{Resource: resource, Detail: detail})
}

func (t *ProgramDisplayer) LoadFailed(resource string, err error) {
	t.p.Send(MsgLoadFailed{Resource: resource, Err: err})
}

func (t *ProgramDisplayer) RetryScheduled(
	method, endpoint string,
	attempt int,
	delay time.Duration,
	err error,
) {
	t.p.Send(MsgRetryScheduled{
		Method:   method,
		Endpoint: endpoint,
		Attempt:  attempt,
		Delay:    delay,
		Err:      err,
	})
}

func (t *ProgramDisplayer) AccessTokenRejected(endpoint string) {
	t.p.Send(MsgAccessTokenRejected{Endpoint: endpoint})
}

func (t *ProgramDisplayer) TokenRefreshedRetrying(endpoint string) {
	t.p.Send(MsgTokenRefreshedRetrying{Endpoint: endpoint})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) ReAuthRequired() {
	t.p.Send(MsgReAuthRequired{})
}

func (t *ProgramDisplayer) Uploading(name string) {
	t.p.Send(MsgUploading{Name: name})
}

func (t *ProgramDisplayer) UploadDone(name, url string) {
	t.p.Send(MsgUploadDone{Name: name, URL: url})
}

func (t *ProgramDisplayer) Done(s Summary) {
	t.p.Send(MsgDone{Summary: s})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
