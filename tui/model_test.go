package tui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestModel_SessionFlow(t *testing.T) {
	m := update(t, NewModel(),
		MsgSessionMissing{},
		MsgLoggingIn{Email: "ada@example.com"},
	)
	assert.Equal(t, stateLoggingIn, m.state)
	assert.Contains(t, m.viewMain(), "Logging in as ada@example.com")

	m = update(t, m,
		MsgLoginOK{Name: "Ada"},
		MsgTokenSaved{Path: "/tmp/tokens.json"},
		MsgLoading{Resource: "journals"},
		MsgAccessTokenRejected{Endpoint: "/journals/"},
		MsgTokenRefreshedRetrying{Endpoint: "/journals/"},
		MsgLoaded{Resource: "journals", Detail: "2 entries"},
	)
	assert.Equal(t, stateLoading, m.state)

	view := m.viewMain()
	assert.Contains(t, view, "Login successful, welcome Ada")
	assert.Contains(t, view, "Tokens saved to /tmp/tokens.json")
	assert.Contains(t, view, "Access token rejected (401)")
	assert.Contains(t, view, "Token refreshed, retrying /journals/")
	assert.Contains(t, view, "Loaded journals: 2 entries")
}

func TestModel_Done(t *testing.T) {
	m := update(t, NewModel(), MsgDone{Summary: Summary{
		User:         "Ada L",
		TokenPreview: "eyJhbGciOi",
		Journals:     2,
		Appointments: 1,
		UploadURL:    "https://cdn/scan.png",
	}})
	assert.Equal(t, stateSuccess, m.state)

	view := m.viewSuccess()
	assert.Contains(t, view, "Signed in as Ada L")
	assert.Contains(t, view, "eyJhbGciOi...")
	assert.Contains(t, view, "https://cdn/scan.png")
	assert.Contains(t, view, "unknown")
}

func TestModel_Fatal(t *testing.T) {
	m := update(t, NewModel(),
		MsgRetryScheduled{Method: "GET", Endpoint: "/users/me", Attempt: 1, Delay: time.Second},
		MsgFatal{Err: errors.New("backend unavailable")},
	)
	assert.Equal(t, stateError, m.state)

	view := m.viewError()
	assert.Contains(t, view, "backend unavailable")
	assert.Contains(t, view, "GET /users/me failed, retry 1 in 1s")
}

func TestModel_CtrlCQuits(t *testing.T) {
	_, cmd := NewModel().Update(tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPlainDisplayer(t *testing.T) {
	var buf bytes.Buffer
	d := NewPlainDisplayer(&buf)

	d.LoggingIn("ada@example.com")
	d.LoginOK("Ada")
	d.RetryScheduled("GET", "/journals/", 2, 2*time.Second, errors.New("boom"))
	d.Done(Summary{User: "Ada", TokenPreview: "abc", Journals: 3, Expiry: time.Now().Add(90 * time.Second)})

	out := buf.String()
	assert.Contains(t, out, "Logging in as ada@example.com...")
	assert.Contains(t, out, "Welcome, Ada")
	assert.Contains(t, out, "GET /journals/ failed (boom), retry 2 in 2s")
	assert.Contains(t, out, "Journals: 3")
	assert.Contains(t, out, "Expires In: 1m")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}
