package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// state represents the current phase of the CLI session.
type state int

const (
	stateInit      state = iota
	stateLoggingIn       // password login in flight
	stateLoading         // fetching resources
	stateUploading       // multipart upload in flight
	stateSuccess         // all done
	stateSignedOut       // session removed
	stateError           // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the CLI session.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	// What the spinner line currently describes.
	activity string

	summary Summary
	errMsg  string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles, defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("36")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("36")).
			Padding(0, 2)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("36"))),
	)
	return Model{
		state:    stateInit,
		spinner:  s,
		activity: "Initializing...",
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── Session messages ─────────────────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgSessionFound:
		m.addStatus(statusOK, "Found existing session in "+msg.Path)
		return m, nil

	case MsgSessionMissing:
		m.addStatus(statusInfo, "No existing session")
		return m, nil

	case MsgLoggedOut:
		m.addStatus(statusOK, "Session removed from "+msg.Path)
		m.state = stateSignedOut
		return m, nil

	case MsgLoggingIn:
		m.state = stateLoggingIn
		m.activity = "Logging in as " + msg.Email + "..."
		return m, nil

	case MsgLoginOK:
		text := "Login successful"
		if msg.Name != "" {
			text += ", welcome " + msg.Name
		}
		m.addStatus(statusOK, text)
		return m, nil

	case MsgTokenSaved:
		m.addStatus(statusOK, "Tokens saved to "+msg.Path)
		return m, nil

	case MsgTokenSaveFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Warning: failed to save tokens: %v", msg.Err))
		return m, nil

	case MsgLoading:
		m.state = stateLoading
		m.activity = "Loading " + msg.Resource + "..."
		return m, nil

	case MsgLoaded:
		m.addStatus(statusOK, fmt.Sprintf("Loaded %s: %s", msg.Resource, msg.Detail))
		return m, nil

	case MsgLoadFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Failed to load %s: %v", msg.Resource, msg.Err))
		return m, nil

	case MsgRetryScheduled:
		m.addStatus(statusWarn, fmt.Sprintf(
			"%s %s failed, retry %d in %s",
			msg.Method, msg.Endpoint, msg.Attempt, msg.Delay,
		))
		return m, nil

	case MsgAccessTokenRejected:
		m.addStatus(statusWarn, "Access token rejected (401), refreshing...")
		return m, nil

	case MsgTokenRefreshedRetrying:
		m.addStatus(statusOK, "Token refreshed, retrying "+msg.Endpoint)
		return m, nil

	case MsgRefreshFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Refresh failed: %v", msg.Err))
		return m, nil

	case MsgReAuthRequired:
		m.addStatus(statusWarn, "Session expired, logging in again...")
		return m, nil

	case MsgUploading:
		m.state = stateUploading
		m.activity = "Uploading " + msg.Name + "..."
		return m, nil

	case MsgUploadDone:
		m.addStatus(statusOK, fmt.Sprintf("Uploaded %s", msg.Name))
		return m, nil

	case MsgDone:
		m.summary = msg.Summary
		m.state = stateSuccess
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateSuccess:
		return tea.NewView(m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewError())
	case stateSignedOut:
		return tea.NewView("\n" + styleOK.Render("  ✓ Signed out") + "\n" + m.viewStatusLog())
	default:
		return tea.NewView(m.viewMain())
	}
}

// viewMain is shown while requests are in flight.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  Carebook  "))
	b.WriteString("\n\n")

	b.WriteString(m.spinner.View())
	b.WriteString(" " + m.activity + "\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewSuccess() string {
	var b strings.Builder
	s := m.summary

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  ✓ Signed in as " + s.User))
	b.WriteString("\n\n")

	b.WriteString(styleBold.Render("Journals:     "))
	b.WriteString(fmt.Sprintf("%d\n", s.Journals))

	b.WriteString(styleBold.Render("Appointments: "))
	b.WriteString(fmt.Sprintf("%d\n", s.Appointments))

	if s.UploadURL != "" {
		b.WriteString(styleBold.Render("Uploaded:     "))
		b.WriteString(s.UploadURL + "\n")
	}

	b.WriteString(styleBold.Render("Access Token: "))
	b.WriteString(s.TokenPreview + "...\n")

	b.WriteString(styleBold.Render("Expires In:   "))
	b.WriteString(expiresIn(s.Expiry) + "\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Request failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

// formatDuration formats a duration as "Xh Ym", "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
