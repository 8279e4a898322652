package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	tea "charm.land/bubbletea/v2"
	"github.com/carebook/cli/api"
	"github.com/carebook/cli/services"
	"github.com/carebook/cli/tokenstore"
	"github.com/carebook/cli/tui"
)

const tokenPreviewLen = 20

// errNoCredentials is returned when a login is needed but no email and
// password were configured.
var errNoCredentials = errors.New(
	"no stored session: set CAREBOOK_EMAIL and CAREBOOK_PASSWORD or pass -email and -password",
)

// app bundles the wired services of one CLI run.
type app struct {
	cfg   Config
	store *tokenstore.Store
	path  string
	log   zerolog.Logger
	d     tui.Displayer

	auth         *services.Auth
	users        *services.Users
	journals     *services.Journals
	appointments *services.Appointments
	media        *services.MediaUploader
}

func newApp(
	cfg Config,
	backend tokenstore.Backend,
	path string,
	hc *http.Client,
	log zerolog.Logger,
	d tui.Displayer,
) (*app, error) {
	store := tokenstore.New(backend, log)

	client, err := api.New(api.Config{
		BaseURL: cfg.BaseURL(),
		Timeout: cfg.Timeout(),
		Retry:   api.RetryPolicy{MaxRetries: maxRetries(cfg.MaxRetries)},
	}, store,
		api.WithHTTPClient(hc),
		api.WithLogger(log),
		api.WithObserver(displayObserver{d: d}),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:          cfg,
		store:        store,
		path:         path,
		log:          log,
		d:            d,
		auth:         services.NewAuth(client, store),
		users:        services.NewUsers(client),
		journals:     services.NewJournals(client),
		appointments: services.NewAppointments(client),
		media:        services.NewMediaUploader(client),
	}, nil
}

// maxRetries maps API_MAX_RETRIES onto the client policy. Zero there means
// no retries, unlike RetryPolicy where zero selects the default.
func maxRetries(n int) int {
	if n <= 0 {
		return api.NoRetries
	}
	return n
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func newLogger(cfg Config) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(cfg.Level()).
		With().
		Timestamp().
		Logger()
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func main() {
	cfg, opts, err := loadConfig(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	log := newLogger(cfg)
	if isPlainHTTP(cfg.BaseURL()) {
		log.Warn().
			Str("url", cfg.BaseURL()).
			Msg("using HTTP instead of HTTPS, tokens will be transmitted in plaintext")
	}

	path, err := filepath.Abs(cfg.TokenFile)
	if err != nil {
		path = cfg.TokenFile
	}
	var backend tokenstore.Backend = tokenstore.NewFileBackend(path, cfg.Profile())
	if opts.Ephemeral {
		backend = tokenstore.NewMemoryBackend()
		path = "memory"
	}

	if isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		// Logs would tear the TUI frame apart.
		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr := start(cfg, opts, backend, path, zerolog.Nop(), d)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		if runErr != nil {
			os.Exit(1)
		}
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		if err := start(cfg, opts, backend, path, log, d); err != nil {
			os.Exit(1)
		}
	}
}

func start(
	cfg Config,
	opts Options,
	backend tokenstore.Backend,
	path string,
	log zerolog.Logger,
	d tui.Displayer,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, backend, path, newHTTPClient(), log, d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	return a.run(ctx, opts)
}

func (a *app) run(ctx context.Context, opts Options) error {
	if opts.Logout {
		if err := a.auth.Logout(); err != nil {
			a.d.Fatal(err)
			return err
		}
		a.log.Info().Str("file", a.path).Msg("session cleared")
		a.d.LoggedOut(a.path)
		return nil
	}

	a.store.Load()
	if a.store.IsAuthenticated() {
		a.d.SessionFound(a.path)
	} else {
		a.d.SessionMissing()
		if err := a.login(ctx); err != nil {
			a.d.Fatal(err)
			return err
		}
	}

	summary, err := a.session(ctx, opts)
	// A 401 that survives with the tokens gone means the refresh token was
	// rejected; log in again once.
	if err != nil && api.IsUnauthorized(err) && !a.store.IsAuthenticated() {
		a.d.ReAuthRequired()
		if err := a.login(ctx); err != nil {
			a.d.Fatal(err)
			return err
		}
		summary, err = a.session(ctx, opts)
	}
	if err != nil {
		a.d.Fatal(err)
		return err
	}

	a.d.Done(summary)
	return nil
}

func (a *app) login(ctx context.Context) error {
	if a.cfg.Email == "" || a.cfg.Password == "" {
		return errNoCredentials
	}

	a.d.LoggingIn(a.cfg.Email)
	session, err := a.auth.Login(ctx, a.cfg.Email, a.cfg.Password)
	if err != nil {
		if errors.Is(err, services.ErrSaveTokens) {
			a.d.TokenSaveFailed(err)
		}
		return err
	}

	name := ""
	if session.User != nil {
		name = session.User.FullName()
	}
	a.d.LoginOK(name)
	a.d.TokenSaved(a.path)
	return nil
}

// session loads the signed-in user's data and performs the optional upload.
func (a *app) session(ctx context.Context, opts Options) (tui.Summary, error) {
	var s tui.Summary

	a.d.Loading("profile")
	me, err := a.users.Me(ctx)
	if err != nil {
		a.d.LoadFailed("profile", err)
		return s, err
	}
	if me == nil {
		err := errors.New("backend returned an empty profile")
		a.d.LoadFailed("profile", err)
		return s, err
	}
	s.User = me.FullName()
	a.d.Loaded("profile", s.User)

	a.d.Loading("journals")
	journals, err := a.journals.List(ctx)
	if err != nil {
		a.d.LoadFailed("journals", err)
		return s, err
	}
	s.Journals = len(journals)
	a.d.Loaded("journals", fmt.Sprintf("%d entries", s.Journals))

	a.d.Loading("appointments")
	appointments, err := a.appointments.List(ctx)
	if err != nil {
		a.d.LoadFailed("appointments", err)
		return s, err
	}
	s.Appointments = len(appointments)
	a.d.Loaded("appointments", fmt.Sprintf("%d booked", s.Appointments))

	if opts.Upload != "" {
		name := filepath.Base(opts.Upload)
		a.d.Uploading(name)
		media, err := a.media.Upload(ctx, opts.Upload, "", nil)
		if err != nil {
			a.d.LoadFailed("upload", err)
			return s, err
		}
		if media != nil {
			s.UploadURL = media.URL
		}
		a.d.UploadDone(name, s.UploadURL)
	}

	access := a.store.Credentials().AccessToken
	s.TokenPreview = access
	if len(s.TokenPreview) > tokenPreviewLen {
		s.TokenPreview = s.TokenPreview[:tokenPreviewLen]
	}
	if exp, ok := services.TokenExpiry(access); ok {
		s.Expiry = exp
	}
	return s, nil
}

// displayObserver forwards client events to the display.
type displayObserver struct {
	d tui.Displayer
}

func (o displayObserver) OnRetry(method, endpoint string, retryCount int, delay time.Duration, err error) {
	o.d.RetryScheduled(method, endpoint, retryCount, delay, err)
}

func (o displayObserver) OnUnauthorized(endpoint string) {
	o.d.AccessTokenRejected(endpoint)
}

func (o displayObserver) OnRefreshed(endpoint string) {
	o.d.TokenRefreshedRetrying(endpoint)
}

func (o displayObserver) OnRefreshFailed(_ string, err error) {
	o.d.RefreshFailed(err)
}
