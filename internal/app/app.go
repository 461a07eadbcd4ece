package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/tunestats/internal/browser"
	"github.com/florianilch/tunestats/internal/credential"
	"github.com/florianilch/tunestats/internal/handshake"
	"github.com/florianilch/tunestats/internal/relay"
	"github.com/florianilch/tunestats/internal/server"
	"github.com/florianilch/tunestats/internal/stats"
	"github.com/florianilch/tunestats/internal/tokenstore"
)

// Option configures an App.
type Option func(*options)

type options struct {
	clock      clockwork.Clock
	launcher   handshake.Launcher
	tokenStore tokenstore.TokenStore
}

// WithClock sets the clock shared by every time-dependent component.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithLauncher replaces the system browser launcher. If launcher also
// implements relay.ClosedReporter it receives popup-closed reports.
func WithLauncher(launcher handshake.Launcher) Option {
	return func(o *options) {
		o.launcher = launcher
	}
}

// WithTokenStore replaces the configured credential backend.
func WithTokenStore(store tokenstore.TokenStore) Option {
	return func(o *options) {
		o.tokenStore = store
	}
}

// App orchestrates the lifecycle of the local server and the login flow.
type App struct {
	cfg         *Config
	store       *credential.Store
	coordinator *handshake.Coordinator
	stats       *stats.Service
	server      *server.Server

	mu      sync.Mutex
	serving bool
}

// Compile-time check to ensure App implements server.Session
var _ server.Session = (*App)(nil)

// New creates a new App instance. No I/O is performed.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(o)
	}

	backend := o.tokenStore
	if backend == nil {
		var err error
		if backend, err = cfg.Auth.NewTokenStore(); err != nil {
			return nil, fmt.Errorf("failed to create token store: %w", err)
		}
	}

	store, err := credential.NewStore(backend,
		credential.WithClock(o.clock),
		credential.WithLifetime(cfg.Auth.TokenLifetime),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	launcher := o.launcher
	if launcher == nil {
		launcher = browser.NewLauncher()
	}
	popups, _ := launcher.(relay.ClosedReporter)

	redirectURI, err := cfg.RedirectURI()
	if err != nil {
		return nil, err
	}

	bus := handshake.NewBus()
	coordinator, err := handshake.NewCoordinator(launcher, bus, redirectURI,
		handshake.WithClock(o.clock),
		handshake.WithTimeout(cfg.Login.Timeout),
		handshake.WithPollInterval(cfg.Login.PollInterval),
		handshake.WithFeatures(handshake.CenteredFeatures(cfg.Login.ScreenWidth, cfg.Login.ScreenHeight)),
		handshake.WithEndpoint(oauth2.Endpoint{AuthURL: cfg.Spotify.AuthURL, TokenURL: cfg.Spotify.TokenURL}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login coordinator: %w", err)
	}

	relayer, err := relay.New(bus, store, popups)
	if err != nil {
		return nil, fmt.Errorf("failed to create relay: %w", err)
	}

	tokenSource, err := NewCredentialTokenSource(store)
	if err != nil {
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}

	statsService, err := stats.New(tokenSource, store,
		stats.WithBaseURL(cfg.Spotify.APIBaseURL),
		stats.WithClock(o.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stats service: %w", err)
	}

	a := &App{
		cfg:         cfg,
		store:       store,
		coordinator: coordinator,
		stats:       statsService,
	}

	a.server, err = server.New(a, relayer, popups, statsService, server.WithClock(o.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return a, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	serverErrCh, stop, err := a.startServer(gCtx)
	if err != nil {
		return err
	}
	shutdownFuncs = append(shutdownFuncs, stop)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	redirectURI, _ := a.cfg.RedirectURI()
	slog.InfoContext(gCtx, "application ready", "address", a.cfg.Server.Address(), "redirect_uri", redirectURI)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// startServer starts the server and marks the app as serving. The returned
// stop function shuts it down and clears the mark.
func (a *App) startServer(ctx context.Context) (<-chan error, func(context.Context) error, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.serving {
		return nil, nil, errors.New("server already running")
	}

	address := a.cfg.Server.Address()
	slog.InfoContext(ctx, "starting server", "address", address)
	errCh, err := a.server.Start(ctx, address)
	if err != nil {
		return nil, nil, fmt.Errorf("server startup failed: %w", err)
	}
	a.serving = true

	stop := func(ctx context.Context) error {
		a.mu.Lock()
		a.serving = false
		a.mu.Unlock()
		return a.server.Shutdown(ctx)
	}
	return errCh, stop, nil
}

// Login runs one popup login and stores the relayed credential.
//
// A non-empty clientID is persisted before the attempt; otherwise the stored
// client ID is used, falling back to the configured one. If the app is not
// serving, the server is started for the duration of the attempt so the popup
// can reach the redirect address.
func (a *App) Login(ctx context.Context, clientID string) error {
	clientID, err := a.resolveClientID(ctx, clientID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	serving := a.serving
	a.mu.Unlock()

	if !serving && clientID != "" {
		_, stop, err := a.startServer(ctx)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
			defer cancel()
			if err := stop(shutdownCtx); err != nil {
				slog.ErrorContext(shutdownCtx, "server shutdown failed", "error", err)
			}
		}()
	}

	token, err := a.coordinator.Login(ctx, clientID)
	if err != nil {
		return err
	}

	if err := a.store.Set(ctx, token); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (a *App) resolveClientID(ctx context.Context, clientID string) (string, error) {
	if clientID != "" {
		if err := a.store.SetClientID(ctx, clientID); err != nil {
			return "", err
		}
		return clientID, nil
	}

	stored, err := a.store.ClientID(ctx)
	if err != nil {
		return "", err
	}
	if stored != "" {
		return stored, nil
	}
	return a.cfg.Spotify.ClientID, nil
}

// Logout clears the stored credential.
func (a *App) Logout(ctx context.Context) error {
	return a.store.Logout(ctx)
}

// Status reports the current session state.
func (a *App) Status(ctx context.Context) (credential.Status, error) {
	st, err := a.store.Status(ctx)
	if err != nil {
		return credential.Status{}, err
	}
	if !st.HasClientID && a.cfg.Spotify.ClientID != "" {
		st.HasClientID = true
	}
	return st, nil
}

// SetClientID persists the Spotify application client ID.
func (a *App) SetClientID(ctx context.Context, id string) error {
	return a.store.SetClientID(ctx, id)
}

// Subscribe registers fn to be called after every logout.
func (a *App) Subscribe(fn func()) (cancel func()) {
	return a.store.Subscribe(fn)
}

// Dashboard loads dashboard data for timeRange. demo forces generated data.
func (a *App) Dashboard(ctx context.Context, timeRange stats.TimeRange, demo bool) (stats.Dashboard, error) {
	if demo {
		return a.stats.Demo(timeRange), nil
	}
	return a.stats.Dashboard(ctx, timeRange)
}

// RedirectURI returns the address to register with Spotify.
func (a *App) RedirectURI() string {
	return a.coordinator.RedirectURI()
}
