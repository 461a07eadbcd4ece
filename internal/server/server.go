// Package server exposes the dashboard page and its JSON API on a local address.
//
// The same page serves as the login redirect target: loaded inside a login
// popup it relays the credential to the waiting login attempt, otherwise it
// renders the dashboard.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/florianilch/tunestats/internal/credential"
	"github.com/florianilch/tunestats/internal/relay"
	"github.com/florianilch/tunestats/internal/stats"
)

// DefaultHeartbeat is the keep-alive interval of the event stream.
const DefaultHeartbeat = 25 * time.Second

const (
	pathEvents      = "/api/events"
	pathPopupClosed = "/api/popup/closed"
)

// Session is the login state the API operates on.
type Session interface {
	// Login runs a popup login. An empty clientID uses the stored one.
	Login(ctx context.Context, clientID string) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) (credential.Status, error)
	SetClientID(ctx context.Context, id string) error
	// Subscribe registers fn to be called after every logout.
	Subscribe(fn func()) (cancel func())
}

// Relayer handles a page load at the redirect address.
type Relayer interface {
	Handle(ctx context.Context, loc *url.URL) (relay.Result, error)
}

// Dashboards loads dashboard data.
type Dashboards interface {
	Dashboard(ctx context.Context, timeRange stats.TimeRange) (stats.Dashboard, error)
	Demo(timeRange stats.TimeRange) stats.Dashboard
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock driving event stream heartbeats.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithHeartbeat overrides DefaultHeartbeat.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// Server represents the local HTTP server.
type Server struct {
	mux    *http.ServeMux
	server *http.Server

	session    Session
	relayer    Relayer
	popups     relay.ClosedReporter
	dashboards Dashboards

	clock     clockwork.Clock
	heartbeat time.Duration
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server. popups may be nil.
func New(session Session, relayer Relayer, popups relay.ClosedReporter, dashboards Dashboards, opts ...Option) (*Server, error) {
	if session == nil {
		return nil, fmt.Errorf("missing session")
	}
	if relayer == nil {
		return nil, fmt.Errorf("missing relayer")
	}
	if dashboards == nil {
		return nil, fmt.Errorf("missing dashboards")
	}

	s := &Server{
		session:    session,
		relayer:    relayer,
		popups:     popups,
		dashboards: dashboards,
		clock:      clockwork.NewRealClock(),
		heartbeat:  DefaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}

	logger := slog.Default()
	mw := func(h http.HandlerFunc) http.Handler {
		return applyMiddlewares(h, Logging(logger, pathEvents, pathPopupClosed), Recovery)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", mw(s.handlePage))
	mux.Handle("POST /api/relay", mw(s.handleRelay))
	mux.Handle("POST "+pathPopupClosed, mw(s.handlePopupClosed))
	mux.Handle("POST /api/login", mw(s.handleLogin))
	mux.Handle("POST /api/logout", mw(s.handleLogout))
	mux.Handle("GET /api/session", mw(s.handleSession))
	mux.Handle("PUT /api/client-id", mw(s.handleClientID))
	mux.Handle("GET /api/dashboard", mw(s.handleDashboard))
	mux.Handle("GET "+pathEvents, mw(s.handleEvents))
	s.mux = mux

	return s, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // event streams and pending logins hold responses open
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
