package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"

	"github.com/florianilch/tunestats/internal/spotifyauth"
)

// Default timings for a login attempt.
const (
	DefaultPollInterval = 1 * time.Second
	DefaultTimeout      = 60 * time.Second
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock driving the poll and timeout timers.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithFeatures sets the popup geometry passed to the Launcher.
func WithFeatures(f Features) Option {
	return func(c *Coordinator) {
		c.features = f
	}
}

// WithEndpoint overrides the authorization endpoint.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(c *Coordinator) {
		c.endpoint = endpoint
	}
}

// Coordinator runs popup login attempts. At most one attempt is pending at a time.
type Coordinator struct {
	launcher    Launcher
	bus         *Bus
	redirectURI string

	endpoint     oauth2.Endpoint
	clock        clockwork.Clock
	pollInterval time.Duration
	timeout      time.Duration
	features     Features

	pending atomic.Bool
}

// NewCoordinator creates a Coordinator that opens popups through launcher and
// listens for relayed credentials on bus.
func NewCoordinator(launcher Launcher, bus *Bus, redirectURI string, opts ...Option) (*Coordinator, error) {
	if launcher == nil {
		return nil, fmt.Errorf("missing launcher")
	}
	if bus == nil {
		return nil, fmt.Errorf("missing message bus")
	}
	if redirectURI == "" {
		return nil, fmt.Errorf("missing redirect uri")
	}

	c := &Coordinator{
		launcher:     launcher,
		bus:          bus,
		redirectURI:  redirectURI,
		endpoint:     spotifyauth.Endpoint,
		clock:        clockwork.NewRealClock(),
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
		features:     CenteredFeatures(1920, 1080),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RedirectURI returns the canonical redirect address embedded in authorization URLs.
func (c *Coordinator) RedirectURI() string {
	return c.redirectURI
}

// Login performs one login attempt and blocks until it resolves.
//
// Returns the relayed token, or exactly one of ErrMissingClientID, ErrPopupBlocked,
// ErrCancelled, ErrTimeout, ErrLoginInProgress or the context's error.
func (c *Coordinator) Login(ctx context.Context, clientID string) (string, error) {
	authURL := spotifyauth.AuthorizeURL(c.endpoint, clientID, c.redirectURI)
	if authURL == "" {
		return "", ErrMissingClientID
	}

	if !c.pending.CompareAndSwap(false, true) {
		return "", ErrLoginInProgress
	}
	defer c.pending.Store(false)

	logger := slog.With("attempt_id", uuid.NewString())

	// Listen before opening so a fast redirect finds a waiting opener.
	// Buffered so the first relayed token is kept even if the loop is busy;
	// later messages are dropped.
	tokens := make(chan string, 1)
	removeListener := c.bus.AddListener(func(msg Message) {
		if !msg.Valid() {
			return
		}
		select {
		case tokens <- msg.Token:
		default:
		}
	})
	defer removeListener()

	window, err := c.launcher.Open(ctx, authURL, c.features)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", ctxErr
		}
		logger.WarnContext(ctx, "failed to open login popup", "error", err)
		if errors.Is(err, ErrPopupBlocked) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrPopupBlocked, err)
	}
	logger.InfoContext(ctx, "login popup opened", "redirect_uri", c.redirectURI)

	poll := c.clock.NewTicker(c.pollInterval)
	defer poll.Stop()

	timeout := c.clock.NewTimer(c.timeout)
	defer timeout.Stop()

	for {
		select {
		case token := <-tokens:
			closeWindow(ctx, logger, window)
			logger.InfoContext(ctx, "login succeeded")
			return token, nil

		case <-poll.Chan():
			if !window.Closed() {
				continue
			}
			// A credential relayed in the same tick wins over the closed popup
			select {
			case token := <-tokens:
				logger.InfoContext(ctx, "login succeeded")
				return token, nil
			default:
			}
			logger.InfoContext(ctx, "login cancelled by user")
			return "", ErrCancelled

		case <-timeout.Chan():
			closeWindow(ctx, logger, window)
			logger.WarnContext(ctx, "login timed out", "timeout", c.timeout)
			return "", ErrTimeout

		case <-ctx.Done():
			closeWindow(ctx, logger, window)
			return "", ctx.Err()
		}
	}
}

func closeWindow(ctx context.Context, logger *slog.Logger, window Window) {
	if window.Closed() {
		return
	}
	if err := window.Close(); err != nil {
		logger.DebugContext(ctx, "failed to close login popup", "error", err)
	}
}
