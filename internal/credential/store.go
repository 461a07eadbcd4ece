// Package credential owns the bearer credential for the music API: the token,
// its absolute expiry and the user-supplied client identifier.
//
// Every read is self-expiring: Get clears an expired credential and notifies
// subscribers, so there is no background sweep.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/florianilch/tunestats/internal/tokenstore"
)

// Persisted keys. Token and expiry are always written and cleared together.
const (
	KeyAccessToken = "spotify_access_token"
	KeyTokenExpiry = "spotify_token_expiry"
	KeyClientID    = "spotify_client_id"
)

// DefaultLifetime is the fixed credential lifetime applied by Set.
const DefaultLifetime = 3600 * time.Second

// ErrNotAuthenticated is returned when no unexpired credential is stored.
var ErrNotAuthenticated = errors.New("not authenticated")

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for expiry computation.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithLifetime overrides DefaultLifetime.
func WithLifetime(lifetime time.Duration) Option {
	return func(s *Store) {
		if lifetime > 0 {
			s.lifetime = lifetime
		}
	}
}

// Store is the single source of truth for "is the user authenticated".
type Store struct {
	backend  tokenstore.TokenStore
	clock    clockwork.Clock
	lifetime time.Duration

	mu          sync.Mutex
	subscribers map[uint64]func()
	nextID      uint64
	// stale identifies the last credential expired by Get, so a backend that
	// cannot delete it does not broadcast a logout on every read.
	stale string
}

// NewStore creates a Store persisting into backend.
func NewStore(backend tokenstore.TokenStore, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("missing token store")
	}

	s := &Store{
		backend:     backend,
		clock:       clockwork.NewRealClock(),
		lifetime:    DefaultLifetime,
		subscribers: make(map[uint64]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Set persists token with an absolute expiry of now+lifetime.
// The token is opaque and not validated.
func (s *Store) Set(ctx context.Context, token string) error {
	expiresAt := s.clock.Now().Add(s.lifetime)

	err := s.backend.Set(ctx, map[string]string{
		KeyAccessToken: token,
		KeyTokenExpiry: strconv.FormatInt(expiresAt.UnixMilli(), 10),
	})
	if err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}

	s.mu.Lock()
	s.stale = ""
	s.mu.Unlock()

	slog.DebugContext(ctx, "credential stored", "expires_at", expiresAt)
	return nil
}

// Get returns the stored token if it is present and unexpired.
//
// Returns ErrNotAuthenticated when nothing is stored. An expired, partial or
// unreadable credential is logged out before ErrNotAuthenticated is returned,
// even when the backend cannot delete it.
func (s *Store) Get(ctx context.Context) (string, error) {
	token, expiresAt, err := s.read(ctx)
	if err != nil {
		return "", err
	}
	if token == "" && expiresAt.IsZero() {
		return "", ErrNotAuthenticated
	}

	if token == "" || expiresAt.IsZero() || !s.clock.Now().Before(expiresAt) {
		s.expire(ctx, token, expiresAt)
		return "", ErrNotAuthenticated
	}

	return token, nil
}

// expire logs out a stale credential once. Read-only backends such as
// environment variables keep returning it, and later reads stay silent.
func (s *Store) expire(ctx context.Context, token string, expiresAt time.Time) {
	id := token + "@" + strconv.FormatInt(expiresAt.UnixMilli(), 10)

	s.mu.Lock()
	seen := s.stale == id
	s.stale = id
	s.mu.Unlock()
	if seen {
		return
	}

	slog.InfoContext(ctx, "credential expired or incomplete, logging out")
	// Logout reports the clear failure; the credential is absent either way
	_ = s.Logout(ctx)
}

// Expiry returns the stored absolute expiry without enforcing it.
func (s *Store) Expiry(ctx context.Context) (time.Time, error) {
	_, expiresAt, err := s.read(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if expiresAt.IsZero() {
		return time.Time{}, ErrNotAuthenticated
	}
	return expiresAt, nil
}

// read loads both fields. A missing field is returned as its zero value;
// an unparsable expiry is treated as missing.
func (s *Store) read(ctx context.Context) (string, time.Time, error) {
	token, err := s.backend.Get(ctx, KeyAccessToken)
	if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
		return "", time.Time{}, fmt.Errorf("reading credential: %w", err)
	}

	raw, err := s.backend.Get(ctx, KeyTokenExpiry)
	if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
		return "", time.Time{}, fmt.Errorf("reading credential expiry: %w", err)
	}

	var expiresAt time.Time
	if raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			slog.WarnContext(ctx, "ignoring unparsable credential expiry")
		} else {
			expiresAt = time.UnixMilli(ms)
		}
	}

	return token, expiresAt, nil
}

// Logout clears token and expiry and notifies every subscriber once.
// Subscribers are notified even if clearing fails, so views never keep a
// credential the store no longer vouches for.
func (s *Store) Logout(ctx context.Context) error {
	err := s.backend.Delete(ctx, KeyAccessToken, KeyTokenExpiry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to clear credential", "error", err)
	}

	s.notify()

	if err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	return nil
}

// Subscribe registers fn to be called after every logout.
// The returned cancel function is safe to call more than once.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// Called outside the lock so subscribers may unsubscribe or read the store
	for _, fn := range fns {
		fn()
	}
}

// ClientID returns the persisted application identity, or "" if none is stored.
func (s *Store) ClientID(ctx context.Context) (string, error) {
	id, err := s.backend.Get(ctx, KeyClientID)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading client id: %w", err)
	}
	return id, nil
}

// SetClientID persists the application identity. It is not a secret.
func (s *Store) SetClientID(ctx context.Context, id string) error {
	if err := s.backend.Set(ctx, map[string]string{KeyClientID: id}); err != nil {
		return fmt.Errorf("persisting client id: %w", err)
	}
	return nil
}

// Status is a point-in-time view of the stored session.
type Status struct {
	Authenticated bool      `json:"authenticated"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
	HasClientID   bool      `json:"has_client_id"`
}

// Status reports whether an unexpired credential is stored. Like Get, it logs
// out an expired credential.
func (s *Store) Status(ctx context.Context) (Status, error) {
	var st Status

	_, err := s.Get(ctx)
	switch {
	case err == nil:
		st.Authenticated = true
		if st.ExpiresAt, err = s.Expiry(ctx); err != nil {
			return Status{}, err
		}
	case !errors.Is(err, ErrNotAuthenticated):
		return Status{}, err
	}

	id, err := s.ClientID(ctx)
	if err != nil {
		return Status{}, err
	}
	st.HasClientID = id != ""
	return st, nil
}
