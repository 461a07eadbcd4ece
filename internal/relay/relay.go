// Package relay decides, once per page load, which side of the login handshake
// an application instance is on and acts accordingly.
//
// An instance loaded at the redirect address with a credential fragment while
// another instance is waiting for it is a popup relay: it forwards the credential
// and closes itself without rendering or loading data. Every other instance is
// normal; if it carries a credential (plain redirect without popup) the credential
// is persisted directly and the fragment is stripped from the visible address.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/florianilch/tunestats/internal/handshake"
	"github.com/florianilch/tunestats/internal/spotifyauth"
)

// Mode is the role of an application instance.
type Mode string

const (
	ModeNormal     Mode = "normal"
	ModePopupRelay Mode = "popup-relay"
)

// Openers reports whether an opener is waiting for a relayed credential.
type Openers interface {
	Opener() (handshake.Poster, bool)
}

// CredentialSetter persists a credential received outside the popup flow.
type CredentialSetter interface {
	Set(ctx context.Context, token string) error
}

// ClosedReporter is told when a popup instance closes itself without a credential.
type ClosedReporter interface {
	ReportClosed()
}

// Result tells the page what to do after Handle.
type Result struct {
	Mode Mode `json:"mode"`

	// Close instructs the instance to close itself and render nothing further.
	Close bool `json:"close"`

	// Address, if set, replaces the visible address (fragment removed).
	Address string `json:"address,omitempty"`
}

// Detect selects the mode for an instance loaded at loc.
func Detect(loc *url.URL, openers Openers) Mode {
	if spotifyauth.TokenFromFragment(loc) == "" && spotifyauth.ErrorFromFragment(loc) == "" {
		return ModeNormal
	}
	if _, ok := openers.Opener(); !ok {
		return ModeNormal
	}
	return ModePopupRelay
}

// Relay implements the popup side of the handshake.
type Relay struct {
	openers Openers
	store   CredentialSetter
	closed  ClosedReporter
}

// New creates a Relay. closed may be nil.
func New(openers Openers, store CredentialSetter, closed ClosedReporter) (*Relay, error) {
	if openers == nil {
		return nil, fmt.Errorf("missing openers")
	}
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	return &Relay{openers: openers, store: store, closed: closed}, nil
}

// Handle runs the startup logic for an instance loaded at loc.
func (r *Relay) Handle(ctx context.Context, loc *url.URL) (Result, error) {
	token := spotifyauth.TokenFromFragment(loc)
	authErr := spotifyauth.ErrorFromFragment(loc)

	if token == "" && authErr == "" {
		return Result{Mode: ModeNormal}, nil
	}

	// The popup branch takes priority over all normal initialization.
	// An opener that stopped listening since Detect falls through to the redirect path.
	if Detect(loc, r.openers) == ModePopupRelay {
		if opener, ok := r.openers.Opener(); ok {
			return r.relay(ctx, opener, token, authErr), nil
		}
	}

	result := Result{Mode: ModeNormal, Address: spotifyauth.StripFragment(loc)}
	if token == "" {
		slog.InfoContext(ctx, "authorization declined", "error", authErr)
		return result, nil
	}

	// No opener: plain redirect flow, persist directly
	if err := r.store.Set(ctx, token); err != nil {
		return Result{}, fmt.Errorf("storing redirected credential: %w", err)
	}
	slog.InfoContext(ctx, "credential stored from redirect")
	return result, nil
}

func (r *Relay) relay(ctx context.Context, opener handshake.Poster, token, authErr string) Result {
	if token != "" {
		opener.PostMessage(handshake.Message{Type: handshake.TypeLoginSuccess, Token: token})
		slog.DebugContext(ctx, "credential relayed to opener")
	} else {
		slog.InfoContext(ctx, "authorization declined in popup", "error", authErr)
		if r.closed != nil {
			r.closed.ReportClosed()
		}
	}
	return Result{Mode: ModePopupRelay, Close: true}
}
