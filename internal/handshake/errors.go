package handshake

import (
	"context"
	"errors"
)

var (
	// ErrMissingClientID is returned without opening a popup when no client ID is configured.
	ErrMissingClientID = errors.New("no client id provided")

	// ErrCancelled is returned when the popup was closed before a credential arrived.
	ErrCancelled = errors.New("login cancelled: popup was closed")

	// ErrTimeout is returned when no credential arrived within the login timeout.
	ErrTimeout = errors.New("login timed out: please try again")

	// ErrLoginInProgress is returned when a login is attempted while another one is pending.
	ErrLoginInProgress = errors.New("login already in progress")
)

// Kind classifies a Login error for display. Returns "" for nil and "error" for
// anything unclassified.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingClientID):
		return "missing_client_id"
	case errors.Is(err, ErrPopupBlocked):
		return "popup_blocked"
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrLoginInProgress):
		return "in_progress"
	default:
		return "error"
	}
}
