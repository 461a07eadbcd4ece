package handshake

import (
	"context"
	"errors"
	"fmt"
)

// Popup geometry.
const (
	PopupWidth  = 450
	PopupHeight = 730
)

// ErrPopupBlocked is returned by a Launcher when the host refused to create a browsing context.
var ErrPopupBlocked = errors.New("popup blocked: allow popups for this site")

// Window is a handle to a browsing context outside the caller's direct control.
type Window interface {
	// Closed reports whether the context has been closed, by the user or by Close.
	Closed() bool

	// Close closes the context. Closing an already-closed window is a no-op.
	Close() error
}

// Launcher creates browsing contexts.
type Launcher interface {
	// Open creates a context at url. Returns an error wrapping ErrPopupBlocked
	// if the host refused to create it.
	Open(ctx context.Context, url string, features Features) (Window, error)
}

// Features describes a fixed-size, chrome-less popup.
type Features struct {
	Width  int
	Height int
	Left   int
	Top    int
}

// CenteredFeatures returns popup features centered on a screen of the given size.
func CenteredFeatures(screenWidth, screenHeight int) Features {
	return Features{
		Width:  PopupWidth,
		Height: PopupHeight,
		Left:   screenWidth/2 - PopupWidth/2,
		Top:    screenHeight/2 - PopupHeight/2,
	}
}

// String renders f as a window feature list.
func (f Features) String() string {
	return fmt.Sprintf("menubar=no,location=no,resizable=no,scrollbars=no,status=no,width=%d,height=%d,top=%d,left=%d",
		f.Width, f.Height, f.Top, f.Left)
}
