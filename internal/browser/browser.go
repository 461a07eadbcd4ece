// Package browser opens login popups in the system web browser.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"github.com/skratchdot/open-golang/open"

	"github.com/florianilch/tunestats/internal/handshake"
)

// linuxBrowsers lists fallback commands in order of preference.
var linuxBrowsers = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// Launcher opens URLs in the default browser and tracks the most recent tab.
//
// A system browser gives no handle on its tabs. A Tab is therefore closed only
// when the app page inside it reports so (ReportClosed) or when Close is called.
type Launcher struct {
	// open runs the platform opener; swapped in tests
	open func(url string) error

	mu      sync.Mutex
	current *Tab
}

// Compile-time check to ensure Launcher implements handshake.Launcher
var _ handshake.Launcher = (*Launcher)(nil)

// NewLauncher creates a Launcher using the system browser.
func NewLauncher() *Launcher {
	return &Launcher{open: openURL}
}

// Open opens url in the default browser. Browsers ignore popup geometry for
// top-level tabs, so features are only logged.
// Returns an error wrapping handshake.ErrPopupBlocked if no browser could be started.
func (l *Launcher) Open(ctx context.Context, url string, features handshake.Features) (handshake.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "opening login popup", "features", features.String())

	if err := l.open(url); err != nil {
		return nil, fmt.Errorf("%w: %w", handshake.ErrPopupBlocked, err)
	}

	tab := &Tab{}
	l.mu.Lock()
	if l.current != nil {
		l.current.markClosed()
	}
	l.current = tab
	l.mu.Unlock()

	return tab, nil
}

// ReportClosed marks the most recently opened tab as closed.
// Called when the app page inside the popup closes itself without a credential.
func (l *Launcher) ReportClosed() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil {
		l.current.markClosed()
	}
}

// Tab is a browser tab opened by a Launcher.
type Tab struct {
	mu     sync.Mutex
	closed bool
}

// Compile-time check to ensure Tab implements handshake.Window
var _ handshake.Window = (*Tab)(nil)

// Closed reports whether the tab has been reported or marked closed.
func (t *Tab) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close marks the tab closed. The page inside closes itself once it has relayed.
func (t *Tab) Close() error {
	t.markClosed()
	return nil
}

func (t *Tab) markClosed() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// openURL opens url with open-golang and falls back to platform-specific commands.
func openURL(url string) error {
	err := open.Run(url)
	if err == nil {
		return nil
	}

	slog.Debug("open-golang failed, trying platform-specific commands", "error", err)

	cmd, err := platformCommand(url)
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	return nil
}

func platformCommand(url string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	case "linux":
		for _, browser := range linuxBrowsers {
			if _, err := exec.LookPath(browser); err == nil {
				return exec.Command(browser, url), nil
			}
		}
		return nil, fmt.Errorf("no suitable browser found on Linux system")
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}
