package handshake

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	mu         sync.Mutex
	closed     bool
	closeCalls int
}

func (w *fakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeCalls++
	w.closed = true
	return nil
}

// userClose simulates the user closing the popup.
func (w *fakeWindow) userClose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func (w *fakeWindow) closes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeCalls
}

type fakeLauncher struct {
	mu       sync.Mutex
	window   Window
	err      error
	opened   []string
	features []Features
}

func (l *fakeLauncher) Open(_ context.Context, rawURL string, f Features) (Window, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opened = append(l.opened, rawURL)
	l.features = append(l.features, f)
	if l.err != nil {
		return nil, l.err
	}
	return l.window, nil
}

func (l *fakeLauncher) openCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.opened)
}

type loginResult struct {
	token string
	err   error
}

const testRedirect = "http://127.0.0.1:8888"

func newTestCoordinator(t *testing.T, launcher Launcher, bus *Bus, clock clockwork.Clock) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(launcher, bus, testRedirect, WithClock(clock))
	require.NoError(t, err)
	return c
}

func startLogin(ctx context.Context, c *Coordinator, clientID string) <-chan loginResult {
	results := make(chan loginResult, 1)
	go func() {
		token, err := c.Login(ctx, clientID)
		results <- loginResult{token: token, err: err}
	}()
	return results
}

// waitForTimers blocks until the attempt's poll ticker and timeout timer exist.
// The listener is registered before both, so messages posted afterwards are seen.
func waitForTimers(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
}

func receive(t *testing.T, results <-chan loginResult) loginResult {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("login did not resolve")
		return loginResult{}
	}
}

func TestLogin_MessageResolvesOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := NewBus()
	window := &fakeWindow{}
	launcher := &fakeLauncher{window: window}
	c := newTestCoordinator(t, launcher, bus, clock)

	results := startLogin(context.Background(), c, "client-1")
	waitForTimers(t, clock)

	bus.PostMessage(Message{Type: TypeLoginSuccess, Token: "tok-1"})
	r := receive(t, results)
	require.NoError(t, r.err)
	assert.Equal(t, "tok-1", r.token)
	assert.Equal(t, 1, window.closes(), "popup closed after success")

	// Listener and both timers are torn down
	_, listening := bus.Opener()
	assert.False(t, listening)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, clock.BlockUntilContext(ctx, 0))

	clock.Advance(2 * DefaultTimeout)
	select {
	case r := <-results:
		t.Fatalf("unexpected second resolution: %+v", r)
	default:
	}
}

func TestLogin_OpensAuthorizationURLCentered(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := NewBus()
	launcher := &fakeLauncher{window: &fakeWindow{}}
	c, err := NewCoordinator(launcher, bus, testRedirect, WithClock(clock), WithFeatures(CenteredFeatures(1000, 800)))
	require.NoError(t, err)

	results := startLogin(context.Background(), c, "client-1")
	waitForTimers(t, clock)
	bus.PostMessage(Message{Type: TypeLoginSuccess, Token: "tok"})
	receive(t, results)

	require.Equal(t, 1, launcher.openCount())
	u, err := url.Parse(launcher.opened[0])
	require.NoError(t, err)
	assert.Equal(t, "client-1", u.Query().Get("client_id"))
	assert.Equal(t, testRedirect, u.Query().Get("redirect_uri"))
	assert.Equal(t, Features{Width: 450, Height: 730, Left: 275, Top: 35}, launcher.features[0])
}

func TestLogin_PopupClosedCancels(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := NewBus()
	window := &fakeWindow{}
	c := newTestCoordinator(t, &fakeLauncher{window: window}, bus, clock)

	results := startLogin(context.Background(), c, "client-1")
	waitForTimers(t, clock)

	window.userClose()
	clock.Advance(DefaultPollInterval)

	r := receive(t, results)
	assert.ErrorIs(t, r.err, ErrCancelled)
	assert.Empty(t, r.token)
	assert.Zero(t, window.closes(), "coordinator does not close an already-closed popup")

	// A late message has no listener left to affect
	_, listening := bus.Opener()
	assert.False(t, listening)
	bus.PostMessage(Message{Type: TypeLoginSuccess, Token: "late"})
}

func TestLogin_TimeoutForcesPopupClosed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := NewBus()
	window := &fakeWindow{}
	c := newTestCoordinator(t, &fakeLauncher{window: window}, bus, clock)

	results := startLogin(context.Background(), c, "client-1")
	waitForTimers(t, clock)

	clock.Advance(DefaultTimeout)

	r := receive(t, results)
	assert.ErrorIs(t, r.err, ErrTimeout)
	assert.Equal(t, 1, window.closes())
	assert.True(t, window.Closed())
}

func TestLogin_IgnoresMalformedMessages(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := NewBus()
	c := newTestCoordinator(t, &fakeLauncher{window: &fakeWindow{}}, bus, clock)

	results := startLogin(context.Background(), c, "client-1")
	waitForTimers(t, clock)

	bus.PostMessage(Message{Type: "SOMETHING_ELSE", Token: "tok"})
	bus.PostMessage(Message{Type: TypeLoginSuccess})
	clock.Advance(DefaultTimeout)

	assert.ErrorIs(t, receive(t, results).err, ErrTimeout)
}

func TestLogin_TokenWinsOverClosedPopupInSameTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := NewBus()
	window := &fakeWindow{}
	c := newTestCoordinator(t, &fakeLauncher{window: window}, bus, clock)

	results := startLogin(context.Background(), c, "client-1")
	waitForTimers(t, clock)

	bus.PostMessage(Message{Type: TypeLoginSuccess, Token: "tok"})
	window.userClose()
	clock.Advance(DefaultPollInterval)

	r := receive(t, results)
	require.NoError(t, r.err)
	assert.Equal(t, "tok", r.token)
}

func TestLogin_MissingClientID(t *testing.T) {
	launcher := &fakeLauncher{window: &fakeWindow{}}
	c := newTestCoordinator(t, launcher, NewBus(), clockwork.NewFakeClock())

	_, err := c.Login(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingClientID)
	assert.Zero(t, launcher.openCount())
}

func TestLogin_PopupBlocked(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"sentinel", ErrPopupBlocked},
		{"other launcher failure", errors.New("no browser found")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewBus()
			c := newTestCoordinator(t, &fakeLauncher{err: tt.err}, bus, clockwork.NewFakeClock())

			_, err := c.Login(context.Background(), "client-1")
			assert.ErrorIs(t, err, ErrPopupBlocked)

			_, listening := bus.Opener()
			assert.False(t, listening)
		})
	}
}

func TestLogin_SecondAttemptRejectedWhilePending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := NewBus()
	launcher := &fakeLauncher{window: &fakeWindow{}}
	c := newTestCoordinator(t, launcher, bus, clock)

	results := startLogin(context.Background(), c, "client-1")
	waitForTimers(t, clock)

	_, err := c.Login(context.Background(), "client-1")
	assert.ErrorIs(t, err, ErrLoginInProgress)
	assert.Equal(t, 1, launcher.openCount())

	bus.PostMessage(Message{Type: TypeLoginSuccess, Token: "tok"})
	r := receive(t, results)
	require.NoError(t, r.err)
	assert.Equal(t, "tok", r.token)

	// The coordinator is reusable once the attempt resolved
	results = startLogin(context.Background(), c, "client-1")
	waitForTimers(t, clock)
	bus.PostMessage(Message{Type: TypeLoginSuccess, Token: "tok-2"})
	assert.Equal(t, "tok-2", receive(t, results).token)
}

func TestLogin_ContextCancelled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	window := &fakeWindow{}
	c := newTestCoordinator(t, &fakeLauncher{window: window}, NewBus(), clock)

	ctx, cancel := context.WithCancel(context.Background())
	results := startLogin(ctx, c, "client-1")
	waitForTimers(t, clock)
	cancel()

	assert.ErrorIs(t, receive(t, results).err, context.Canceled)
	assert.True(t, window.Closed())
}

func TestLogin_CancelledBeforePopupOpens(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bus := NewBus()
	c := newTestCoordinator(t, &fakeLauncher{err: ctx.Err()}, bus, clockwork.NewFakeClock())

	_, err := c.Login(ctx, "client-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPopupBlocked)
	assert.Equal(t, "cancelled", Kind(err))

	_, listening := bus.Opener()
	assert.False(t, listening)
}

func TestNewCoordinator_Validation(t *testing.T) {
	_, err := NewCoordinator(nil, NewBus(), testRedirect)
	assert.Error(t, err)
	_, err = NewCoordinator(&fakeLauncher{}, nil, testRedirect)
	assert.Error(t, err)
	_, err = NewCoordinator(&fakeLauncher{}, NewBus(), "")
	assert.Error(t, err)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "missing_client_id", Kind(ErrMissingClientID))
	assert.Equal(t, "popup_blocked", Kind(errors.Join(ErrPopupBlocked, errors.New("x"))))
	assert.Equal(t, "cancelled", Kind(ErrCancelled))
	assert.Equal(t, "cancelled", Kind(context.Canceled))
	assert.Equal(t, "timeout", Kind(ErrTimeout))
	assert.Equal(t, "in_progress", Kind(ErrLoginInProgress))
	assert.Equal(t, "error", Kind(errors.New("boom")))
}
