package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/tunestats/internal/credential"
	"github.com/florianilch/tunestats/internal/handshake"
	"github.com/florianilch/tunestats/internal/stats"
	"github.com/florianilch/tunestats/internal/tokenstore"
)

type memoryBackend struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", tokenstore.ErrNotFound
	}
	return v, nil
}

func (m *memoryBackend) Set(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *memoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

type tab struct {
	mu     sync.Mutex
	closed bool
}

func (t *tab) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *tab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// redirectingLauncher plays the browser: it follows the authorization URL to
// the redirect address with the given fragment and posts it to the relay endpoint.
type redirectingLauncher struct {
	fragment string

	mu      sync.Mutex
	authURL string
	current *tab
	errs    chan error
}

func (l *redirectingLauncher) ReportClosed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil {
		_ = l.current.Close()
	}
}

func (l *redirectingLauncher) Open(_ context.Context, rawURL string, _ handshake.Features) (handshake.Window, error) {
	opened := &tab{}
	l.mu.Lock()
	l.authURL = rawURL
	l.current = opened
	l.mu.Unlock()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	redirect := u.Query().Get("redirect_uri")

	go func() {
		body := `{"location":"` + redirect + `/#` + l.fragment + `"}`
		resp, err := http.Post(redirect+"/api/relay", "application/json", strings.NewReader(body))
		if err == nil {
			resp.Body.Close()
		}
		l.errs <- err
	}()

	return opened, nil
}

func freePort(t *testing.T) uint16 {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return uint16(port)
}

func newTestApp(t *testing.T, launcher handshake.Launcher) (*App, *memoryBackend) {
	t.Helper()

	cfg := &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: freePort(t)},
		Auth:   AuthConfig{Storage: TokenStorageTypeFile, File: t.TempDir() + "/auth.json"},
		Login:  LoginConfig{Timeout: 10 * time.Second, PollInterval: 50 * time.Millisecond},
	}
	require.NoError(t, cfg.ApplyDefaults())

	backend := &memoryBackend{values: map[string]string{}}
	a, err := New(cfg, WithLauncher(launcher), WithTokenStore(backend))
	require.NoError(t, err)
	return a, backend
}

func TestApp_LoginThroughPopup(t *testing.T) {
	launcher := &redirectingLauncher{
		fragment: "access_token=live-token&token_type=Bearer&expires_in=3600",
		errs:     make(chan error, 1),
	}
	a, backend := newTestApp(t, launcher)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, "client-1"))
	require.NoError(t, <-launcher.errs)

	assert.Equal(t, "live-token", backend.values[credential.KeyAccessToken])
	assert.Equal(t, "client-1", backend.values[credential.KeyClientID])
	assert.Contains(t, launcher.authURL, "client_id=client-1")
	assert.Contains(t, launcher.authURL, "response_type=token")

	st, err := a.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Authenticated)

	// The temporary server is gone after the attempt
	l, err := net.Listen("tcp", a.cfg.Server.Address())
	require.NoError(t, err)
	require.NoError(t, l.Close())
}

func TestApp_LoginDeclinedIsCancelled(t *testing.T) {
	launcher := &redirectingLauncher{
		fragment: "error=access_denied",
		errs:     make(chan error, 1),
	}
	a, backend := newTestApp(t, launcher)

	err := a.Login(context.Background(), "client-1")
	assert.ErrorIs(t, err, handshake.ErrCancelled)
	require.NoError(t, <-launcher.errs)

	_, ok := backend.values[credential.KeyAccessToken]
	assert.False(t, ok)
}

func TestApp_LoginWithoutClientID(t *testing.T) {
	a, _ := newTestApp(t, &redirectingLauncher{errs: make(chan error, 1)})

	err := a.Login(context.Background(), "")
	assert.ErrorIs(t, err, handshake.ErrMissingClientID)
}

func TestApp_LoginUsesStoredClientID(t *testing.T) {
	launcher := &redirectingLauncher{
		fragment: "access_token=T",
		errs:     make(chan error, 1),
	}
	a, _ := newTestApp(t, launcher)
	ctx := context.Background()

	require.NoError(t, a.SetClientID(ctx, "stored-id"))
	require.NoError(t, a.Login(ctx, ""))
	require.NoError(t, <-launcher.errs)

	assert.Contains(t, launcher.authURL, "client_id=stored-id")
}

func TestApp_DirectRedirectPersists(t *testing.T) {
	a, backend := newTestApp(t, &redirectingLauncher{errs: make(chan error, 1)})

	req := httptest.NewRequest(http.MethodPost, "/api/relay",
		strings.NewReader(`{"location":"http://127.0.0.1:4000/#access_token=direct"}`))
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mode":"normal","close":false,"address":"http://127.0.0.1:4000/"}`, rec.Body.String())
	assert.Equal(t, "direct", backend.values[credential.KeyAccessToken])
}

func TestApp_LogoutNotifiesSubscribers(t *testing.T) {
	a, _ := newTestApp(t, &redirectingLauncher{errs: make(chan error, 1)})
	ctx := context.Background()

	var notified int
	cancel := a.Subscribe(func() { notified++ })
	defer cancel()

	require.NoError(t, a.store.Set(ctx, "T"))
	require.NoError(t, a.Logout(ctx))
	assert.Equal(t, 1, notified)

	st, err := a.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Authenticated)
}

func TestApp_DashboardDemo(t *testing.T) {
	a, _ := newTestApp(t, &redirectingLauncher{errs: make(chan error, 1)})

	d, err := a.Dashboard(context.Background(), stats.LongTerm, true)
	require.NoError(t, err)
	assert.True(t, d.Demo)

	// Without a credential the live path falls back to demo data as well
	d, err = a.Dashboard(context.Background(), stats.ShortTerm, false)
	require.NoError(t, err)
	assert.True(t, d.Demo)
}

func TestApp_StartStopsOnCancel(t *testing.T) {
	a, _ := newTestApp(t, &redirectingLauncher{errs: make(chan error, 1)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + a.cfg.Server.Address() + "/api/session")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}
