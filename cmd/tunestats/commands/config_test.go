package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/tunestats/internal/app"
	"github.com/florianilch/tunestats/internal/stats"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

// isolateUserConfig keeps a real user config file out of the test.
func isolateUserConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoadConfig_Precedence(t *testing.T) {
	isolateUserConfig(t)
	path := writeConfig(t, `
log_level = "debug"

[server]
host = "0.0.0.0"
port = 5000

[auth]
storage = "file"
file = "/tmp/tunestats-test/auth.json"

[login]
timeout = "30s"
`)

	cfg, err := loadConfig(path, nil, environ(
		"TUNESTATS_SERVER__PORT=6000",
		"TUNESTATS_SPOTIFY__CLIENT_ID=from-env",
		"UNRELATED=1",
	))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(6000), cfg.Server.Port, "env overrides file")
	assert.Equal(t, "from-env", cfg.Spotify.ClientID)
	assert.Equal(t, 30*time.Second, cfg.Login.Timeout)
	assert.Equal(t, time.Second, cfg.Login.PollInterval, "defaults fill the rest")
	assert.Equal(t, "http://0.0.0.0:6000/", cfg.Server.PublicURL)
}

func TestLoadConfig_ConfigPathFromEnv(t *testing.T) {
	isolateUserConfig(t)
	path := writeConfig(t, `log_format = "json"`)

	cfg, err := loadConfig("", nil, environ("TUNESTATS_CONFIG="+path))
	require.NoError(t, err)
	assert.Equal(t, app.LogFormatJSON, cfg.LogFormat)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), nil, environ())
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	isolateUserConfig(t)
	_, err := loadConfig("", nil, environ("TUNESTATS_LOG_FORMAT=xml"))
	assert.Error(t, err)
}

func TestExtractAndTransformFlags(t *testing.T) {
	var got map[string]any
	root := &cli.Command{
		Name: "tunestats",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Commands: []*cli.Command{{
			Name: "dashboard",
			Flags: append(serverFlags(),
				&cli.BoolFlag{Name: "demo"},
			),
			Action: func(_ context.Context, cmd *cli.Command) error {
				got = extractAndTransformFlags(cmd)
				return nil
			},
		}},
	}

	err := root.Run(context.Background(), []string{
		"tunestats", "--config", "x.toml", "--log-level", "debug",
		"dashboard", "--server--port", "4100", "--server--public-url", "http://example.test/", "--demo",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"log_level":         "debug",
		"server.port":       4100,
		"server.public_url": "http://example.test/",
	}, got)
}

func TestPrintDashboard(t *testing.T) {
	d := stats.Mock(1, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), stats.MediumTerm)

	var buf bytes.Buffer
	printDashboard(&buf, d)

	out := buf.String()
	assert.Contains(t, out, "[DEMO MODE]")
	assert.Contains(t, out, "Last 6 Months")
	assert.Contains(t, out, "Top Artist:        The Weeknd")
	assert.Contains(t, out, "  1. Midnight City - The Weeknd")
	assert.Contains(t, out, "Followers:         12543")
}
