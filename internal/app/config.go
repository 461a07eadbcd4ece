package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/tunestats/internal/handshake"
	"github.com/florianilch/tunestats/internal/observability"
	"github.com/florianilch/tunestats/internal/spotifyauth"
	"github.com/florianilch/tunestats/internal/stats"
	"github.com/florianilch/tunestats/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the different storage types supported for the credential.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// keyringService names the keyring entry holding the credential.
const keyringService = "tunestats"

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigLogExporter       = observability.ExporterNone
	DefaultConfigServerHost        = "127.0.0.1"
	DefaultConfigServerPort        = 4000
	DefaultConfigShutdownTimeout   = 5 * time.Second
	DefaultConfigAuthStorage       = TokenStorageTypeFile
	DefaultConfigAuthEnvPrefix     = "TUNESTATS_"
	DefaultConfigLoginScreenWidth  = 1920
	DefaultConfigLoginScreenHeight = 1080
	DefaultConfigSpotifyAPIBaseURL = stats.DefaultBaseURL
	DefaultConfigLoginTimeout      = handshake.DefaultTimeout
	DefaultConfigLoginPollInterval = handshake.DefaultPollInterval
	DefaultConfigAuthTokenLifetime = 3600 * time.Second
	DefaultConfigSpotifyAuthURL    = "https://accounts.spotify.com/authorize"
	DefaultConfigSpotifyTokenURL   = "https://accounts.spotify.com/api/token"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type

	// PublicURL is the address the browser reaches the server at. It is the
	// redirect URI registered with Spotify. Defaults to http://host:port/.
	PublicURL string `json:"public_url,omitempty" validate:"omitempty,url"`
}

// Address returns the listen address.
func (s ServerConfig) Address() string {
	return s.Host + ":" + strconv.FormatUint(uint64(s.Port), 10)
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// SpotifyConfig holds Spotify application and endpoint configuration.
type SpotifyConfig struct {
	// ClientID seeds the stored client ID. A stored value set later takes precedence.
	ClientID   string `json:"client_id,omitempty"`
	AuthURL    string `json:"auth_url" validate:"required,url"`
	TokenURL   string `json:"token_url" validate:"required,url"`
	APIBaseURL string `json:"api_base_url" validate:"required,url"`
}

// AuthConfig describes where the credential is stored.
type AuthConfig struct {
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to credential file
	EnvPrefix   string `json:"env_prefix,omitempty"`   // For env storage: variable prefix
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier

	// TokenLifetime is the lifetime applied to every stored credential.
	TokenLifetime time.Duration `json:"token_lifetime" validate:"gt=0"`
}

// NewTokenStore creates a TokenStore from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.File)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(a.EnvPrefix)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(keyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// LoginConfig holds popup login behavior.
type LoginConfig struct {
	Timeout      time.Duration `json:"timeout" validate:"gt=0"`
	PollInterval time.Duration `json:"poll_interval" validate:"gt=0"`
	// Screen size the popup is centered on.
	ScreenWidth  int `json:"screen_width" validate:"gt=0"`
	ScreenHeight int `json:"screen_height" validate:"gt=0"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level             `json:"log_level"`
	LogFormat   LogFormat              `json:"log_format" validate:"oneof=text json"`
	LogExporter observability.Exporter `json:"log_exporter" validate:"oneof=none stdout otlphttp otlpgrpc"`
	Server      ServerConfig           `json:"server"`
	Shutdown    ShutdownConfig         `json:"shutdown"`
	Spotify     SpotifyConfig          `json:"spotify"`
	Auth        AuthConfig             `json:"auth"`
	Login       LoginConfig            `json:"login"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://" + c.Server.Address() + "/"
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Spotify.AuthURL == "" {
		c.Spotify.AuthURL = DefaultConfigSpotifyAuthURL
	}
	if c.Spotify.TokenURL == "" {
		c.Spotify.TokenURL = DefaultConfigSpotifyTokenURL
	}
	if c.Spotify.APIBaseURL == "" {
		c.Spotify.APIBaseURL = DefaultConfigSpotifyAPIBaseURL
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Auth.TokenLifetime == 0 {
		c.Auth.TokenLifetime = DefaultConfigAuthTokenLifetime
	}
	if c.Login.Timeout == 0 {
		c.Login.Timeout = DefaultConfigLoginTimeout
	}
	if c.Login.PollInterval == 0 {
		c.Login.PollInterval = DefaultConfigLoginPollInterval
	}
	if c.Login.ScreenWidth == 0 {
		c.Login.ScreenWidth = DefaultConfigLoginScreenWidth
	}
	if c.Login.ScreenHeight == 0 {
		c.Login.ScreenHeight = DefaultConfigLoginScreenHeight
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "tunestats", "auth.json")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvPrefix == "" {
			c.Auth.EnvPrefix = DefaultConfigAuthEnvPrefix
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if _, err := c.RedirectURI(); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvPrefix == "" {
			return errors.New("env_prefix required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// RequireWritableStorage fails for storage that cannot persist a new credential.
func (c *Config) RequireWritableStorage() error {
	if c.Auth.Storage == TokenStorageTypeEnv {
		return errors.New("login requires writable storage, env is read-only")
	}
	return nil
}

// RedirectURI returns the canonical redirect address derived from Server.PublicURL.
func (c *Config) RedirectURI() (string, error) {
	u, err := url.Parse(c.Server.PublicURL)
	if err != nil {
		return "", fmt.Errorf("invalid server.public_url: %w", err)
	}
	redirect := spotifyauth.RedirectURI(u)
	if redirect == "" {
		return "", fmt.Errorf("invalid server.public_url %q: scheme and host required", c.Server.PublicURL)
	}
	return redirect, nil
}
