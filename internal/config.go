package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ticker/internal/shortlink"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Feed      FeedConfig        `yaml:"feed"`
	ShareLink ShareLinkConfig   `yaml:"share_link"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Feed.Validate(); err != nil {
		return err
	}
	if err := c.ShareLink.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// FeedConfig holds the feed sources, rendering and window settings.
type FeedConfig struct {
	// SourceDir holds the item source documents.
	SourceDir string `yaml:"source_dir"`
	// MediaDir holds uploaded files, served under MediaURL.
	MediaDir string `yaml:"media_dir"`
	MediaURL string `yaml:"media_url"`
	// OverviewPath is the public feed page item links and share links
	// point to.
	OverviewPath string `yaml:"overview_path"`
	// Timezone names the zone calendar dates are taken in.
	Timezone     string `yaml:"timezone"`
	LookbackDays int    `yaml:"lookback_days"`
	// Watch re-syncs sources on file changes.
	Watch bool `yaml:"watch"`
	// EventThrottle is the minimum gap between feed.updated events.
	EventThrottle time.Duration `yaml:"event_throttle"`
}

// Validate validates the feed configuration.
func (c *FeedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SourceDir, validation.Required),
		validation.Field(&c.MediaDir, validation.Required),
		validation.Field(&c.MediaURL, validation.Required, validation.By(absolutePath)),
		validation.Field(&c.OverviewPath, validation.Required),
		validation.Field(&c.Timezone, validation.Required, validation.By(knownZone)),
		validation.Field(&c.LookbackDays, validation.Min(0), validation.Max(366)),
		validation.Field(&c.EventThrottle, validation.Min(time.Duration(0))),
	)
}

// Location loads the configured zone.
func (c *FeedConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func absolutePath(v interface{}) error {
	s, _ := v.(string)
	if !strings.HasPrefix(s, "/") {
		return errors.New("must start with /")
	}
	return nil
}

func knownZone(v interface{}) error {
	s, _ := v.(string)
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Errorf("unknown time zone %q", s)
	}
	return nil
}

// ShareLinkConfig holds short code settings.
type ShareLinkConfig struct {
	CodeLength  int `yaml:"code_length"`
	MaxAttempts int `yaml:"max_attempts"`
}

// Validate validates the share link configuration.
func (c *ShareLinkConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CodeLength, validation.Required, validation.Min(4), validation.Max(32)),
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced on editing endpoints:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./ticker.db",
		},
		Feed: FeedConfig{
			SourceDir:     "./feed",
			MediaDir:      "./media",
			MediaURL:      "/media",
			OverviewPath:  "/newsticker/",
			Timezone:      "Europe/Berlin",
			LookbackDays:  7,
			Watch:         true,
			EventThrottle: 2 * time.Second,
		},
		ShareLink: ShareLinkConfig{
			CodeLength:  shortlink.DefaultCodeLength,
			MaxAttempts: shortlink.DefaultMaxAttempts,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
