package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/casedeck/internal/controller"
)

// DefaultDatastarURL is the browser bundle the page loads when none is
// configured.
const DefaultDatastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Backend BackendConfig     `yaml:"backend"`
	UI      UIConfig          `yaml:"ui"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := c.UI.Validate(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile receives logs for the tui and mcp commands, where stdout is
	// taken. Empty discards them.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
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

// BackendConfig locates the test case REST service.
type BackendConfig struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each request. Zero keeps the transport default.
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the backend configuration.
func (c *BackendConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.RequestURL, validation.By(httpScheme)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// UIConfig tunes the interactive views.
type UIConfig struct {
	SearchDebounce time.Duration `yaml:"search_debounce"`
	NoticeTTL      time.Duration `yaml:"notice_ttl"`
	DatastarURL    string        `yaml:"datastar_url"`
}

// Validate validates the UI configuration.
func (c *UIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SearchDebounce, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.NoticeTTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.DatastarURL, validation.Required),
	)
}

func httpScheme(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https")
	}
	return nil
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
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000/api",
		},
		UI: UIConfig{
			SearchDebounce: controller.DefaultSearchDebounce,
			NoticeTTL:      controller.DefaultNoticeTTL,
			DatastarURL:    DefaultDatastarURL,
		},
	}
}
