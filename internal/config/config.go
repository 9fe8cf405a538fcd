package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"Feedlytic/internal/session"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultHints are shown in turn by the loading indicator
var DefaultHints = []string{
	"Scanning top headlines…",
	"Gathering insights from trusted sources…",
	"Analyzing trending stories and summaries…",
	"Picking the most relevant updates for you…",
}

// Config holds application configuration
type Config struct {
	BaseURL    string `yaml:"base_url"`
	DBPath     string `yaml:"db_path"`
	LogDir     string `yaml:"log_dir"`
	SessionKey string `yaml:"session_key"`

	Plain     bool `yaml:"plain"`     // Line-mode REPL instead of the TUI
	Markdown  bool `yaml:"markdown"`  // Render assistant replies as markdown
	Ephemeral bool `yaml:"ephemeral"` // Keep the session id in memory only
	Debug     bool `yaml:"debug"`
	Telemetry bool `yaml:"telemetry"` // Export traces and metrics to the log dir

	Hints        []string      `yaml:"hints"`
	HintInterval time.Duration `yaml:"hint_interval"`
}

// DefaultConfig returns the configuration used when nothing else is set
func DefaultConfig() Config {
	return Config{
		DBPath:       "feedlytic.db",
		LogDir:       "logs",
		SessionKey:   session.DefaultKey,
		Hints:        DefaultHints,
		HintInterval: 2600 * time.Millisecond,
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// a .env file in the working directory and the environment, in that order
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	// VITE_API_BASE_URL is what the web client reads; accept it for shared .env files
	if v := os.Getenv("VITE_API_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("FEEDLYTIC_API_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("FEEDLYTIC_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("FEEDLYTIC_LOG_DIR"); v != "" {
		c.LogDir = v
	}
}

// Validate checks the settings that have no usable default
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("API base URL is not set (use --base-url or FEEDLYTIC_API_BASE_URL)")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid API base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API base URL %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid API base URL %q: missing host", c.BaseURL)
	}
	if c.HintInterval <= 0 {
		return fmt.Errorf("hint interval must be positive, got %s", c.HintInterval)
	}
	return nil
}

// LoaderHints returns the configured hints, falling back to the defaults
func (c Config) LoaderHints() []string {
	if len(c.Hints) == 0 {
		return DefaultHints
	}
	return c.Hints
}
