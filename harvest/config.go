package harvest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/qharvest/browse"
)

// Config is the top-level harvest configuration.
type Config struct {
	// BaseURL is the site root, without trailing slash.
	BaseURL string `yaml:"base_url"`

	// Account is the alias of the harvesting account in the credentials
	// file.
	Account string `yaml:"account"`

	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// MediaDir receives downloaded media files.
	MediaDir string `yaml:"media_dir"`

	// SoftLimit caps subject discovery per run. Zero = no cap.
	SoftLimit int `yaml:"soft_limit"`

	// Importance is the importance level selected when answering
	// questions (index on the site's ordinal scale).
	Importance int `yaml:"importance"`

	// AcceptPolicy decides which of the counterpart's answers are marked
	// acceptable in write mode: "mirror" accepts the same option as the
	// own answer, "all" accepts every option.
	AcceptPolicy string `yaml:"accept_policy"`

	// StatusAddr, when set, serves run progress as JSON on this address.
	StatusAddr string `yaml:"status_addr"`

	Browser   BrowserConfig `yaml:"browser"`
	Backoff   BackoffConfig `yaml:"backoff"`
	Selectors Selectors     `yaml:"selectors"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Stealth          string   `yaml:"stealth"` // headless | headful
	ResourceBlocking []string `yaml:"resource_blocking"`
	XvfbDisplay      string   `yaml:"xvfb_display"`
}

// BackoffConfig controls interaction pacing and transient-failure
// escalation.
type BackoffConfig struct {
	Initial     time.Duration `yaml:"initial"`
	Step        time.Duration `yaml:"step"`
	Ceiling     time.Duration `yaml:"ceiling"`
	MaxAttempts int           `yaml:"max_attempts"`
	Jitter      time.Duration `yaml:"jitter"`
}

func (c *BackoffConfig) policy() browse.Backoff {
	return browse.Backoff{
		Initial:     c.Initial,
		Step:        c.Step,
		Ceiling:     c.Ceiling,
		MaxAttempts: c.MaxAttempts,
		Jitter:      c.Jitter,
	}
}

// AcceptPolicy values.
const (
	AcceptMirror = "mirror"
	AcceptAll    = "all"
)

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.okcupid.com"
	}
	if c.DBPath == "" {
		c.DBPath = "data/qharvest.db"
	}
	if c.MediaDir == "" {
		c.MediaDir = "data/media"
	}
	if c.Importance <= 0 {
		c.Importance = 1 // "somewhat important"
	}
	if c.AcceptPolicy == "" {
		c.AcceptPolicy = AcceptMirror
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff.Initial = 700 * time.Millisecond
	}
	if c.Backoff.Step <= 0 {
		c.Backoff.Step = 300 * time.Millisecond
	}
	if c.Backoff.Ceiling <= 0 {
		c.Backoff.Ceiling = 15 * time.Second
	}
	if c.Backoff.MaxAttempts <= 0 {
		c.Backoff.MaxAttempts = 20
	}
	if c.Backoff.Jitter < 0 {
		c.Backoff.Jitter = 0
	} else if c.Backoff.Jitter == 0 {
		c.Backoff.Jitter = 400 * time.Millisecond
	}
	c.Selectors.merge(defaultSelectors())
}

// Validate rejects configurations the session cannot run with.
func (c *Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("harvest: config: account is required")
	}
	if c.AcceptPolicy != AcceptMirror && c.AcceptPolicy != AcceptAll {
		return fmt.Errorf("harvest: config: unknown accept_policy %q", c.AcceptPolicy)
	}
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("harvest: config: unknown browser.stealth %q", c.Browser.Stealth)
	}
	return nil
}

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harvest: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("harvest: parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
