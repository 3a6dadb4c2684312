// Package config loads CLI and server settings from a JSON file and the
// environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied by MergeWithDefaults.
const (
	DefaultAPIURL       = "http://localhost:8080"
	DefaultPollInterval = 2 * time.Second
	DefaultPollMaxTicks = 60
	DefaultDraftTTL     = 30 * time.Minute
)

// Duration is a time.Duration that reads "2s" style strings from JSON.
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds")
	}
	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds client settings. All fields are optional; flags override them.
type Config struct {
	APIURL       string   `json:"api_url,omitempty" validate:"omitempty,url"`
	Token        string   `json:"token,omitempty"`
	PollInterval Duration `json:"poll_interval,omitempty" validate:"gte=0"`
	PollMaxTicks int      `json:"poll_max_ticks,omitempty" validate:"gte=0,lte=10000"`

	Resume     string `json:"resume,omitempty"`
	JobURL     string `json:"job_url,omitempty" validate:"omitempty,url"`
	UseBrowser bool   `json:"use_browser,omitempty"`

	RedisURL string   `json:"redis_url,omitempty"`
	DraftTTL Duration `json:"draft_ttl,omitempty" validate:"gte=0"`

	Verbose bool `json:"verbose,omitempty"`
}

// LoadConfig reads a JSON config file. Relative paths resolve against the
// working directory.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// Validate checks field ranges and formats.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.Resume != "" {
		if _, err := os.Stat(c.Resume); os.IsNotExist(err) {
			return fmt.Errorf("config error: resume file not found: %s", c.Resume)
		}
	}
	return nil
}

// ApplyEnv overrides fields from COVERLETTER_* and related variables.
// Malformed numeric values are reported rather than ignored.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("COVERLETTER_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("COVERLETTER_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("COVERLETTER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COVERLETTER_POLL_INTERVAL: %w", err)
		}
		c.PollInterval = Duration(d)
	}
	if v := os.Getenv("COVERLETTER_POLL_MAX_TICKS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COVERLETTER_POLL_MAX_TICKS: %w", err)
		}
		c.PollMaxTicks = n
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("DRAFT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DRAFT_TTL: %w", err)
		}
		c.DraftTTL = Duration(d)
	}
	return nil
}

// MergeWithDefaults returns a copy with zero fields filled from defaults.
// Booleans are not merged since unset and false look the same.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.APIURL == "" {
		result.APIURL = defaults.APIURL
	}
	if result.Token == "" {
		result.Token = defaults.Token
	}
	if result.PollInterval == 0 {
		result.PollInterval = defaults.PollInterval
	}
	if result.PollMaxTicks == 0 {
		result.PollMaxTicks = defaults.PollMaxTicks
	}
	if result.Resume == "" {
		result.Resume = defaults.Resume
	}
	if result.JobURL == "" {
		result.JobURL = defaults.JobURL
	}
	if result.RedisURL == "" {
		result.RedisURL = defaults.RedisURL
	}
	if result.DraftTTL == 0 {
		result.DraftTTL = defaults.DraftTTL
	}

	return result
}

// Defaults returns the built-in client settings.
func Defaults() Config {
	return Config{
		APIURL:       DefaultAPIURL,
		PollInterval: Duration(DefaultPollInterval),
		PollMaxTicks: DefaultPollMaxTicks,
		DraftTTL:     Duration(DefaultDraftTTL),
	}
}
