package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Jira harvester
type Config struct {
	// Jira API endpoint settings
	Jira JiraConfig `yaml:"jira" json:"jira"`

	// Collections to harvest
	Collections []CollectionConfig `yaml:"collections" json:"collections"`

	// Harvest loop settings
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry policy for transient fetch failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output corpus settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// JiraConfig holds Jira instance settings
type JiraConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Fields is the comma-separated field set requested per issue
	Fields string `yaml:"fields" json:"fields"`
	// Account selects stored credentials; empty means anonymous access
	Account string        `yaml:"account" json:"account"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// CollectionConfig identifies one harvest target
type CollectionConfig struct {
	// Key is the project key, e.g. HADOOP
	Key string `yaml:"key" json:"key"`
	// Filter is an optional extra JQL clause ANDed into the search
	Filter string `yaml:"filter,omitempty" json:"filter,omitempty"`
}

// HarvestConfig holds pagination and scheduling settings
type HarvestConfig struct {
	PageSize    int `yaml:"page_size" json:"page_size"`
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// MaxRunDuration bounds a whole run; zero means unbounded
	MaxRunDuration time.Duration `yaml:"max_run_duration" json:"max_run_duration"`
	// StateDirectory holds cursor and dedup snapshots, one set per collection
	StateDirectory string `yaml:"state_directory" json:"state_directory"`
}

// RateLimitConfig holds the shared request ceiling
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds the bounded retry policy for page fetches
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// OutputConfig holds corpus output settings
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultFields is the field set requested per issue.
const DefaultFields = "summary,description,comment,creator,reporter,assignee,labels,priority,status,created,updated,issuetype"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Jira: JiraConfig{
			BaseURL: "https://issues.apache.org/jira",
			Fields:  DefaultFields,
			Timeout: 30 * time.Second,
		},
		Harvest: HarvestConfig{
			PageSize:       50,
			Concurrency:    1,
			StateDirectory: "./state",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			BaseDelay:    1 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Output: OutputConfig{
			BaseDirectory: "./output",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration: defaults, then .env file, then the
// YAML config file, then environment variables, then command line flags.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	// Load .env file if present; a missing file is not an error
	_ = godotenv.Load()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.applyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file. An empty path falls back
// to the default locations; a missing default file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// findConfigFile checks the default config file locations
func (c *Config) findConfigFile() string {
	candidates := []string{
		".jiraharvest.yaml",
		".jiraharvest.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".jiraharvest.yaml"),
			filepath.Join(home, ".config", "jiraharvest", "config.yaml"),
		)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("JIRAHARVEST_BASE_URL"); baseURL != "" {
		c.Jira.BaseURL = baseURL
	}
	if fields := os.Getenv("JIRAHARVEST_FIELDS"); fields != "" {
		c.Jira.Fields = fields
	}
	if account := os.Getenv("JIRAHARVEST_ACCOUNT"); account != "" {
		c.Jira.Account = account
	}
	if projects := os.Getenv("JIRAHARVEST_PROJECTS"); projects != "" {
		c.Collections = nil
		for _, key := range strings.Split(projects, ",") {
			key = strings.TrimSpace(key)
			if key != "" {
				c.Collections = append(c.Collections, CollectionConfig{Key: key})
			}
		}
	}
	if rpm := os.Getenv("JIRAHARVEST_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if pageSize := os.Getenv("JIRAHARVEST_PAGE_SIZE"); pageSize != "" {
		if val, err := strconv.Atoi(pageSize); err == nil && val > 0 {
			c.Harvest.PageSize = val
		}
	}
	if stateDir := os.Getenv("JIRAHARVEST_STATE_DIR"); stateDir != "" {
		c.Harvest.StateDirectory = stateDir
	}
	if outputDir := os.Getenv("JIRAHARVEST_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if logLevel := os.Getenv("JIRAHARVEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	return nil
}

// applyFlags applies command line flag overrides
func (c *Config) applyFlags(flags map[string]interface{}) {
	for name, value := range flags {
		switch name {
		case "base-url":
			if v, ok := value.(string); ok && v != "" {
				c.Jira.BaseURL = v
			}
		case "projects":
			if v, ok := value.([]string); ok && len(v) > 0 {
				c.Collections = nil
				for _, key := range v {
					c.Collections = append(c.Collections, CollectionConfig{Key: key})
				}
			}
		case "rate-limit":
			if v, ok := value.(int); ok && v > 0 {
				c.RateLimit.RequestsPerMinute = v
			}
		case "page-size":
			if v, ok := value.(int); ok && v > 0 {
				c.Harvest.PageSize = v
			}
		case "concurrency":
			if v, ok := value.(int); ok && v > 0 {
				c.Harvest.Concurrency = v
			}
		case "max-run-duration":
			if v, ok := value.(time.Duration); ok && v > 0 {
				c.Harvest.MaxRunDuration = v
			}
		case "state-dir":
			if v, ok := value.(string); ok && v != "" {
				c.Harvest.StateDirectory = v
			}
		case "output":
			if v, ok := value.(string); ok && v != "" {
				c.Output.BaseDirectory = v
			}
		case "account":
			if v, ok := value.(string); ok && v != "" {
				c.Jira.Account = v
			}
		case "log-level":
			if v, ok := value.(string); ok && v != "" {
				c.Logging.Level = v
			}
		}
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Jira.BaseURL == "" {
		return errors.New("jira base URL is required")
	}
	if !strings.HasPrefix(c.Jira.BaseURL, "http://") && !strings.HasPrefix(c.Jira.BaseURL, "https://") {
		return fmt.Errorf("jira base URL must start with http:// or https://, got %q", c.Jira.BaseURL)
	}
	if len(c.Collections) == 0 {
		return errors.New("at least one collection is required")
	}
	for i, coll := range c.Collections {
		if strings.TrimSpace(coll.Key) == "" {
			return fmt.Errorf("collection %d has an empty key", i)
		}
	}
	if c.Harvest.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.Harvest.PageSize)
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Harvest.Concurrency)
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1.0 {
		return fmt.Errorf("retry multiplier must be >= 1.0, got %v", c.Retry.Multiplier)
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		return fmt.Errorf("retry jitter factor must be between 0 and 1, got %v", c.Retry.JitterFactor)
	}
	if c.Harvest.StateDirectory == "" {
		return errors.New("state directory is required")
	}
	if c.Output.BaseDirectory == "" {
		return errors.New("output base directory is required")
	}
	return nil
}
