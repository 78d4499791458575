package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the downloader
type Config struct {
	// Account credentials
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Browser session settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Track filter predicates
	Filters FiltersConfig `yaml:"filters" json:"filters"`

	// Rate limiting for remote fetches
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry behaviour for transfers
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CredentialsConfig holds the account login credentials
type CredentialsConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	OutputDir         string        `yaml:"output_dir" json:"output_dir"`
	Formats           []string      `yaml:"formats" json:"formats"`
	WaitForGeneration bool          `yaml:"wait_for_generation" json:"wait_for_generation"`
	MaxWaitTime       time.Duration `yaml:"max_wait_time" json:"max_wait_time"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// BrowserConfig holds browser session configuration
type BrowserConfig struct {
	Headless       bool          `yaml:"headless" json:"headless"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	ElementTimeout time.Duration `yaml:"element_timeout" json:"element_timeout"`
	SettleInterval time.Duration `yaml:"settle_interval" json:"settle_interval"`
	MaxScrolls     int           `yaml:"max_scrolls" json:"max_scrolls"`
}

// FiltersConfig holds the optional track filter predicates. Absent keys
// impose no constraint; HasVideo/HasAudio distinguish unset from false.
type FiltersConfig struct {
	Title    string `yaml:"title" json:"title"`
	Status   string `yaml:"status" json:"status"`
	HasVideo *bool  `yaml:"has_video" json:"has_video"`
	HasAudio *bool  `yaml:"has_audio" json:"has_audio"`
	MinDate  string `yaml:"min_date" json:"min_date"`
	MaxDate  string `yaml:"max_date" json:"max_date"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds transfer retry configuration
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// ValidFormats lists the downloadable rendition kinds.
var ValidFormats = []string{"mp3", "mp4", "wav"}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Download: DownloadConfig{
			OutputDir:         "downloads",
			Formats:           []string{"mp3", "mp4", "wav"},
			WaitForGeneration: true,
			MaxWaitTime:       5 * time.Minute,
			Timeout:           30 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:       false,
			BaseURL:        "https://suno.com",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ElementTimeout: 20 * time.Second,
			SettleInterval: 2 * time.Second,
			MaxScrolls:     20,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "sunograb.log",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if username := os.Getenv("SUNOGRAB_USERNAME"); username != "" {
		c.Credentials.Username = username
	}
	if password := os.Getenv("SUNOGRAB_PASSWORD"); password != "" {
		c.Credentials.Password = password
	}
	if outputDir := os.Getenv("SUNOGRAB_OUTPUT_DIR"); outputDir != "" {
		c.Download.OutputDir = outputDir
	}
	if formats := os.Getenv("SUNOGRAB_FORMATS"); formats != "" {
		c.Download.Formats = splitList(formats)
	}
	if headless := os.Getenv("SUNOGRAB_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) == "true"
	}
	if baseURL := os.Getenv("SUNOGRAB_BASE_URL"); baseURL != "" {
		c.Browser.BaseURL = baseURL
	}
	if logLevel := os.Getenv("SUNOGRAB_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if rpm := os.Getenv("SUNOGRAB_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".sunograb.yaml",
		".sunograb.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "sunograb", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "sunograb", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".sunograb.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Download.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if len(c.Download.Formats) == 0 {
		errs = append(errs, errors.New("at least one download format is required"))
	}
	for _, f := range c.Download.Formats {
		if !isValidFormat(f) {
			errs = append(errs, fmt.Errorf("unknown format %q (valid: %s)", f, strings.Join(ValidFormats, ", ")))
		}
	}
	if c.Download.MaxWaitTime < 0 {
		errs = append(errs, errors.New("max wait time cannot be negative"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Browser.BaseURL == "" {
		errs = append(errs, errors.New("browser base URL is required"))
	}
	if c.Browser.ElementTimeout <= 0 {
		errs = append(errs, errors.New("element timeout must be positive"))
	}
	if c.Browser.SettleInterval <= 0 {
		errs = append(errs, errors.New("settle interval must be positive"))
	}
	if c.Browser.MaxScrolls <= 0 {
		errs = append(errs, errors.New("max scroll attempts must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map override; absent keys leave file/env values.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if username, ok := flags["username"].(string); ok && username != "" {
		c.Credentials.Username = username
	}
	if password, ok := flags["password"].(string); ok && password != "" {
		c.Credentials.Password = password
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Download.OutputDir = outputDir
	}
	if formats, ok := flags["formats"].([]string); ok && len(formats) > 0 {
		c.Download.Formats = formats
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if noWait, ok := flags["no-wait"].(bool); ok && noWait {
		c.Download.WaitForGeneration = false
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}

	if title, ok := flags["filter-title"].(string); ok && title != "" {
		c.Filters.Title = title
	}
	if status, ok := flags["filter-status"].(string); ok && status != "" {
		c.Filters.Status = status
	}
	if hasVideo, ok := flags["has-video"].(bool); ok && hasVideo {
		c.Filters.HasVideo = &hasVideo
	}
	if hasAudio, ok := flags["has-audio"].(bool); ok && hasAudio {
		c.Filters.HasAudio = &hasAudio
	}
	if minDate, ok := flags["min-date"].(string); ok && minDate != "" {
		c.Filters.MinDate = minDate
	}
	if maxDate, ok := flags["max-date"].(string); ok && maxDate != "" {
		c.Filters.MaxDate = maxDate
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".sunograb.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
