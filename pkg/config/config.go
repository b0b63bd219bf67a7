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

// Config holds all configuration options for the harvester
type Config struct {
	// Remote catalog access
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// Download consumer (torrent client) connection
	Consumer ConsumerConfig `yaml:"consumer" json:"consumer"`

	// Download and dispatch settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Durable ledger location
	Ledger LedgerConfig `yaml:"ledger" json:"ledger"`

	// Remote inventory cache settings
	Inventory InventoryConfig `yaml:"inventory" json:"inventory"`

	// Metrics endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CatalogConfig holds catalog API configuration
type CatalogConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	APIKey            string        `yaml:"api_key" json:"api_key"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	Teams             []string      `yaml:"teams" json:"teams"`
	PageSize          int           `yaml:"page_size" json:"page_size"`
	SortField         string        `yaml:"sort_field" json:"sort_field"`
	SortDirection     string        `yaml:"sort_direction" json:"sort_direction"`
	Mode              string        `yaml:"mode" json:"mode"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// ConsumerConfig holds download consumer connection settings
type ConsumerConfig struct {
	Kind     string   `yaml:"kind" json:"kind"`
	Host     string   `yaml:"host" json:"host"`
	Port     int      `yaml:"port" json:"port"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"password"`
	RPCPath  string   `yaml:"rpc_path" json:"rpc_path"`
	HTTPS    bool     `yaml:"https" json:"https"`
	SavePath string   `yaml:"save_path" json:"save_path"`
	Labels   []string `yaml:"labels" json:"labels"`
	Paused   bool     `yaml:"paused" json:"paused"`
}

// DownloadConfig holds download and dispatch configuration
type DownloadConfig struct {
	Dir               string        `yaml:"dir" json:"dir"`
	FilePrefix        string        `yaml:"file_prefix" json:"file_prefix"`
	FileExt           string        `yaml:"file_ext" json:"file_ext"`
	MaxDownloadCount  int           `yaml:"max_download_count" json:"max_download_count"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay" json:"initial_retry_delay"`
	MaxWorkers        int           `yaml:"max_workers" json:"max_workers"`
	RequestInterval   time.Duration `yaml:"request_interval" json:"request_interval"`
	PageRetryDelay    time.Duration `yaml:"page_retry_delay" json:"page_retry_delay"`
}

// LedgerConfig holds the processed-item ledger location
type LedgerConfig struct {
	Path string `yaml:"path" json:"path"`
}

// InventoryConfig holds inventory cache configuration
type InventoryConfig struct {
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// MetricsConfig holds the Prometheus listener configuration
type MetricsConfig struct {
	Listen string `yaml:"listen" json:"listen"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL:           "https://api2.m-team.cc",
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			PageSize:          100,
			SortField:         "SIZE",
			SortDirection:     "ASC",
			Mode:              "normal",
			RequestsPerMinute: 30,
			Timeout:           30 * time.Second,
		},
		Consumer: ConsumerConfig{
			Kind:     "transmission",
			Host:     "localhost",
			Port:     9091,
			RPCPath:  "/transmission/rpc",
			SavePath: "/downloads",
		},
		Download: DownloadConfig{
			Dir:               "./torrents",
			FilePrefix:        "mteam",
			FileExt:           ".torrent",
			MaxDownloadCount:  100,
			MaxRetries:        5,
			InitialRetryDelay: 5 * time.Second,
			MaxWorkers:        4,
			RequestInterval:   time.Second,
			PageRetryDelay:    10 * time.Second,
		},
		Ledger: LedgerConfig{
			Path: "./state.json",
		},
		Inventory: InventoryConfig{
			TTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Catalog
	if apiKey := os.Getenv("SEEDHARVEST_API_KEY"); apiKey != "" {
		c.Catalog.APIKey = apiKey
	}
	if baseURL := os.Getenv("SEEDHARVEST_CATALOG_URL"); baseURL != "" {
		c.Catalog.BaseURL = baseURL
	}
	if userAgent := os.Getenv("SEEDHARVEST_USER_AGENT"); userAgent != "" {
		c.Catalog.UserAgent = userAgent
	}
	if teams := os.Getenv("SEEDHARVEST_TEAMS"); teams != "" {
		c.Catalog.Teams = splitList(teams)
	}

	// Consumer
	if kind := os.Getenv("SEEDHARVEST_CONSUMER_KIND"); kind != "" {
		c.Consumer.Kind = kind
	}
	if host := os.Getenv("SEEDHARVEST_CONSUMER_HOST"); host != "" {
		c.Consumer.Host = host
	}
	if port := os.Getenv("SEEDHARVEST_CONSUMER_PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEEDHARVEST_CONSUMER_PORT: %w", err))
		} else {
			c.Consumer.Port = val
		}
	}
	if user := os.Getenv("SEEDHARVEST_CONSUMER_USERNAME"); user != "" {
		c.Consumer.Username = user
	}
	if password := os.Getenv("SEEDHARVEST_CONSUMER_PASSWORD"); password != "" {
		c.Consumer.Password = password
	}

	// Download
	if dir := os.Getenv("SEEDHARVEST_DOWNLOAD_DIR"); dir != "" {
		c.Download.Dir = dir
	}
	if workers := os.Getenv("SEEDHARVEST_MAX_WORKERS"); workers != "" {
		val, err := strconv.Atoi(workers)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEEDHARVEST_MAX_WORKERS: %w", err))
		} else if val > 0 {
			c.Download.MaxWorkers = val
		}
	}
	if maxCount := os.Getenv("SEEDHARVEST_MAX_DOWNLOAD_COUNT"); maxCount != "" {
		val, err := strconv.Atoi(maxCount)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEEDHARVEST_MAX_DOWNLOAD_COUNT: %w", err))
		} else if val > 0 {
			c.Download.MaxDownloadCount = val
		}
	}

	// Ledger
	if path := os.Getenv("SEEDHARVEST_LEDGER_PATH"); path != "" {
		c.Ledger.Path = path
	}

	// Metrics
	if listen := os.Getenv("SEEDHARVEST_METRICS_LISTEN"); listen != "" {
		c.Metrics.Listen = listen
	}

	// Logging level
	if logLevel := os.Getenv("SEEDHARVEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("SEEDHARVEST_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
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
	home := os.Getenv("HOME")
	locations := []string{
		"seedharvest.yaml",
		"seedharvest.yml",
		"config.yaml",
		filepath.Join(home, ".config", "seedharvest", "config.yaml"),
		filepath.Join(home, ".config", "seedharvest", "config.yml"),
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

	// Catalog
	if c.Catalog.BaseURL == "" {
		errs = append(errs, errors.New("catalog base URL is required"))
	}
	if c.Catalog.APIKey == "" {
		errs = append(errs, errors.New("catalog API key is required"))
	}
	if c.Catalog.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Catalog.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.Catalog.Timeout <= 0 {
		errs = append(errs, errors.New("catalog timeout must be positive"))
	}
	switch strings.ToUpper(c.Catalog.SortDirection) {
	case "ASC", "DESC":
	default:
		errs = append(errs, errors.New("sort direction must be ASC or DESC"))
	}

	// Consumer
	switch strings.ToLower(c.Consumer.Kind) {
	case "transmission", "qbittorrent":
	default:
		errs = append(errs, fmt.Errorf("unknown consumer kind %q", c.Consumer.Kind))
	}
	if c.Consumer.Host == "" {
		errs = append(errs, errors.New("consumer host is required"))
	}
	if c.Consumer.Port <= 0 || c.Consumer.Port > 65535 {
		errs = append(errs, errors.New("consumer port must be between 1 and 65535"))
	}

	// Download
	if c.Download.Dir == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.FilePrefix == "" {
		errs = append(errs, errors.New("file prefix is required"))
	}
	if c.Download.MaxDownloadCount <= 0 {
		errs = append(errs, errors.New("max download count must be positive"))
	}
	if c.Download.MaxRetries <= 0 {
		errs = append(errs, errors.New("max retries must be positive"))
	}
	if c.Download.InitialRetryDelay < 0 {
		errs = append(errs, errors.New("initial retry delay cannot be negative"))
	}
	if c.Download.MaxWorkers <= 0 {
		errs = append(errs, errors.New("max workers must be positive"))
	}
	if c.Download.MaxWorkers > 32 {
		errs = append(errs, errors.New("max workers should not exceed 32"))
	}
	if c.Download.RequestInterval < 0 || c.Download.PageRetryDelay < 0 {
		errs = append(errs, errors.New("intervals cannot be negative"))
	}

	// Ledger and inventory
	if c.Ledger.Path == "" {
		errs = append(errs, errors.New("ledger path is required"))
	}
	if c.Inventory.TTL <= 0 {
		errs = append(errs, errors.New("inventory TTL must be positive"))
	}

	// Logging
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

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Redacted returns a copy of the configuration with secrets masked
func (c *Config) Redacted() *Config {
	clone := *c
	clone.Catalog.Teams = append([]string(nil), c.Catalog.Teams...)
	clone.Consumer.Labels = append([]string(nil), c.Consumer.Labels...)
	clone.Catalog.APIKey = MaskSecret(c.Catalog.APIKey)
	clone.Consumer.Password = MaskSecret(c.Consumer.Password)
	return &clone
}

// MaskSecret masks all but the first 4 and last 4 characters of a secret
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.Catalog.APIKey = apiKey
	}
	if dir, ok := flags["download-dir"].(string); ok && dir != "" {
		c.Download.Dir = dir
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Download.MaxWorkers = workers
	}
	if maxCount, ok := flags["max-count"].(int); ok && maxCount > 0 {
		c.Download.MaxDownloadCount = maxCount
	}
	if ledgerPath, ok := flags["ledger"].(string); ok && ledgerPath != "" {
		c.Ledger.Path = ledgerPath
	}
	if listen, ok := flags["metrics-listen"].(string); ok && listen != "" {
		c.Metrics.Listen = listen
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".seedharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	return config, nil
}

// splitList splits a comma separated list, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
