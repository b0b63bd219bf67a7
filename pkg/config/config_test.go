package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Catalog.PageSize != 100 {
		t.Errorf("Expected default page size to be 100, got %d", config.Catalog.PageSize)
	}

	if config.Download.MaxRetries != 5 {
		t.Errorf("Expected default max retries to be 5, got %d", config.Download.MaxRetries)
	}

	if config.Download.InitialRetryDelay != 5*time.Second {
		t.Errorf("Expected default initial retry delay to be 5s, got %v", config.Download.InitialRetryDelay)
	}

	if config.Inventory.TTL != 5*time.Minute {
		t.Errorf("Expected default inventory TTL to be 5m, got %v", config.Inventory.TTL)
	}

	if config.Ledger.Path != "./state.json" {
		t.Errorf("Expected default ledger path to be ./state.json, got %s", config.Ledger.Path)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SEEDHARVEST_API_KEY", "test-api-key")
	t.Setenv("SEEDHARVEST_TEAMS", "9, 44,,")
	t.Setenv("SEEDHARVEST_CONSUMER_KIND", "qbittorrent")
	t.Setenv("SEEDHARVEST_CONSUMER_PORT", "8080")
	t.Setenv("SEEDHARVEST_MAX_WORKERS", "8")
	t.Setenv("SEEDHARVEST_LEDGER_PATH", "/tmp/ledger.json")
	t.Setenv("SEEDHARVEST_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Catalog.APIKey != "test-api-key" {
		t.Errorf("Expected API key to be test-api-key, got %s", config.Catalog.APIKey)
	}

	if len(config.Catalog.Teams) != 2 || config.Catalog.Teams[0] != "9" || config.Catalog.Teams[1] != "44" {
		t.Errorf("Expected teams [9 44], got %v", config.Catalog.Teams)
	}

	if config.Consumer.Kind != "qbittorrent" {
		t.Errorf("Expected consumer kind to be qbittorrent, got %s", config.Consumer.Kind)
	}

	if config.Consumer.Port != 8080 {
		t.Errorf("Expected consumer port to be 8080, got %d", config.Consumer.Port)
	}

	if config.Download.MaxWorkers != 8 {
		t.Errorf("Expected max workers to be 8, got %d", config.Download.MaxWorkers)
	}

	if config.Ledger.Path != "/tmp/ledger.json" {
		t.Errorf("Expected ledger path to be /tmp/ledger.json, got %s", config.Ledger.Path)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("SEEDHARVEST_CONSUMER_PORT", "not-a-port")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error for invalid port")
	}
	if !strings.Contains(err.Error(), "SEEDHARVEST_CONSUMER_PORT") {
		t.Errorf("Expected error to name the variable, got %v", err)
	}
	if config.Consumer.Port != 9091 {
		t.Errorf("Expected port to keep its default, got %d", config.Consumer.Port)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Catalog.APIKey = "key"
		return c
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantError: false},
		{name: "missing API key", mutate: func(c *Config) { c.Catalog.APIKey = "" }, wantError: true},
		{name: "zero page size", mutate: func(c *Config) { c.Catalog.PageSize = 0 }, wantError: true},
		{name: "bad sort direction", mutate: func(c *Config) { c.Catalog.SortDirection = "UP" }, wantError: true},
		{name: "lowercase sort direction", mutate: func(c *Config) { c.Catalog.SortDirection = "desc" }, wantError: false},
		{name: "unknown consumer", mutate: func(c *Config) { c.Consumer.Kind = "deluge" }, wantError: true},
		{name: "port out of range", mutate: func(c *Config) { c.Consumer.Port = 70000 }, wantError: true},
		{name: "zero workers", mutate: func(c *Config) { c.Download.MaxWorkers = 0 }, wantError: true},
		{name: "too many workers", mutate: func(c *Config) { c.Download.MaxWorkers = 64 }, wantError: true},
		{name: "zero cap", mutate: func(c *Config) { c.Download.MaxDownloadCount = 0 }, wantError: true},
		{name: "zero retries", mutate: func(c *Config) { c.Download.MaxRetries = 0 }, wantError: true},
		{name: "negative interval", mutate: func(c *Config) { c.Download.RequestInterval = -time.Second }, wantError: true},
		{name: "missing ledger", mutate: func(c *Config) { c.Ledger.Path = "" }, wantError: true},
		{name: "zero ttl", mutate: func(c *Config) { c.Inventory.TTL = 0 }, wantError: true},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nested", "config.yaml")

	config := DefaultConfig()
	config.Catalog.APIKey = "saved-key"
	config.Catalog.Teams = []string{"9"}
	config.Download.MaxDownloadCount = 42

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected config file mode 0600, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Catalog.APIKey != "saved-key" {
		t.Errorf("Expected API key saved-key, got %s", loaded.Catalog.APIKey)
	}
	if loaded.Download.MaxDownloadCount != 42 {
		t.Errorf("Expected max download count 42, got %d", loaded.Download.MaxDownloadCount)
	}
	if loaded.Download.InitialRetryDelay != 5*time.Second {
		t.Errorf("Expected initial retry delay to survive round trip, got %v", loaded.Download.InitialRetryDelay)
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("catalog: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := DefaultConfig().LoadFromFile(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}
