package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	HighLevel HighLevelConfig `yaml:"highlevel"`
	CallTools CallToolsConfig `yaml:"calltools"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Classify  ClassifyConfig  `yaml:"classify"`
	Sync      SyncConfig      `yaml:"sync"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the sync ledger database connection settings
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds Redis settings for the per-contact reconcile lock.
// When disabled, the lock falls back to Postgres advisory locks.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// HighLevelConfig holds source CRM API configuration
type HighLevelConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	LocationID     string `yaml:"location_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	// ColdLeadTag is the CRM tag used to enumerate resync candidates.
	ColdLeadTag string `yaml:"cold_lead_tag"`
}

// Timeout returns the configured timeout as a duration
func (c HighLevelConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CallToolsConfig holds dialer API configuration.
// Bucket ids and tag names are per-environment values, never literals in code.
type CallToolsConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	ColdBucketID   string `yaml:"cold_bucket_id"`
	ActiveBucketID string `yaml:"active_bucket_id"`
	ColdTagName    string `yaml:"cold_tag_name"`
	ActiveTagName  string `yaml:"active_tag_name"`
}

// Timeout returns the configured timeout as a duration
func (c CallToolsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WebhookConfig holds inbound webhook verification settings.
// An empty Secret means the signed path runs unauthenticated; that mode is
// intentional for operators that cannot configure signatures, and is logged
// loudly at startup.
type WebhookConfig struct {
	Secret        string `yaml:"secret"`
	MaxAgeSeconds int    `yaml:"max_age_seconds"`
}

// MaxAge returns the webhook staleness window as a duration
func (c WebhookConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeSeconds) * time.Second
}

// ClassifyConfig holds the label rule tables for contact classification
type ClassifyConfig struct {
	ActiveLabels       []string `yaml:"active_labels"`
	CustomerSubstrings []string `yaml:"customer_substrings"`
	ColdSubstrings     []string `yaml:"cold_substrings"`
}

// SyncConfig holds reconciliation and resync settings
type SyncConfig struct {
	ResyncIntervalMinutes int    `yaml:"resync_interval_minutes"`
	WorkerWidth           int    `yaml:"worker_width"`
	ChunkDelayMillis      int    `yaml:"chunk_delay_millis"`
	AdminToken            string `yaml:"admin_token"`
}

// ResyncInterval returns the scheduled resync interval (0 = disabled)
func (c SyncConfig) ResyncInterval() time.Duration {
	return time.Duration(c.ResyncIntervalMinutes) * time.Minute
}

// ChunkDelay returns the pause between bulk resync chunks
func (c SyncConfig) ChunkDelay() time.Duration {
	return time.Duration(c.ChunkDelayMillis) * time.Millisecond
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.HighLevel.BaseURL == "" {
		cfg.HighLevel.BaseURL = "https://services.leadconnectorhq.com"
	}
	if cfg.HighLevel.TimeoutSeconds == 0 {
		cfg.HighLevel.TimeoutSeconds = 30
	}
	if cfg.HighLevel.ColdLeadTag == "" {
		cfg.HighLevel.ColdLeadTag = "cold lead"
	}
	if cfg.CallTools.BaseURL == "" {
		cfg.CallTools.BaseURL = "https://app.calltools.com/api"
	}
	if cfg.CallTools.TimeoutSeconds == 0 {
		cfg.CallTools.TimeoutSeconds = 30
	}
	if cfg.CallTools.ColdTagName == "" {
		cfg.CallTools.ColdTagName = "cold lead"
	}
	if cfg.CallTools.ActiveTagName == "" {
		cfg.CallTools.ActiveTagName = "active client"
	}
	if cfg.Webhook.MaxAgeSeconds == 0 {
		cfg.Webhook.MaxAgeSeconds = 300
	}
	if len(cfg.Classify.ActiveLabels) == 0 {
		cfg.Classify.ActiveLabels = []string{"aca active 2025", "aca active 2026"}
	}
	if len(cfg.Classify.CustomerSubstrings) == 0 {
		cfg.Classify.CustomerSubstrings = []string{"customer", "closed won", "won"}
	}
	if len(cfg.Classify.ColdSubstrings) == 0 {
		cfg.Classify.ColdSubstrings = []string{"cold lead", "cold-lead", "prospect"}
	}
	if cfg.Sync.WorkerWidth == 0 {
		cfg.Sync.WorkerWidth = 4
	}
	if cfg.Sync.ChunkDelayMillis == 0 {
		cfg.Sync.ChunkDelayMillis = 500
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if apiKey := os.Getenv("HIGHLEVEL_API_KEY"); apiKey != "" {
		cfg.HighLevel.APIKey = apiKey
	}
	if baseURL := os.Getenv("HIGHLEVEL_BASE_URL"); baseURL != "" {
		cfg.HighLevel.BaseURL = baseURL
	}
	if locationID := os.Getenv("HIGHLEVEL_LOCATION_ID"); locationID != "" {
		cfg.HighLevel.LocationID = locationID
	}
	if apiKey := os.Getenv("CALLTOOLS_API_KEY"); apiKey != "" {
		cfg.CallTools.APIKey = apiKey
	}
	if baseURL := os.Getenv("CALLTOOLS_BASE_URL"); baseURL != "" {
		cfg.CallTools.BaseURL = baseURL
	}
	if v := os.Getenv("CALLTOOLS_COLD_BUCKET_ID"); v != "" {
		cfg.CallTools.ColdBucketID = v
	}
	if v := os.Getenv("CALLTOOLS_ACTIVE_BUCKET_ID"); v != "" {
		cfg.CallTools.ActiveBucketID = v
	}
	if secret := os.Getenv("WEBHOOK_SECRET"); secret != "" {
		cfg.Webhook.Secret = secret
	}
	if token := os.Getenv("SYNC_ADMIN_TOKEN"); token != "" {
		cfg.Sync.AdminToken = token
	}
	if v := os.Getenv("RESYNC_INTERVAL_MINUTES"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil {
			cfg.Sync.ResyncIntervalMinutes = mins
		}
	}

	return cfg, nil
}
