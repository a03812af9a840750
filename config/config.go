package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Database   DatabaseConfig   `yaml:"database"`
	SLA        SLAConfig        `yaml:"sla"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// SchedulerConfig holds the maintenance scheduler configuration. The main
// sweep runs on a fixed interval; cleanup runs on its own low-frequency cron
// expression.
type SchedulerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Timezone            string        `yaml:"timezone"`
	IntervalSeconds     int           `yaml:"interval_seconds"`
	Interval            time.Duration `yaml:"-"` // Ignored by YAML parser
	CleanupCron         string        `yaml:"cleanup_cron"`
	TaskTimeoutSeconds  int           `yaml:"task_timeout_seconds"`
	TaskTimeout         time.Duration `yaml:"-"`
	RetentionDays       int           `yaml:"retention_days"`
	BreachCooldownHours int           `yaml:"breach_cooldown_hours"`
}

// SLAConfig holds the system default SLA applied when no definition matches.
type SLAConfig struct {
	DefaultResponseHours   int `yaml:"default_response_hours"`
	DefaultResolutionHours int `yaml:"default_resolution_hours"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}
	if cfg.Scheduler.IntervalSeconds <= 0 {
		cfg.Scheduler.IntervalSeconds = 300
	}
	cfg.Scheduler.Interval = time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second

	if cfg.Scheduler.CleanupCron == "" {
		cfg.Scheduler.CleanupCron = "0 3 * * 0" // weekly
	}
	if cfg.Scheduler.TaskTimeoutSeconds <= 0 {
		cfg.Scheduler.TaskTimeoutSeconds = 300
	}
	cfg.Scheduler.TaskTimeout = time.Duration(cfg.Scheduler.TaskTimeoutSeconds) * time.Second

	if cfg.Scheduler.RetentionDays <= 0 {
		cfg.Scheduler.RetentionDays = 90
	}
	if cfg.Scheduler.BreachCooldownHours <= 0 {
		cfg.Scheduler.BreachCooldownHours = 6
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}

	if cfg.SLA.DefaultResponseHours <= 0 {
		cfg.SLA.DefaultResponseHours = 24
	}
	if cfg.SLA.DefaultResolutionHours <= 0 {
		cfg.SLA.DefaultResolutionHours = 72
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
