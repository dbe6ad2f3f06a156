package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Widget     WidgetConfig     `yaml:"widget"`
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

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                 int      `yaml:"port"`
	RateLimitPerSec      float64  `yaml:"rate_limit_per_sec"`
	RateBurst            int      `yaml:"rate_burst"`
	FrameRateLimitPerSec float64  `yaml:"frame_rate_limit_per_sec"` // camera frame uploads only
	FrameRateBurst       int      `yaml:"frame_rate_burst"`
	CacheTTLSeconds      int      `yaml:"cache_ttl_seconds"`
	CORSAllowOrigins     []string `yaml:"cors_allow_origins"`
	SecureContextHeader  string   `yaml:"secure_context_header"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// GatewayConfig selects where registration data lives.
type GatewayConfig struct {
	Mode   string       `yaml:"mode"`
	Remote RemoteConfig `yaml:"remote"`
}

// RemoteConfig describes the external registration service.
type RemoteConfig struct {
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	HTTPProxy      string            `yaml:"http_proxy"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Timeout        time.Duration     `yaml:"-"`
}

// WidgetConfig holds the check-in desk settings exposed to the presentation layer.
type WidgetConfig struct {
	Title                       string        `yaml:"title"`
	CheckinStatus               string        `yaml:"checkin_status"`
	PageSize                    int           `yaml:"page_size"`
	CameraPollIntervalMs        int           `yaml:"camera_poll_interval_ms"`
	CameraPollInterval          time.Duration `yaml:"-"`
	DeskTTLMinutes              int           `yaml:"desk_ttl_minutes"`
	DeskTTL                     time.Duration `yaml:"-"`
	SearchLimit                 int           `yaml:"search_limit"`
	NativeCaptureTimeoutSeconds int           `yaml:"native_capture_timeout_seconds"`
	NativeCaptureTimeout        time.Duration `yaml:"-"`
}

const (
	GatewayModeLocal  = "local"
	GatewayModeRemote = "remote"
)

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
		return nil, err
	}

	applyEnv(&cfg)
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset or invalid value with its default.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 20
	}
	if cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = 20
	}
	if cfg.Server.FrameRateLimitPerSec <= 0 {
		cfg.Server.FrameRateLimitPerSec = 30
	}
	if cfg.Server.FrameRateBurst <= 0 {
		cfg.Server.FrameRateBurst = 30
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if cfg.Server.SecureContextHeader == "" {
		cfg.Server.SecureContextHeader = "X-Forwarded-Proto"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Gateway.Mode == "" {
		cfg.Gateway.Mode = GatewayModeLocal
	}
	if cfg.Gateway.Remote.TimeoutSeconds <= 0 {
		cfg.Gateway.Remote.TimeoutSeconds = 30
	}
	cfg.Gateway.Remote.Timeout = time.Duration(cfg.Gateway.Remote.TimeoutSeconds) * time.Second

	if cfg.Widget.Title == "" {
		cfg.Widget.Title = "Event Check-In"
	}
	if cfg.Widget.CheckinStatus == "" {
		cfg.Widget.CheckinStatus = "Attended"
	}
	if cfg.Widget.PageSize <= 0 {
		cfg.Widget.PageSize = 5
	}
	if cfg.Widget.CameraPollIntervalMs <= 0 {
		cfg.Widget.CameraPollIntervalMs = 100
	}
	cfg.Widget.CameraPollInterval = time.Duration(cfg.Widget.CameraPollIntervalMs) * time.Millisecond
	if cfg.Widget.DeskTTLMinutes <= 0 {
		cfg.Widget.DeskTTLMinutes = 30
	}
	cfg.Widget.DeskTTL = time.Duration(cfg.Widget.DeskTTLMinutes) * time.Minute
	if cfg.Widget.SearchLimit <= 0 {
		cfg.Widget.SearchLimit = 200
	}
	if cfg.Widget.NativeCaptureTimeoutSeconds <= 0 {
		cfg.Widget.NativeCaptureTimeoutSeconds = 60
	}
	cfg.Widget.NativeCaptureTimeout = time.Duration(cfg.Widget.NativeCaptureTimeoutSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}

// applyEnv lets deployments override secrets and ports without editing the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
