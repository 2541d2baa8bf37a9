package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// RateLimit caps payment requests per client IP and window. Zero disables
	// it; a positive value needs Redis.
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	// SessionIdleTimeout evicts a shopper session nobody used for that long.
	// A pending challenge outlives it in shared storage.
	SessionIdleTimeout   time.Duration `mapstructure:"session_idle_timeout"`
	SessionSweepInterval time.Duration `mapstructure:"session_sweep_interval"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the SQL store backing the attempt journal and the
// persistent challenge slot. Driver is "sqlite" or "mysql".
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	// SourceOnAllLevels adds source locations to debug and info records too.
	SourceOnAllLevels bool `mapstructure:"source_on_all_levels"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CheckoutConfig holds the merchant credentials and orchestration knobs.
type CheckoutConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	PublicAPIKey string        `mapstructure:"public_api_key"`
	Env          string        `mapstructure:"env"`
	Locale       string        `mapstructure:"locale"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxResumes   int           `mapstructure:"max_resumes"`
	CardOnFile   bool          `mapstructure:"card_on_file"`
	// Journal records every state transition in the database.
	Journal bool `mapstructure:"journal"`
}

type TelemetryConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Token    string        `mapstructure:"token"`
	Platform string        `mapstructure:"platform"`
	TenantID string        `mapstructure:"tenant_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ChallengeConfig configures the pending 3DS challenge slot.
// Storage is one of "memory", "redis" or "database".
type ChallengeConfig struct {
	Storage string        `mapstructure:"storage"`
	Key     string        `mapstructure:"key"`
	TTL     time.Duration `mapstructure:"ttl"`
	// FrameTimeout bounds the wait for a challenge frame to load.
	FrameTimeout time.Duration `mapstructure:"frame_timeout"`
	// PurgeInterval is how often expired rows are removed from database storage.
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type VaultConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type FingerprintConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}
