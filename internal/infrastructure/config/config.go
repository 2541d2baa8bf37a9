package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/orris-inc/checkout/internal/shared/config"
)

type Config struct {
	Server      sharedConfig.ServerConfig      `mapstructure:"server"`
	Database    sharedConfig.DatabaseConfig    `mapstructure:"database"`
	Logger      sharedConfig.LoggerConfig      `mapstructure:"logger"`
	Redis       sharedConfig.RedisConfig       `mapstructure:"redis"`
	Checkout    sharedConfig.CheckoutConfig    `mapstructure:"checkout"`
	Telemetry   sharedConfig.TelemetryConfig   `mapstructure:"telemetry"`
	Challenge   sharedConfig.ChallengeConfig   `mapstructure:"challenge"`
	Vault       sharedConfig.VaultConfig       `mapstructure:"vault"`
	Fingerprint sharedConfig.FingerprintConfig `mapstructure:"fingerprint"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
// A missing config file is not an error: defaults and CHECKOUT_* variables apply.
func Load(env string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")

	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Allow env parameter to override the checkout environment if provided
	if env != "" && env != "default" {
		v.Set("checkout.env", env)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// setDefaults sets default configuration values. AutomaticEnv only binds keys
// viper already knows, so every Config field needs an entry here.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_limit_window", "1m")
	v.SetDefault("server.session_idle_timeout", "30m")
	v.SetDefault("server.session_sweep_interval", "1m")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "checkout.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "checkout_dev")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.source_on_all_levels", false)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Checkout defaults
	v.SetDefault("checkout.api_url", "https://api.localhost.test")
	v.SetDefault("checkout.public_api_key", "")
	v.SetDefault("checkout.env", "sandbox")
	v.SetDefault("checkout.locale", "en")
	v.SetDefault("checkout.timeout", "30s")
	v.SetDefault("checkout.max_resumes", 5)
	v.SetDefault("checkout.card_on_file", false)
	v.SetDefault("checkout.journal", false)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.url", "")
	v.SetDefault("telemetry.token", "")
	v.SetDefault("telemetry.tenant_id", "")
	v.SetDefault("telemetry.platform", "go-sdk")
	v.SetDefault("telemetry.timeout", "5s")

	// Challenge defaults
	v.SetDefault("challenge.storage", "memory")
	v.SetDefault("challenge.key", "checkout:3ds:pending")
	v.SetDefault("challenge.ttl", "20m")
	v.SetDefault("challenge.frame_timeout", "2m")
	v.SetDefault("challenge.purge_interval", "10m")

	// Vault defaults
	v.SetDefault("vault.timeout", "15s")
	v.SetDefault("vault.poll_interval", "50ms")

	// Fingerprint defaults
	v.SetDefault("fingerprint.url", "")
	v.SetDefault("fingerprint.timeout", "10s")
}
