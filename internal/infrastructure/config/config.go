package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/wick-sh/wick/internal/shared/config"
)

type Config struct {
	Server      sharedConfig.ServerConfig      `mapstructure:"server"`
	Database    sharedConfig.DatabaseConfig    `mapstructure:"database"`
	Logger      sharedConfig.LoggerConfig      `mapstructure:"logger"`
	Auth        sharedConfig.AuthConfig        `mapstructure:"auth"`
	Redis       sharedConfig.RedisConfig       `mapstructure:"redis"`
	PKI         sharedConfig.PKIConfig         `mapstructure:"pki"`
	CRL         sharedConfig.CRLConfig         `mapstructure:"crl"`
	Rules       sharedConfig.RulesConfig       `mapstructure:"rules"`
	Entitlement sharedConfig.EntitlementConfig `mapstructure:"entitlement"`
	Adapters    sharedConfig.AdaptersConfig    `mapstructure:"adapters"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("WICK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Allow env parameter to override server mode if provided
	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
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

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8443)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "wick_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Auth defaults
	viper.SetDefault("auth.jwt.secret", "change-me-in-production")
	viper.SetDefault("auth.jwt.access_exp_minutes", 15)
	viper.SetDefault("auth.jwt.refresh_exp_days", 7)
	viper.SetDefault("auth.rbac_model", "configs/rbac_model.conf")

	// Redis defaults
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.enabled", false)

	// PKI defaults
	viper.SetDefault("pki.ca_cert", "certs/ca.pem")
	viper.SetDefault("pki.ca_key", "certs/ca.key")
	viper.SetDefault("pki.ca_key_password", "")
	viper.SetDefault("pki.upstream_ca_certs", []string{})

	// CRL defaults
	viper.SetDefault("crl.file_path", "crl/wick.crl")
	viper.SetDefault("crl.interval_minutes", 60)
	viper.SetDefault("crl.validity_hours", 24)

	// Rules defaults
	viper.SetDefault("rules.path", "configs/rules.js")

	// Entitlement defaults
	viper.SetDefault("entitlement.revoke_fifo", false)
	viper.SetDefault("entitlement.refresh_interval_minutes", 240)

	// Adapter defaults
	viper.SetDefault("adapters.subscriptions_file", "configs/subscriptions.yaml")
	viper.SetDefault("adapters.products_file", "configs/products.yaml")
	viper.SetDefault("adapters.product_cache_ttl_minutes", 30)
}
