// Package config defines the typed configuration structures shared across
// the application. The infrastructure config package is responsible for
// loading and populating these from file and environment.
package config

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWT       JWTConfig `mapstructure:"jwt"`
	RBACModel string    `mapstructure:"rbac_model"`
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	AccessExpMinutes int    `mapstructure:"access_exp_minutes"`
	RefreshExpDays   int    `mapstructure:"refresh_exp_days"`
}

// RedisConfig holds redis connection configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// PKIConfig holds certificate authority material locations. The CA key may be
// an OpenSSL legacy encrypted PEM, in which case KeyPassword must be set.
type PKIConfig struct {
	CACert          string   `mapstructure:"ca_cert"`
	CAKey           string   `mapstructure:"ca_key"`
	KeyPassword     string   `mapstructure:"ca_key_password"`
	UpstreamCACerts []string `mapstructure:"upstream_ca_certs"`
}

// CRLConfig controls revocation list generation
type CRLConfig struct {
	FilePath        string `mapstructure:"file_path"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	ValidityHours   int    `mapstructure:"validity_hours"`
}

// RulesConfig locates the entitlement rules program
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// EntitlementConfig holds entitlement lifecycle tuning
type EntitlementConfig struct {
	// RevokeFifo controls which entitlements are revoked first when a pool
	// shrinks below its consumed count. The free-entitlement query inverts
	// this into a lifo ordering flag.
	RevokeFifo bool `mapstructure:"revoke_fifo"`

	// RefreshIntervalMinutes is how often the background sweep reconciles
	// pools against the subscription source.
	RefreshIntervalMinutes int `mapstructure:"refresh_interval_minutes"`
}

// AdaptersConfig locates the upstream system-of-record data files consumed by
// the subscription and product service adapters.
type AdaptersConfig struct {
	SubscriptionsFile string `mapstructure:"subscriptions_file"`
	ProductsFile      string `mapstructure:"products_file"`
	ProductCacheTTL   int    `mapstructure:"product_cache_ttl_minutes"`
}
