package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Sync         SyncConfig
	Marketplaces MarketplacesConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	// Fixed-window limit per client IP, 0 disables inbound rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// SyncConfig holds sync orchestration settings
type SyncConfig struct {
	Enabled           bool
	SyncInterval      time.Duration
	OrderPullInterval time.Duration
	OrderLookback     time.Duration
	CycleTimeout      time.Duration
	BatchSize         int
	Concurrency       int
	MaxAttempts       int
	MinBackoff        time.Duration
	MaxBackoff        time.Duration
	InFlightTimeout   time.Duration
	PushTimeout       time.Duration
	WebhookDedupTTL   time.Duration
}

// MarketplaceConfig holds credentials and limits for a single marketplace.
// Not every field applies to every marketplace: Trendyol uses seller_id +
// api_key/api_secret, Hepsiburada uses merchant_id + username/password,
// Pazarama uses api_key/api_secret against an OAuth token endpoint.
type MarketplaceConfig struct {
	Enabled       bool
	SellerID      string
	MerchantID    string
	Username      string
	Password      string
	APIKey        string
	APISecret     string
	WebhookSecret string
	APIBaseURL    string
	TokenURL      string
	Sandbox       bool
	// Token bucket limits for outbound API calls
	RateCapacity int
	RatePerMin   float64
}

// MarketplacesConfig holds per-marketplace integration settings
type MarketplacesConfig struct {
	Trendyol    MarketplaceConfig
	Hepsiburada MarketplaceConfig
	Pazarama    MarketplaceConfig
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with MESH_ prefix (e.g., MESH_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("MESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),

			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Sync: SyncConfig{
			Enabled:           v.GetBool("sync.enabled"),
			SyncInterval:      v.GetDuration("sync.sync_interval"),
			OrderPullInterval: v.GetDuration("sync.order_pull_interval"),
			OrderLookback:     v.GetDuration("sync.order_lookback"),
			CycleTimeout:      v.GetDuration("sync.cycle_timeout"),
			BatchSize:         v.GetInt("sync.batch_size"),
			Concurrency:       v.GetInt("sync.concurrency"),
			MaxAttempts:       v.GetInt("sync.max_attempts"),
			MinBackoff:        v.GetDuration("sync.min_backoff"),
			MaxBackoff:        v.GetDuration("sync.max_backoff"),
			InFlightTimeout:   v.GetDuration("sync.in_flight_timeout"),
			PushTimeout:       v.GetDuration("sync.push_timeout"),
			WebhookDedupTTL:   v.GetDuration("sync.webhook_dedup_ttl"),
		},
		Marketplaces: MarketplacesConfig{
			Trendyol:    loadMarketplace(v, "marketplaces.trendyol"),
			Hepsiburada: loadMarketplace(v, "marketplaces.hepsiburada"),
			Pazarama:    loadMarketplace(v, "marketplaces.pazarama"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadMarketplace(v *viper.Viper, prefix string) MarketplaceConfig {
	return MarketplaceConfig{
		Enabled:       v.GetBool(prefix + ".enabled"),
		SellerID:      v.GetString(prefix + ".seller_id"),
		MerchantID:    v.GetString(prefix + ".merchant_id"),
		Username:      v.GetString(prefix + ".username"),
		Password:      v.GetString(prefix + ".password"),
		APIKey:        v.GetString(prefix + ".api_key"),
		APISecret:     v.GetString(prefix + ".api_secret"),
		WebhookSecret: v.GetString(prefix + ".webhook_secret"),
		APIBaseURL:    v.GetString(prefix + ".api_base_url"),
		TokenURL:      v.GetString(prefix + ".token_url"),
		Sandbox:       v.GetBool(prefix + ".sandbox"),
		RateCapacity:  v.GetInt(prefix + ".rate_capacity"),
		RatePerMin:    v.GetFloat64(prefix + ".rate_per_min"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "meschain-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "meschain"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB, webhooks are small
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Sync.SyncInterval == 0 {
		cfg.Sync.SyncInterval = 30 * time.Second
	}
	if cfg.Sync.OrderPullInterval == 0 {
		cfg.Sync.OrderPullInterval = 5 * time.Minute
	}
	if cfg.Sync.OrderLookback == 0 {
		cfg.Sync.OrderLookback = 10 * time.Minute
	}
	if cfg.Sync.CycleTimeout == 0 {
		cfg.Sync.CycleTimeout = 10 * time.Minute
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 100
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = 2
	}
	if cfg.Sync.MaxAttempts == 0 {
		cfg.Sync.MaxAttempts = 5
	}
	if cfg.Sync.MinBackoff == 0 {
		cfg.Sync.MinBackoff = 5 * time.Second
	}
	if cfg.Sync.MaxBackoff == 0 {
		cfg.Sync.MaxBackoff = 15 * time.Minute
	}
	if cfg.Sync.InFlightTimeout == 0 {
		cfg.Sync.InFlightTimeout = 10 * time.Minute
	}
	if cfg.Sync.PushTimeout == 0 {
		cfg.Sync.PushTimeout = 30 * time.Second
	}
	if cfg.Sync.WebhookDedupTTL == 0 {
		cfg.Sync.WebhookDedupTTL = 24 * time.Hour
	}
	applyMarketplaceDefaults(&cfg.Marketplaces.Trendyol)
	applyMarketplaceDefaults(&cfg.Marketplaces.Hepsiburada)
	applyMarketplaceDefaults(&cfg.Marketplaces.Pazarama)
}

func applyMarketplaceDefaults(mc *MarketplaceConfig) {
	if mc.RateCapacity == 0 {
		mc.RateCapacity = 10
	}
	if mc.RatePerMin == 0 {
		mc.RatePerMin = 60
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Sync.MinBackoff > c.Sync.MaxBackoff {
		return fmt.Errorf("sync.min_backoff (%s) cannot exceed sync.max_backoff (%s)",
			c.Sync.MinBackoff, c.Sync.MaxBackoff)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync.max_attempts must be at least 1")
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1")
	}
	if c.HTTP.RateLimitRequests < 0 {
		return fmt.Errorf("http.rate_limit_requests cannot be negative")
	}

	for name, mc := range map[string]MarketplaceConfig{
		"trendyol":    c.Marketplaces.Trendyol,
		"hepsiburada": c.Marketplaces.Hepsiburada,
		"pazarama":    c.Marketplaces.Pazarama,
	} {
		if !mc.Enabled {
			continue
		}
		if mc.RateCapacity < 1 || mc.RatePerMin <= 0 {
			return fmt.Errorf("marketplaces.%s: rate limits must be positive", name)
		}
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for name, mc := range map[string]MarketplaceConfig{
			"trendyol":    c.Marketplaces.Trendyol,
			"hepsiburada": c.Marketplaces.Hepsiburada,
			"pazarama":    c.Marketplaces.Pazarama,
		} {
			if mc.Enabled && mc.WebhookSecret == "" {
				return fmt.Errorf("marketplaces.%s.webhook_secret is required in production", name)
			}
			if mc.Enabled && mc.Sandbox {
				return fmt.Errorf("marketplaces.%s cannot use sandbox in production", name)
			}
		}
	}

	return nil
}

// EnabledMarketplaces returns the configured marketplace names that are
// switched on, in a stable order.
func (c *Config) EnabledMarketplaces() []string {
	var names []string
	if c.Marketplaces.Trendyol.Enabled {
		names = append(names, "TRENDYOL")
	}
	if c.Marketplaces.Hepsiburada.Enabled {
		names = append(names, "HEPSIBURADA")
	}
	if c.Marketplaces.Pazarama.Enabled {
		names = append(names, "PAZARAMA")
	}
	return names
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
