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
	Scheduler    SchedulerConfig
	Cloud        CloudConfig
	Pricing      PricingConfig
	Escalation   EscalationConfig
	Notification NotificationConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string // used when Driver is sqlite
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// SchedulerConfig holds the billing sweep schedules
type SchedulerConfig struct {
	Enabled bool
	// InvoiceCronSchedule closes billing periods; default is the
	// first of every month
	InvoiceCronSchedule string
	// UnpaidCronSchedule runs the unpaid invoice escalation sweep
	UnpaidCronSchedule string
	JobTimeout         time.Duration
	// SweepLockTTL bounds the distributed lease held while a sweep
	// runs
	SweepLockTTL time.Duration
}

// CloudConfig holds the cloud control plane connection
type CloudConfig struct {
	// Mode selects the client: "http" talks to the control plane,
	// "memory" is a no-op backend for development
	Mode    string
	BaseURL string
	Token   string
	Timeout time.Duration
}

// PricingConfig holds fallback pricing for resources without a price
// list entry
type PricingConfig struct {
	// DefaultRates maps resource kind to an hourly rate amount used
	// when fallback pricing applies, e.g. instance = "0.05"
	DefaultRates map[string]string
}

// EscalationEntry is one configured escalation step. The message
// fields feed send_message entries; the other actions ignore them.
type EscalationEntry struct {
	Day                     int    `mapstructure:"day"`
	Action                  string `mapstructure:"action"`
	MessageTitle            string `mapstructure:"message_title"`
	MessageShortDescription string `mapstructure:"message_short_description"`
	MessageContent          string `mapstructure:"message_content"`
}

// EscalationConfig holds the unpaid invoice escalation table and
// dispatch bounds
type EscalationConfig struct {
	Entries       []EscalationEntry `mapstructure:"entries"`
	ActionTimeout time.Duration     `mapstructure:"action_timeout"`
}

// NotificationConfig holds notification delivery settings
type NotificationConfig struct {
	// Sender is the from-address stamped on outgoing notifications
	Sender string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BILLING_ prefix (e.g., BILLING_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file is fine, defaults and env vars apply
	}

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
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
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:             v.GetBool("scheduler.enabled"),
			InvoiceCronSchedule: v.GetString("scheduler.invoice_cron_schedule"),
			UnpaidCronSchedule:  v.GetString("scheduler.unpaid_cron_schedule"),
			JobTimeout:          v.GetDuration("scheduler.job_timeout"),
			SweepLockTTL:        v.GetDuration("scheduler.sweep_lock_ttl"),
		},
		Cloud: CloudConfig{
			Mode:    v.GetString("cloud.mode"),
			BaseURL: v.GetString("cloud.base_url"),
			Token:   v.GetString("cloud.token"),
			Timeout: v.GetDuration("cloud.timeout"),
		},
		Pricing: PricingConfig{
			DefaultRates: v.GetStringMapString("pricing.default_rates"),
		},
		Notification: NotificationConfig{
			Sender: v.GetString("notification.sender"),
		},
	}
	if err := v.UnmarshalKey("escalation", &cfg.Escalation); err != nil {
		return nil, fmt.Errorf("error parsing escalation config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "cloudbill"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
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
		cfg.Database.DBName = "cloudbill"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "cloudbill.db"
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
	if cfg.Scheduler.InvoiceCronSchedule == "" {
		// first of every month at 00:05
		cfg.Scheduler.InvoiceCronSchedule = "5 0 1 * *"
	}
	if cfg.Scheduler.UnpaidCronSchedule == "" {
		// daily at 01:00
		cfg.Scheduler.UnpaidCronSchedule = "0 1 * * *"
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.SweepLockTTL == 0 {
		cfg.Scheduler.SweepLockTTL = 30 * time.Minute
	}
	if cfg.Cloud.Mode == "" {
		cfg.Cloud.Mode = "memory"
	}
	if cfg.Cloud.Timeout == 0 {
		cfg.Cloud.Timeout = 30 * time.Second
	}
	if cfg.Escalation.ActionTimeout == 0 {
		cfg.Escalation.ActionTimeout = 5 * time.Minute
	}
	if cfg.Notification.Sender == "" {
		cfg.Notification.Sender = "billing@localhost"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
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
	if c.Cloud.Mode != "memory" && c.Cloud.Mode != "http" {
		return fmt.Errorf("cloud.mode must be http or memory, got %q", c.Cloud.Mode)
	}
	for _, e := range c.Escalation.Entries {
		if e.Day < 0 {
			return fmt.Errorf("escalation entry day cannot be negative, got %d", e.Day)
		}
		if e.Action == "" {
			return fmt.Errorf("escalation entry on day %d has no action", e.Day)
		}
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "sqlite" {
			return fmt.Errorf("database.driver sqlite is not supported in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Cloud.Mode == "http" && c.Cloud.BaseURL == "" {
			return fmt.Errorf("cloud.base_url is required in production when cloud.mode is http")
		}
	}

	return nil
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
