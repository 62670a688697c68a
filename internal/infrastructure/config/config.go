package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override, e.g. CLINIC_DATABASE_HOST
const EnvPrefix = "CLINIC"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Stock     StockConfig
	Movement  MovementConfig
	Kafka     KafkaConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
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

// RedisConfig holds Redis connection settings. An empty Host keeps movement
// deduplication in process.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
}

// StockConfig tunes stock mutations
type StockConfig struct {
	MaxRetries int // optimistic concurrency retries per mutation
}

// MovementConfig controls the movement ledger
type MovementConfig struct {
	DedupEnabled bool
	DedupTTL     time.Duration
}

// KafkaConfig configures the completed-transaction listener
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

// SchedulerConfig configures in-process daily jobs
type SchedulerConfig struct {
	ReorderDigestEnabled bool
	ReorderDigestHour    int // 0-23, local time
	ReorderDigestMinute  int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable tracing
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)

	MetricsEnabled        bool
	MetricsExportInterval time.Duration
	LogsEnabled           bool

	DBTraceEnabled    bool // otelgorm spans per query
	DBLogFullSQL      bool // include query variables; never in production
	DBSlowQueryThresh time.Duration

	ProfilingEnabled bool
	PyroscopeAddress string
}

// Load reads configuration. Priority, highest first:
//  1. CLINIC_ prefixed environment variables (a .env file in the working directory is loaded into the environment first)
//  2. config.toml
//  3. built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

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
	}

	v.SetDefault("scheduler.reorder_digest_hour", 7)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Stock: StockConfig{
			MaxRetries: v.GetInt("stock.max_retries"),
		},
		Movement: MovementConfig{
			DedupEnabled: v.GetBool("movement.dedup_enabled"),
			DedupTTL:     v.GetDuration("movement.dedup_ttl"),
		},
		Kafka: KafkaConfig{
			Enabled:  v.GetBool("kafka.enabled"),
			Brokers:  v.GetStringSlice("kafka.brokers"),
			Topic:    v.GetString("kafka.topic"),
			GroupID:  v.GetString("kafka.group_id"),
			MinBytes: v.GetInt("kafka.min_bytes"),
			MaxBytes: v.GetInt("kafka.max_bytes"),
			MaxWait:  v.GetDuration("kafka.max_wait"),
		},
		Scheduler: SchedulerConfig{
			ReorderDigestEnabled: v.GetBool("scheduler.reorder_digest_enabled"),
			ReorderDigestHour:    v.GetInt("scheduler.reorder_digest_hour"),
			ReorderDigestMinute:  v.GetInt("scheduler.reorder_digest_minute"),
		},
		Telemetry: TelemetryConfig{
			Enabled:               v.GetBool("telemetry.enabled"),
			CollectorEndpoint:     v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:         v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:           v.GetString("telemetry.service_name"),
			Insecure:              v.GetBool("telemetry.insecure"),
			MetricsEnabled:        v.GetBool("telemetry.metrics_enabled"),
			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
			LogsEnabled:           v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:        v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:          v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh:     v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:      v.GetBool("telemetry.profiling_enabled"),
			PyroscopeAddress:      v.GetString("telemetry.pyroscope_address"),
		},
	}

	// A comma separated CLINIC_KAFKA_BROKERS arrives as one element
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
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
		cfg.App.Name = "clinic-backend"
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
		cfg.Database.DBName = "clinic"
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
	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
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
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
	}
	if cfg.Stock.MaxRetries == 0 {
		cfg.Stock.MaxRetries = 10
	}
	if cfg.Movement.DedupTTL == 0 {
		cfg.Movement.DedupTTL = 24 * time.Hour
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "transactions.completed"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "clinic-inventory"
	}
	if cfg.Kafka.MinBytes == 0 {
		cfg.Kafka.MinBytes = 1
	}
	if cfg.Kafka.MaxBytes == 0 {
		cfg.Kafka.MaxBytes = 10 << 20
	}
	if cfg.Kafka.MaxWait == 0 {
		cfg.Kafka.MaxWait = time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.SamplingRatio == 0 && cfg.Telemetry.Enabled {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate checks the configuration for values that cannot work
func (c *Config) validate() error {
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Stock.MaxRetries < 0 {
		return fmt.Errorf("stock.max_retries cannot be negative, got %d", c.Stock.MaxRetries)
	}
	if c.Movement.DedupTTL < 0 {
		return fmt.Errorf("movement.dedup_ttl cannot be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka.enabled is true")
	}
	if h, m := c.Scheduler.ReorderDigestHour, c.Scheduler.ReorderDigestMinute; h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Errorf("scheduler.reorder_digest time %02d:%02d is not a valid time of day", h, m)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.PyroscopeAddress == "" {
		return fmt.Errorf("telemetry.pyroscope_address is required when profiling is enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("http.cors_allow_origins cannot be '*' in production")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
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

// Addr returns host:port for the Redis client
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
