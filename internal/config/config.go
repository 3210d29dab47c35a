package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	NATS       NATSConfig
	JWT        JWTConfig
	Governance GovernanceConfig
	Retention  RetentionConfig
	Billing    BillingConfig
	CORS       CORSConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MinConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
	// NotificationMaxAge bounds how long undelivered notifications stay in
	// the stream.
	NotificationMaxAge time.Duration
}

type JWTConfig struct {
	AccessSecret string
}

// GovernanceConfig holds the monthly quotas enforced by the access engine.
// Pro-tier fields are optional: nil means "no limit configured".
type GovernanceConfig struct {
	FreeMessageLimit    int
	FreeTokenQuota      int64
	FreeImageLimit      int
	FreeTranscribeLimit int

	ProCostCapCents    *int64
	ProImageLimit      *int
	ProTranscribeLimit *int
}

type RetentionConfig struct {
	Interval          time.Duration
	Workers           int
	ManualMaxRequests int
	ManualWindow      time.Duration
	SchedulerEnabled  bool
}

type BillingConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MinConns:       int32(intOr(k, "db.min.conns", 2)),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret: k.String("jwt.access.secret"),
		},
		Governance: GovernanceConfig{
			FreeMessageLimit:    intOr(k, "governance.free.message.limit", 50),
			FreeTokenQuota:      int64(intOr(k, "governance.free.token.quota", 100000)),
			FreeImageLimit:      intOr(k, "governance.free.image.limit", 0),
			FreeTranscribeLimit: intOr(k, "governance.free.transcribe.limit", 0),
			ProImageLimit:       optionalInt(k, "governance.pro.image.limit"),
			ProTranscribeLimit:  optionalInt(k, "governance.pro.transcribe.limit"),
		},
		Retention: RetentionConfig{
			Workers:           intOr(k, "retention.workers", 1),
			ManualMaxRequests: intOr(k, "retention.manual.max.requests", 1),
			SchedulerEnabled:  k.String("retention.scheduler.enabled") != "false",
		},
		Billing: BillingConfig{
			CacheSize: intOr(k, "billing.cache.size", 10000),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if v := optionalInt(k, "governance.pro.cost.cap.cents"); v != nil {
		cents := int64(*v)
		cfg.Governance.ProCostCapCents = &cents
	}

	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, o)
			}
		}
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "governor"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "governor"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	var err error
	cfg.Retention.Interval, err = durationOr(k, "retention.interval", "24h")
	if err != nil {
		return nil, fmt.Errorf("parsing retention interval: %w", err)
	}
	cfg.Retention.ManualWindow, err = durationOr(k, "retention.manual.window", "1h")
	if err != nil {
		return nil, fmt.Errorf("parsing retention manual window: %w", err)
	}
	cfg.Billing.CacheTTL, err = durationOr(k, "billing.cache.ttl", "1m")
	if err != nil {
		return nil, fmt.Errorf("parsing billing cache ttl: %w", err)
	}
	cfg.NATS.NotificationMaxAge, err = durationOr(k, "nats.notification.max.age", "24h")
	if err != nil {
		return nil, fmt.Errorf("parsing nats notification max age: %w", err)
	}

	return cfg, nil
}

func intOr(k *koanf.Koanf, key string, def int) int {
	if !k.Exists(key) || k.String(key) == "" {
		return def
	}
	return k.Int(key)
}

func optionalInt(k *koanf.Koanf, key string) *int {
	if !k.Exists(key) || k.String(key) == "" {
		return nil
	}
	v := k.Int(key)
	return &v
}

func durationOr(k *koanf.Koanf, key, def string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = def
	}
	return time.ParseDuration(s)
}
