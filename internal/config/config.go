package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// HTTPConfig configures the listener. TrustedProxies lists the addresses
// or CIDRs whose forwarding headers are believed; empty means none are.
type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

// UploadConfig describes the local sandbox that holds document files.
type UploadConfig struct {
	Root     string
	MaxBytes int64
	Bucketed bool
}

// MirrorConfig is the S3-compatible bucket the worker copies stored files to.
type MirrorConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type SecurityConfig struct {
	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
	NoncePrefix   string
}

type RateLimitConfig struct {
	Threshold     int
	Window        time.Duration
	SweepSchedule string
}

type WorkerConfig struct {
	ClaimInterval time.Duration
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Upload           UploadConfig
	Mirror           MirrorConfig
	Security         SecurityConfig
	RateLimit        RateLimitConfig
	Worker           WorkerConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

const envPrefix = "UNIVERSITY"

var envReplacer = strings.NewReplacer(".", "_")

func Load() (*AppConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the security core cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Security.JWTSecret) == "" {
		errs = append(errs, errors.New("security.jwtsecret is required"))
	}
	if c.Security.NoncePrefix == "" {
		errs = append(errs, errors.New("security.nonceprefix must not be empty"))
	}
	if c.Security.JWTAccessTTL <= 0 || c.Security.JWTRefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.Upload.Root == "" {
		errs = append(errs, errors.New("upload.root is required"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.maxbytes must be positive"))
	}
	if c.RateLimit.Threshold <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit threshold and window must be positive"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.trustedproxies", []string{})

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "documents:events")
	v.SetDefault("redis.group", "document-workers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("upload.root", "uploads")
	v.SetDefault("upload.maxbytes", 10<<20)
	v.SetDefault("upload.bucketed", true)

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.endpoint", "")
	v.SetDefault("mirror.accesskey", "")
	v.SetDefault("mirror.secretkey", "")
	v.SetDefault("mirror.bucket", "university-documents")
	v.SetDefault("mirror.usessl", false)
	v.SetDefault("mirror.region", "us-east-1")

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtaccessttl", "24h")
	v.SetDefault("security.jwtrefreshttl", "168h") // 7 days
	v.SetDefault("security.nonceprefix", "UCHK")

	v.SetDefault("ratelimit.threshold", 5)
	v.SetDefault("ratelimit.window", "15m")
	v.SetDefault("ratelimit.sweepschedule", "0 */1 * * * *")

	v.SetDefault("worker.claiminterval", "30s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("allowcorsorigins", []string{"http://localhost:4200", "http://localhost:8080"})
}
