package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	LocalStore LocalStoreConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Cart       CartConfig
	Engagement EngagementConfig
	Orders     OrdersConfig
	Flags      FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AQUAFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"AQUAFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AQUAFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AQUAFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig points at the authoritative remote store.
type DBConfig struct {
	DSN string `envconfig:"AQUAFLOW_DB_DSN"`

	LegacyHost     string `envconfig:"AQUAFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"AQUAFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AQUAFLOW_DB_USER"`
	LegacyPassword string `envconfig:"AQUAFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"AQUAFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"AQUAFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AQUAFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AQUAFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AQUAFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AQUAFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// LocalStoreConfig points at the process-durable fallback cache.
type LocalStoreConfig struct {
	Path string `envconfig:"AQUAFLOW_LOCAL_STORE_PATH" default:"aquaflow_local.db"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AQUAFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AQUAFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"AQUAFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"AQUAFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AQUAFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AQUAFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AQUAFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AQUAFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AQUAFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AQUAFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AQUAFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AQUAFLOW_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CartConfig carries the pricing rules applied to every summary computation.
type CartConfig struct {
	DeliveryFeeCents            int  `envconfig:"AQUAFLOW_CART_DELIVERY_FEE_CENTS" default:"599"`
	FreeDeliveryThresholdCents  int  `envconfig:"AQUAFLOW_CART_FREE_DELIVERY_THRESHOLD_CENTS" default:"5000"`
	EngagementWaiverEnabled     bool `envconfig:"AQUAFLOW_CART_ENGAGEMENT_WAIVER_ENABLED" default:"true"`
}

// EngagementConfig shapes the ad-to-waive progress gate.
type EngagementConfig struct {
	Duration time.Duration `envconfig:"AQUAFLOW_ENGAGEMENT_DURATION" default:"10s"`
	Tick     time.Duration `envconfig:"AQUAFLOW_ENGAGEMENT_TICK" default:"100ms"`
}

// OrdersConfig shapes order lifecycle automation.
type OrdersConfig struct {
	AutoCompleteAfter time.Duration `envconfig:"AQUAFLOW_ORDERS_AUTO_COMPLETE_AFTER" default:"30s"`
	CardTestPrefix    string        `envconfig:"AQUAFLOW_ORDERS_CARD_TEST_PREFIX" default:"4242"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AQUAFLOW_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		"AQUAFLOW_DB_HOST": db.LegacyHost,
		"AQUAFLOW_DB_USER": db.LegacyUser,
		"AQUAFLOW_DB_NAME": db.LegacyName,
	}
	for _, key := range []string{"AQUAFLOW_DB_HOST", "AQUAFLOW_DB_USER", "AQUAFLOW_DB_NAME"} {
		if legacyValues[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either AQUAFLOW_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
