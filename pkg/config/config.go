package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Shop          ShopConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Outbox        OutboxConfig
	Cron          CronConfig
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
	Env          string `envconfig:"TIKOTOYS_APP_ENV" required:"true"`
	Port         string `envconfig:"TIKOTOYS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TIKOTOYS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TIKOTOYS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TIKOTOYS_DB_DSN"`
	Driver string `envconfig:"TIKOTOYS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TIKOTOYS_DB_HOST"`
	LegacyPort     int    `envconfig:"TIKOTOYS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TIKOTOYS_DB_USER"`
	LegacyPassword string `envconfig:"TIKOTOYS_DB_PASSWORD"`
	LegacyName     string `envconfig:"TIKOTOYS_DB_NAME"`
	LegacySSLMode  string `envconfig:"TIKOTOYS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TIKOTOYS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TIKOTOYS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TIKOTOYS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TIKOTOYS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TIKOTOYS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TIKOTOYS_REDIS_ADDR"`
	Password     string        `envconfig:"TIKOTOYS_REDIS_PASSWORD"`
	DB           int           `envconfig:"TIKOTOYS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TIKOTOYS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TIKOTOYS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TIKOTOYS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TIKOTOYS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TIKOTOYS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TIKOTOYS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TIKOTOYS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TIKOTOYS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TIKOTOYS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TIKOTOYS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TIKOTOYS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TIKOTOYS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TIKOTOYS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TIKOTOYS_ARGON_KEY_LEN" default:"32"`
}

// ShopConfig carries storefront-level settings. Shipping rates and the
// free-shipping threshold are fixed business rules, not configuration.
type ShopConfig struct {
	Currency        string        `envconfig:"TIKOTOYS_SHOP_CURRENCY" default:"EUR"`
	CartSnapshotTTL time.Duration `envconfig:"TIKOTOYS_SHOP_CART_SNAPSHOT_TTL" default:"720h"`
	PendingOrderTTL time.Duration `envconfig:"TIKOTOYS_SHOP_PENDING_ORDER_TTL" default:"240h"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TIKOTOYS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TIKOTOYS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TIKOTOYS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TIKOTOYS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TIKOTOYS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TIKOTOYS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TIKOTOYS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TIKOTOYS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TIKOTOYS_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"TIKOTOYS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"TIKOTOYS_PUBSUB_ORDERS_TOPIC" default:"tiko-order-events"`
}

type StripeConfig struct {
	APIKey string `envconfig:"TIKOTOYS_STRIPE_API_KEY"`
	Env    string `envconfig:"TIKOTOYS_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TIKOTOYS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TIKOTOYS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TIKOTOYS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TIKOTOYS_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"TIKOTOYS_CRON_LOCK_TTL" default:"30m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
