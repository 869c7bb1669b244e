package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix scopes every environment variable consumed by the platform.
const EnvPrefix = "VASTRA"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "VASTRA_APP_ENV"
	EnvDBDSN  = "VASTRA_DB_DSN"
	EnvDBHost = "VASTRA_DB_HOST"
	EnvDBUser = "VASTRA_DB_USER"
	EnvDBName = "VASTRA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Checkout      CheckoutConfig
	Razorpay      RazorpayConfig
	TryOn         TryOnConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Sweep         SweepConfig
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
	Env          string `envconfig:"VASTRA_APP_ENV" required:"true"`
	Port         string `envconfig:"VASTRA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VASTRA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VASTRA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VASTRA_DB_DSN"`
	Driver string `envconfig:"VASTRA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VASTRA_DB_HOST"`
	LegacyPort     int    `envconfig:"VASTRA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VASTRA_DB_USER"`
	LegacyPassword string `envconfig:"VASTRA_DB_PASSWORD"`
	LegacyName     string `envconfig:"VASTRA_DB_NAME"`
	LegacySSLMode  string `envconfig:"VASTRA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VASTRA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VASTRA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VASTRA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VASTRA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VASTRA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VASTRA_REDIS_ADDR"`
	Password     string        `envconfig:"VASTRA_REDIS_PASSWORD"`
	DB           int           `envconfig:"VASTRA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VASTRA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VASTRA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VASTRA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VASTRA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VASTRA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VASTRA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VASTRA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VASTRA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VASTRA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VASTRA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VASTRA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VASTRA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VASTRA_ARGON_KEY_LEN" default:"32"`
}

// CheckoutConfig carries the pricing policy applied by the order builder.
// Monetary values are integer paise.
type CheckoutConfig struct {
	FreeShippingAbovePaise int64  `envconfig:"VASTRA_CHECKOUT_FREE_SHIPPING_ABOVE" default:"99900"`
	FlatShippingFeePaise   int64  `envconfig:"VASTRA_CHECKOUT_FLAT_SHIPPING_FEE" default:"4900"`
	TaxRate                string `envconfig:"VASTRA_CHECKOUT_TAX_RATE" default:"0.18"`
	OrderNumberPrefix      string `envconfig:"VASTRA_CHECKOUT_ORDER_NUMBER_PREFIX" default:"VST"`
}

type RazorpayConfig struct {
	KeyID         string        `envconfig:"VASTRA_RAZORPAY_KEY_ID"`
	KeySecret     string        `envconfig:"VASTRA_RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"VASTRA_RAZORPAY_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"VASTRA_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Timeout       time.Duration `envconfig:"VASTRA_RAZORPAY_TIMEOUT" default:"10s"`
}

type TryOnConfig struct {
	ServiceURL string        `envconfig:"VASTRA_TRYON_SERVICE_URL"`
	Timeout    time.Duration `envconfig:"VASTRA_TRYON_TIMEOUT" default:"60s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VASTRA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VASTRA_AUTO_MIGRATE" default:"false"`
}

// AuthRateLimitConfig throttles credential-bearing endpoints.
type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"VASTRA_AUTH_LOGIN_WINDOW" default:"15m"`
	LoginIPLimit       int           `envconfig:"VASTRA_AUTH_LOGIN_IP_LIMIT" default:"30"`
	LoginEmailLimit    int           `envconfig:"VASTRA_AUTH_LOGIN_EMAIL_LIMIT" default:"10"`
	RegisterWindow     time.Duration `envconfig:"VASTRA_AUTH_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"VASTRA_AUTH_REGISTER_IP_LIMIT" default:"20"`
	RegisterEmailLimit int           `envconfig:"VASTRA_AUTH_REGISTER_EMAIL_LIMIT" default:"5"`
}

// SweepConfig controls the pending-order expiry job.
type SweepConfig struct {
	PendingOrderTTL time.Duration `envconfig:"VASTRA_SWEEP_PENDING_ORDER_TTL" default:"24h"`
	Interval        time.Duration `envconfig:"VASTRA_SWEEP_INTERVAL" default:"1h"`
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
