package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	FeatureFlags FeatureFlagsConfig
	Billing      BillingConfig
	Reminders    RemindersConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Email        EmailConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := time.LoadLocation(cfg.Reminders.Timezone); err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvRemindersTimezone, cfg.Reminders.Timezone, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CANCELMEM_APP_ENV" required:"true"`
	Port         string `envconfig:"CANCELMEM_APP_PORT" default:"8080"`
	PublicURL    string `envconfig:"CANCELMEM_APP_PUBLIC_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"CANCELMEM_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CANCELMEM_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CANCELMEM_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma-separated allow list.
	CORSOrigins []string `envconfig:"CANCELMEM_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CANCELMEM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CANCELMEM_DB_DSN"`
	Driver string `envconfig:"CANCELMEM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CANCELMEM_DB_HOST"`
	LegacyPort     int    `envconfig:"CANCELMEM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CANCELMEM_DB_USER"`
	LegacyPassword string `envconfig:"CANCELMEM_DB_PASSWORD"`
	LegacyName     string `envconfig:"CANCELMEM_DB_NAME"`
	LegacySSLMode  string `envconfig:"CANCELMEM_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"CANCELMEM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CANCELMEM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CANCELMEM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CANCELMEM_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold is how long a statement may run before it is logged.
	SlowQueryThreshold time.Duration `envconfig:"CANCELMEM_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

// IsSQLite reports whether the local-first SQLite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CANCELMEM_REDIS_URL"`
	Address      string        `envconfig:"CANCELMEM_REDIS_ADDR"`
	Password     string        `envconfig:"CANCELMEM_REDIS_PASSWORD"`
	DB           int           `envconfig:"CANCELMEM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CANCELMEM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CANCELMEM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CANCELMEM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CANCELMEM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CANCELMEM_REDIS_WRITE_TIMEOUT" default:"5s"`

	// KeyPrefix namespaces every key so environments can share an instance.
	KeyPrefix string `envconfig:"CANCELMEM_REDIS_KEY_PREFIX" default:"cm"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// AuthConfig describes how Supabase-issued access tokens are verified.
type AuthConfig struct {
	JWTSecret string `envconfig:"CANCELMEM_SUPABASE_JWT_SECRET" required:"true"`
	Issuer    string `envconfig:"CANCELMEM_SUPABASE_JWT_ISSUER"`
	Audience  string `envconfig:"CANCELMEM_SUPABASE_JWT_AUDIENCE" default:"authenticated"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CANCELMEM_AUTO_MIGRATE" default:"false"`
}

type BillingConfig struct {
	FreeSubscriptionLimit int `envconfig:"CANCELMEM_FREE_SUBSCRIPTION_LIMIT" default:"5"`
}

type RemindersConfig struct {
	Schedule string        `envconfig:"CANCELMEM_REMINDERS_SCHEDULE" default:"0 9 * * *"`
	Interval time.Duration `envconfig:"CANCELMEM_REMINDERS_INTERVAL"`
	Timezone string        `envconfig:"CANCELMEM_REMINDERS_TIMEZONE" default:"UTC"`
	LockTTL  time.Duration `envconfig:"CANCELMEM_REMINDERS_LOCK_TTL" default:"1h"`
}

// Location resolves the configured reminder timezone, falling back to UTC.
func (r RemindersConfig) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type RateLimitConfig struct {
	Window    time.Duration `envconfig:"CANCELMEM_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit int           `envconfig:"CANCELMEM_RATE_LIMIT_USER" default:"120"`
	IPLimit   int           `envconfig:"CANCELMEM_RATE_LIMIT_IP" default:"300"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CANCELMEM_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	RemindersTopic        string `envconfig:"CANCELMEM_PUBSUB_REMINDERS_TOPIC" default:"cm-reminders"`
	RemindersSubscription string `envconfig:"CANCELMEM_PUBSUB_REMINDERS_SUBSCRIPTION" default:"cm-reminders-email"`
}

type StripeConfig struct {
	APIKey           string `envconfig:"CANCELMEM_STRIPE_API_KEY"`
	Secret           string `envconfig:"CANCELMEM_STRIPE_WEBHOOK_SECRET"`
	Env              string `envconfig:"CANCELMEM_STRIPE_ENV" default:"test"`
	ProPriceID       string `envconfig:"CANCELMEM_STRIPE_PRO_PRICE_ID"`
	SuccessPath      string `envconfig:"CANCELMEM_STRIPE_SUCCESS_PATH" default:"/billing/success"`
	CancelPath       string `envconfig:"CANCELMEM_STRIPE_CANCEL_PATH" default:"/pricing"`
	PortalReturnPath string `envconfig:"CANCELMEM_STRIPE_PORTAL_RETURN_PATH" default:"/settings"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether Stripe credentials are present.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type EmailConfig struct {
	ResendAPIKey     string        `envconfig:"CANCELMEM_RESEND_API_KEY"`
	BaseURL          string        `envconfig:"CANCELMEM_RESEND_BASE_URL" default:"https://api.resend.com"`
	FromAddress      string        `envconfig:"CANCELMEM_EMAIL_FROM" default:"CancelMem <reminders@cancelmem.app>"`
	Timeout          time.Duration `envconfig:"CANCELMEM_EMAIL_TIMEOUT" default:"10s"`
	BreakerFailures  uint32        `envconfig:"CANCELMEM_EMAIL_BREAKER_FAILURES" default:"5"`
	BreakerOpenDelay time.Duration `envconfig:"CANCELMEM_EMAIL_BREAKER_OPEN_DELAY" default:"30s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = defaultSQLitePath
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
