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
	PasswordReset PasswordResetConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Booking       BookingConfig
	Mail          MailConfig
	Eventing      EventingConfig
	Outbox        OutboxConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Cron          CronConfig
}

// Load reads the process environment once. The returned value is treated as
// read-only by every consumer.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TOURBOOK_APP_ENV" required:"true"`
	Port         string `envconfig:"TOURBOOK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TOURBOOK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TOURBOOK_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"TOURBOOK_LOG_FORMAT" default:"json"`
	PublicURL    string `envconfig:"TOURBOOK_PUBLIC_URL" default:"http://localhost:3000"`
	BodyLimitKB  int64  `envconfig:"TOURBOOK_BODY_LIMIT_KB" default:"10"`
	CORSOrigins  string `envconfig:"TOURBOOK_CORS_ORIGINS" default:"*"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `envconfig:"TOURBOOK_TRUST_PROXY_HEADERS" default:"false"`
	// MetricsAddr is where background workers expose /metrics; empty disables it.
	MetricsAddr string `envconfig:"TOURBOOK_WORKER_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BodyLimit returns the request body cap in bytes.
func (a AppConfig) BodyLimit() int64 {
	if a.BodyLimitKB <= 0 {
		return 10 << 10
	}
	return a.BodyLimitKB << 10
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

type DBConfig struct {
	DSN    string `envconfig:"TOURBOOK_DB_DSN"`
	Driver string `envconfig:"TOURBOOK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TOURBOOK_DB_HOST"`
	LegacyPort     int    `envconfig:"TOURBOOK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TOURBOOK_DB_USER"`
	LegacyPassword string `envconfig:"TOURBOOK_DB_PASSWORD"`
	LegacyName     string `envconfig:"TOURBOOK_DB_NAME"`
	LegacySSLMode  string `envconfig:"TOURBOOK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TOURBOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOURBOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOURBOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOURBOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TOURBOOK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TOURBOOK_REDIS_ADDR"`
	Password     string        `envconfig:"TOURBOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOURBOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOURBOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOURBOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOURBOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOURBOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOURBOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TOURBOOK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TOURBOOK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TOURBOOK_JWT_EXPIRATION_MINUTES" required:"true"`
	CookieExpiresDays int    `envconfig:"TOURBOOK_JWT_COOKIE_EXPIRES_DAYS" default:"90"`
}

// TokenTTL is the lifetime of an access token.
func (j JWTConfig) TokenTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// CookieTTL is the lifetime of the jwt cookie.
func (j JWTConfig) CookieTTL() time.Duration {
	if j.CookieExpiresDays <= 0 {
		return j.TokenTTL()
	}
	return time.Duration(j.CookieExpiresDays) * 24 * time.Hour
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TOURBOOK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TOURBOOK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TOURBOOK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TOURBOOK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TOURBOOK_ARGON_KEY_LEN" default:"32"`
}

type PasswordResetConfig struct {
	TokenTTL time.Duration `envconfig:"TOURBOOK_PASSWORD_RESET_TTL" default:"10m"`
}

type RateLimitConfig struct {
	APIWindow        time.Duration `envconfig:"TOURBOOK_RATE_LIMIT_API_WINDOW" default:"1h"`
	APILimit         int           `envconfig:"TOURBOOK_RATE_LIMIT_API_LIMIT" default:"100"`
	LoginWindow      time.Duration `envconfig:"TOURBOOK_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"TOURBOOK_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"TOURBOOK_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow     time.Duration `envconfig:"TOURBOOK_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit int           `envconfig:"TOURBOOK_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit    int           `envconfig:"TOURBOOK_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"TOURBOOK_USE_SQLITE" default:"false"`
	SQLiteDSN   string `envconfig:"TOURBOOK_SQLITE_DSN" default:"file:tourbook.db?cache=shared&_fk=1"`
	AutoMigrate bool   `envconfig:"TOURBOOK_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"TOURBOOK_STRIPE_API_KEY"`
	Secret   string `envconfig:"TOURBOOK_STRIPE_SECRET"`
	Env      string `envconfig:"TOURBOOK_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"TOURBOOK_STRIPE_CURRENCY" default:"usd"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type BookingConfig struct {
	CancelPolicy string `envconfig:"TOURBOOK_BOOKING_CANCEL_POLICY" default:"marker"`
}

type MailConfig struct {
	From         string `envconfig:"TOURBOOK_MAIL_FROM" default:"hello@tourbook.io"`
	SMTPHost     string `envconfig:"TOURBOOK_MAIL_SMTP_HOST"`
	SMTPPort     int    `envconfig:"TOURBOOK_MAIL_SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"TOURBOOK_MAIL_SMTP_USER"`
	SMTPPassword string `envconfig:"TOURBOOK_MAIL_SMTP_PASSWORD"`
}

// SMTPEnabled reports whether outbound mail should use SMTP instead of logs.
func (m MailConfig) SMTPEnabled() bool {
	return strings.TrimSpace(m.SMTPHost) != ""
}

// EventingConfig controls whether booking changes are queued in the outbox.
type EventingConfig struct {
	Enabled        bool          `envconfig:"TOURBOOK_EVENTS_ENABLED" default:"true"`
	IdempotencyTTL time.Duration `envconfig:"TOURBOOK_EVENTS_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TOURBOOK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TOURBOOK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TOURBOOK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TOURBOOK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TOURBOOK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TOURBOOK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BookingsTopic         string `envconfig:"TOURBOOK_PUBSUB_BOOKINGS_TOPIC" default:"tourbook-booking-events"`
	AnalyticsSubscription string `envconfig:"TOURBOOK_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"tourbook-booking-analytics"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"TOURBOOK_BIGQUERY_DATASET" default:"tourbook"`
	BookingEventsTable string `envconfig:"TOURBOOK_BIGQUERY_BOOKING_TABLE" default:"booking_events"`
	CreateTables       bool   `envconfig:"TOURBOOK_BIGQUERY_CREATE_TABLES" default:"false"`
	BatchSize          int    `envconfig:"TOURBOOK_BIGQUERY_BATCH_SIZE" default:"1"`
}

// CronConfig drives the maintenance worker. Retention windows are in days.
type CronConfig struct {
	Interval            time.Duration `envconfig:"TOURBOOK_CRON_INTERVAL" default:"24h"`
	OutboxRetentionDays int           `envconfig:"TOURBOOK_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays    int           `envconfig:"TOURBOOK_CRON_DLQ_RETENTION_DAYS" default:"90"`
	JobTimeout          time.Duration `envconfig:"TOURBOOK_CRON_JOB_TIMEOUT" default:"30m"`
	LockTTL             time.Duration `envconfig:"TOURBOOK_CRON_LOCK_TTL" default:"2h"`
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
