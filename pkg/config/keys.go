package config

const (
	EnvPrefix = "TOURBOOK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "TOURBOOK_APP_ENV"
	EnvPort         = "TOURBOOK_APP_PORT"
	EnvLogLevel     = "TOURBOOK_LOG_LEVEL"
	EnvLogWarnStack = "TOURBOOK_LOG_WARN_STACK"
	EnvPublicURL    = "TOURBOOK_PUBLIC_URL"

	EnvDBDSN      = "TOURBOOK_DB_DSN"
	EnvDBHost     = "TOURBOOK_DB_HOST"
	EnvDBPort     = "TOURBOOK_DB_PORT"
	EnvDBUser     = "TOURBOOK_DB_USER"
	EnvDBPassword = "TOURBOOK_DB_PASSWORD"
	EnvDBName     = "TOURBOOK_DB_NAME"
	EnvDBSSLMode  = "TOURBOOK_DB_SSLMODE"

	EnvRedisURL = "TOURBOOK_REDIS_URL"

	EnvJWTSecret        = "TOURBOOK_JWT_SECRET"
	EnvJWTIssuer        = "TOURBOOK_JWT_ISSUER"
	EnvJWTExpMins       = "TOURBOOK_JWT_EXPIRATION_MINUTES"
	EnvJWTCookieExpDays = "TOURBOOK_JWT_COOKIE_EXPIRES_DAYS"

	EnvUseSQLite   = "TOURBOOK_USE_SQLITE"
	EnvSQLiteDSN   = "TOURBOOK_SQLITE_DSN"
	EnvAutoMigrate = "TOURBOOK_AUTO_MIGRATE"

	EnvStripeAPIKey = "TOURBOOK_STRIPE_API_KEY"
	EnvStripeSecret = "TOURBOOK_STRIPE_SECRET"
	EnvStripeEnv    = "TOURBOOK_STRIPE_ENV"

	EnvBookingCancelPolicy = "TOURBOOK_BOOKING_CANCEL_POLICY"

	EnvEventsEnabled       = "TOURBOOK_EVENTS_ENABLED"
	EnvGCPProjectID        = "TOURBOOK_GCP_PROJECT_ID"
	EnvPubSubBookingsTopic = "TOURBOOK_PUBSUB_BOOKINGS_TOPIC"
	EnvBigQueryDataset     = "TOURBOOK_BIGQUERY_DATASET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
