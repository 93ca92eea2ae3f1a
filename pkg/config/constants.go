package config

const (
	EnvPrefix = "POS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "POS_APP_ENV"
	EnvPort   = "POS_APP_PORT"

	EnvDBDSN  = "POS_DB_DSN"
	EnvDBHost = "POS_DB_HOST"
	EnvDBUser = "POS_DB_USER"
	EnvDBName = "POS_DB_NAME"

	EnvRedisURL = "POS_REDIS_URL"

	EnvJWTSecret              = "POS_JWT_SECRET"
	EnvJWTIssuer              = "POS_JWT_ISSUER"
	EnvJWTExpMins             = "POS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "POS_REFRESH_TOKEN_TTL_MINUTES"

	EnvTaxRatePercent    = "POS_CHECKOUT_TAX_RATE_PERCENT"
	EnvLowStockThreshold = "POS_CHECKOUT_LOW_STOCK_THRESHOLD"

	EnvGCPProjectID      = "POS_GCP_PROJECT_ID"
	EnvPubSubSalesTopic  = "POS_PUBSUB_SALES_TOPIC"
	EnvUseSQLite         = "POS_USE_SQLITE"
	EnvSQLitePath        = "POS_SQLITE_PATH"
	EnvOutboxBatchSize   = "POS_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxMaxAttempts = "POS_OUTBOX_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
