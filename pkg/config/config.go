package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Cart         CartConfig
	Idempotency  IdempotencyConfig
	RateLimit    RateLimitConfig
	Analytics    AnalyticsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.Analytics.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"POS_APP_ENV" required:"true"`
	Port         string   `envconfig:"POS_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"POS_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"POS_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"POS_DB_DSN"`
	Driver     string `envconfig:"POS_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"POS_SQLITE_PATH" default:"pos.db"`

	LegacyHost     string `envconfig:"POS_DB_HOST"`
	LegacyPort     int    `envconfig:"POS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POS_DB_USER"`
	LegacyPassword string `envconfig:"POS_DB_PASSWORD"`
	LegacyName     string `envconfig:"POS_DB_NAME"`
	LegacySSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"POS_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"POS_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"POS_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"POS_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"POS_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"POS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"POS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"POS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"POS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"POS_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"POS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"POS_AUTO_MIGRATE" default:"false"`
}

// CheckoutConfig holds the store-wide pricing knobs applied at checkout.
type CheckoutConfig struct {
	TaxRatePercent    decimal.Decimal `envconfig:"POS_CHECKOUT_TAX_RATE_PERCENT" default:"10"`
	LowStockThreshold int             `envconfig:"POS_CHECKOUT_LOW_STOCK_THRESHOLD" default:"10"`
	TotalsTolerance   decimal.Decimal `envconfig:"POS_CHECKOUT_TOTALS_TOLERANCE" default:"0.01"`
}

func (c CheckoutConfig) validate() error {
	if c.TaxRatePercent.IsNegative() || c.TaxRatePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must be within [0, 100], got %s", EnvTaxRatePercent, c.TaxRatePercent)
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("%s must be non-negative", EnvLowStockThreshold)
	}
	return nil
}

type CartConfig struct {
	TTL time.Duration `envconfig:"POS_CART_TTL" default:"12h"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"POS_IDEMPOTENCY_TTL" default:"24h"`
}

// RateLimitConfig throttles login per client IP and per email, and token
// refresh per client IP.
type RateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"POS_LOGIN_RATE_LIMIT_WINDOW" default:"1m"`
	LoginIPLimit    int           `envconfig:"POS_LOGIN_RATE_LIMIT_IP" default:"20"`
	LoginEmailLimit int           `envconfig:"POS_LOGIN_RATE_LIMIT_EMAIL" default:"5"`
	RefreshIPLimit  int           `envconfig:"POS_REFRESH_RATE_LIMIT_IP" default:"60"`
}

// AnalyticsConfig controls how the dashboard buckets sales into days.
type AnalyticsConfig struct {
	Timezone string `envconfig:"POS_ANALYTICS_TIMEZONE" default:"UTC"`
}

// Location resolves the store time zone used for "today" and the daily trend.
func (a AnalyticsConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("POS_ANALYTICS_TIMEZONE: %w", err)
	}
	return loc, nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"POS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"POS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"POS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SalesTopic            string `envconfig:"POS_PUBSUB_SALES_TOPIC" default:"pos-sales-events"`
	InventoryTopic        string `envconfig:"POS_PUBSUB_INVENTORY_TOPIC" default:"pos-inventory-events"`
	AnalyticsSubscription string `envconfig:"POS_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

// BigQueryConfig names the warehouse tables fed by the analytics worker.
type BigQueryConfig struct {
	Dataset          string `envconfig:"POS_BIGQUERY_DATASET"`
	SaleEventsTable  string `envconfig:"POS_BIGQUERY_SALE_EVENTS_TABLE" default:"sale_events"`
	StockEventsTable string `envconfig:"POS_BIGQUERY_STOCK_EVENTS_TABLE" default:"stock_events"`
	BatchSize        int    `envconfig:"POS_BIGQUERY_BATCH_SIZE" default:"1"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"POS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"POS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"POS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsAddr    string `envconfig:"POS_OUTBOX_METRICS_ADDR"`
}

// MaintenanceConfig drives the cron worker that prunes delivered outbox rows.
type MaintenanceConfig struct {
	Interval            time.Duration `envconfig:"POS_MAINTENANCE_INTERVAL" default:"24h"`
	OutboxRetentionDays int           `envconfig:"POS_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays    int           `envconfig:"POS_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
	MetricsAddr         string        `envconfig:"POS_MAINTENANCE_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN(flags FeatureFlagsConfig) error {
	if db.DSN != "" || flags.UseSQLite {
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
