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
	JWT          JWTConfig
	Auth         AuthConfig
	Marketplace  MarketplaceConfig
	Catalog      CatalogConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Marketplace.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"COURSEMARKET_APP_ENV" required:"true"`
	Port         string   `envconfig:"COURSEMARKET_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"COURSEMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"COURSEMARKET_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"COURSEMARKET_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COURSEMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"COURSEMARKET_DB_DSN"`

	LegacyHost     string `envconfig:"COURSEMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"COURSEMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COURSEMARKET_DB_USER"`
	LegacyPassword string `envconfig:"COURSEMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"COURSEMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"COURSEMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COURSEMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COURSEMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COURSEMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COURSEMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"COURSEMARKET_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COURSEMARKET_REDIS_URL"`
	Address      string        `envconfig:"COURSEMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"COURSEMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"COURSEMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COURSEMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COURSEMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COURSEMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COURSEMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COURSEMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COURSEMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COURSEMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COURSEMARKET_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// AuthConfig drives wallet sign-in. AdminAddressHashes holds keccak256
// digests of admin wallet addresses, never the addresses themselves.
type AuthConfig struct {
	NonceTTL           time.Duration `envconfig:"COURSEMARKET_AUTH_NONCE_TTL" default:"5m"`
	AdminAddressHashes []string      `envconfig:"COURSEMARKET_AUTH_ADMIN_ADDRESS_HASHES"`
	LoginWindow        time.Duration `envconfig:"COURSEMARKET_AUTH_RATE_LIMIT_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"COURSEMARKET_AUTH_RATE_LIMIT_IP_LIMIT" default:"20"`
	LoginAddressLimit  int           `envconfig:"COURSEMARKET_AUTH_RATE_LIMIT_ADDRESS_LIMIT" default:"10"`
}

type MarketplaceConfig struct {
	// Admin is the deployer address that becomes administrator the first
	// time the contract row is created.
	Admin       string        `envconfig:"COURSEMARKET_MARKETPLACE_ADMIN" required:"true"`
	BlockTime   time.Duration `envconfig:"COURSEMARKET_MARKETPLACE_BLOCK_TIME" default:"0s"`
	QueueSize   int           `envconfig:"COURSEMARKET_MARKETPLACE_QUEUE_SIZE" default:"256"`
	WaitTimeout time.Duration `envconfig:"COURSEMARKET_MARKETPLACE_WAIT_TIMEOUT" default:"30s"`
}

func (m MarketplaceConfig) validate() error {
	admin := strings.TrimSpace(m.Admin)
	if len(admin) != 42 || !strings.HasPrefix(admin, "0x") {
		return fmt.Errorf("%s must be a 0x-prefixed 20 byte address", EnvMarketplaceAdmin)
	}
	if m.QueueSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvMarketplaceQueueSize)
	}
	return nil
}

type CatalogConfig struct {
	Path string `envconfig:"COURSEMARKET_CATALOG_PATH" default:"content/courses/index.json"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COURSEMARKET_AUTO_MIGRATE" default:"false"`
	Faucet      bool `envconfig:"COURSEMARKET_FEATURE_FAUCET" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COURSEMARKET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"COURSEMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COURSEMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	CoursesTopic  string `envconfig:"COURSEMARKET_PUBSUB_COURSES_TOPIC" default:"cm-course-events"`
	CustodyTopic  string `envconfig:"COURSEMARKET_PUBSUB_CUSTODY_TOPIC" default:"cm-custody-events"`
	ContractTopic string `envconfig:"COURSEMARKET_PUBSUB_CONTRACT_TOPIC" default:"cm-contract-events"`

	// OrderedDelivery keys messages by aggregate so one course's events
	// arrive in block order.
	OrderedDelivery bool `envconfig:"COURSEMARKET_PUBSUB_ORDERED_DELIVERY" default:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COURSEMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COURSEMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COURSEMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// MetricsAddr enables a /metrics listener on the publisher when set.
	MetricsAddr string `envconfig:"COURSEMARKET_OUTBOX_METRICS_ADDR"`
}

// CronConfig schedules the maintenance worker. MetricsAddr is optional;
// when empty the worker exposes no HTTP listener.
type CronConfig struct {
	Tick                    time.Duration `envconfig:"COURSEMARKET_CRON_TICK" default:"1m"`
	CustodyAuditInterval    time.Duration `envconfig:"COURSEMARKET_CRON_CUSTODY_AUDIT_INTERVAL" default:"1h"`
	OutboxRetentionInterval time.Duration `envconfig:"COURSEMARKET_CRON_OUTBOX_RETENTION_INTERVAL" default:"24h"`
	OutboxRetentionDays     int           `envconfig:"COURSEMARKET_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	OutboxRetentionBatch    int           `envconfig:"COURSEMARKET_CRON_OUTBOX_RETENTION_BATCH" default:"500"`
	JobTimeout              time.Duration `envconfig:"COURSEMARKET_CRON_JOB_TIMEOUT" default:"10m"`
	MetricsAddr             string        `envconfig:"COURSEMARKET_CRON_METRICS_ADDR"`
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
