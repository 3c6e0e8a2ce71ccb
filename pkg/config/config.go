package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BIZLEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "BIZLEDGER_APP_ENV"
	EnvPort      = "BIZLEDGER_APP_PORT"
	EnvDBDSN     = "BIZLEDGER_DB_DSN"
	EnvDBHost    = "BIZLEDGER_DB_HOST"
	EnvDBUser    = "BIZLEDGER_DB_USER"
	EnvDBName    = "BIZLEDGER_DB_NAME"
	EnvRedisURL  = "BIZLEDGER_REDIS_URL"
	EnvJWTSecret = "BIZLEDGER_JWT_SECRET"
	EnvJWTIssuer = "BIZLEDGER_JWT_ISSUER"

	EnvGCPProjectID      = "BIZLEDGER_GCP_PROJECT_ID"
	EnvPubSubChangesSub  = "BIZLEDGER_PUBSUB_CHANGES_SUBSCRIPTION"
	EnvSettlementCatID   = "BIZLEDGER_LEDGER_SETTLEMENT_CATEGORY_ID"
	EnvSaleCategoryID    = "BIZLEDGER_LEDGER_SALE_CATEGORY_ID"
	EnvDefaultAccountID  = "BIZLEDGER_LEDGER_DEFAULT_ACCOUNT_ID"
	EnvDefaultPayMethod  = "BIZLEDGER_LEDGER_DEFAULT_PAYMENT_METHOD"
	EnvFeatureUseSQLite  = "BIZLEDGER_USE_SQLITE"
	EnvFeatureRedisCache = "BIZLEDGER_REDIS_CACHE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Cache        CacheConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Ledger       LedgerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BIZLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"BIZLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BIZLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BIZLEDGER_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"BIZLEDGER_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"BIZLEDGER_DB_DSN"`
	SQLitePath string `envconfig:"BIZLEDGER_DB_SQLITE_PATH" default:"bizledger.db"`

	LegacyHost     string `envconfig:"BIZLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"BIZLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BIZLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"BIZLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"BIZLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"BIZLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BIZLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BIZLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BIZLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BIZLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BIZLEDGER_REDIS_URL"`
	Address      string        `envconfig:"BIZLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"BIZLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"BIZLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BIZLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BIZLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BIZLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BIZLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BIZLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the external auth service.
// JWTConfig verifies tokens minted by the external auth service. Audience is
// checked only when set.
type JWTConfig struct {
	Secret   string        `envconfig:"BIZLEDGER_JWT_SECRET" required:"true"`
	Issuer   string        `envconfig:"BIZLEDGER_JWT_ISSUER" required:"true"`
	Audience string        `envconfig:"BIZLEDGER_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"BIZLEDGER_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BIZLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BIZLEDGER_AUTO_MIGRATE" default:"false"`
	RedisCache  bool `envconfig:"BIZLEDGER_REDIS_CACHE" default:"true"`
}

type CacheConfig struct {
	TTL     time.Duration `envconfig:"BIZLEDGER_CACHE_TTL" default:"10m"`
	LRUSize int           `envconfig:"BIZLEDGER_CACHE_LRU_SIZE" default:"4096"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BIZLEDGER_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ChangesSubscription string `envconfig:"BIZLEDGER_PUBSUB_CHANGES_SUBSCRIPTION"`
	MaxOutstanding      int    `envconfig:"BIZLEDGER_PUBSUB_MAX_OUTSTANDING" default:"100"`
	ReceiveGoroutines   int    `envconfig:"BIZLEDGER_PUBSUB_RECEIVE_GOROUTINES" default:"2"`
}

// LedgerConfig carries the defaults the payment protocol and reports resolve
// once at the call boundary.
type LedgerConfig struct {
	SettlementCategoryID uuid.UUID `envconfig:"BIZLEDGER_LEDGER_SETTLEMENT_CATEGORY_ID" required:"true"`
	SaleCategoryID       uuid.UUID `envconfig:"BIZLEDGER_LEDGER_SALE_CATEGORY_ID" required:"true"`
	DefaultAccountID     uuid.UUID `envconfig:"BIZLEDGER_LEDGER_DEFAULT_ACCOUNT_ID"`
	DefaultPaymentMethod string    `envconfig:"BIZLEDGER_LEDGER_DEFAULT_PAYMENT_METHOD" default:"cash"`
	ReportTimezone       string    `envconfig:"BIZLEDGER_LEDGER_REPORT_TZ" default:"UTC"`
}

// Location resolves the timezone reports bucket dates in.
func (l LedgerConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(l.ReportTimezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading report timezone %q: %w", name, err)
	}
	return loc, nil
}

func (l LedgerConfig) validate() error {
	if l.SettlementCategoryID == uuid.Nil {
		return fmt.Errorf("%s must be a non-nil uuid", EnvSettlementCatID)
	}
	if l.SaleCategoryID == uuid.Nil {
		return fmt.Errorf("%s must be a non-nil uuid", EnvSaleCategoryID)
	}
	if _, err := l.Location(); err != nil {
		return err
	}
	return nil
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
