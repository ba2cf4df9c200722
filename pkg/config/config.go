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
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Sitemap      SitemapConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PACKLIST_APP_ENV" required:"true"`
	Port         string `envconfig:"PACKLIST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PACKLIST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PACKLIST_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"PACKLIST_LOG_FORMAT" default:"json"`

	CORSAllowedOrigins []string `envconfig:"PACKLIST_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PACKLIST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PACKLIST_DB_DSN"`
	Driver string `envconfig:"PACKLIST_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PACKLIST_DB_HOST"`
	Port     int    `envconfig:"PACKLIST_DB_PORT" default:"5432"`
	User     string `envconfig:"PACKLIST_DB_USER"`
	Password string `envconfig:"PACKLIST_DB_PASSWORD"`
	Name     string `envconfig:"PACKLIST_DB_NAME"`
	SSLMode  string `envconfig:"PACKLIST_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"PACKLIST_SQLITE_PATH" default:"packlist.db"`

	MaxOpenConns    int           `envconfig:"PACKLIST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PACKLIST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PACKLIST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKLIST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional. Without a URL or address the API runs without
// session presence checks and idempotent replay.
type RedisConfig struct {
	URL          string        `envconfig:"PACKLIST_REDIS_URL"`
	Address      string        `envconfig:"PACKLIST_REDIS_ADDR"`
	Password     string        `envconfig:"PACKLIST_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKLIST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKLIST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKLIST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKLIST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKLIST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKLIST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"PACKLIST_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PACKLIST_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PACKLIST_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL is the lifetime of minted access tokens and of their sessions.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PACKLIST_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PACKLIST_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PACKLIST_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PACKLIST_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PACKLIST_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PACKLIST_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PackEventsTopic string `envconfig:"PACKLIST_PUBSUB_PACK_EVENTS_TOPIC" default:"packlist-pack-events"`
	DeadLetterTopic string `envconfig:"PACKLIST_PUBSUB_DEAD_LETTER_TOPIC"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PACKLIST_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PACKLIST_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PACKLIST_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// SitemapConfig controls the loc entries served for public packs.
type SitemapConfig struct {
	BasePath string `envconfig:"PACKLIST_SITEMAP_BASE_PATH"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
