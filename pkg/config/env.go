package config

const EnvPrefix = "PACKLIST"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                = "PACKLIST_APP_ENV"
	EnvPort                  = "PACKLIST_APP_PORT"
	EnvDBDSN                 = "PACKLIST_DB_DSN"
	EnvDBHost                = "PACKLIST_DB_HOST"
	EnvDBUser                = "PACKLIST_DB_USER"
	EnvDBName                = "PACKLIST_DB_NAME"
	EnvDBPassword            = "PACKLIST_DB_PASSWORD"
	EnvUseSQLite             = "PACKLIST_USE_SQLITE"
	EnvRedisURL              = "PACKLIST_REDIS_URL"
	EnvJWTSecret             = "PACKLIST_JWT_SECRET"
	EnvJWTIssuer             = "PACKLIST_JWT_ISSUER"
	EnvJWTExpMins            = "PACKLIST_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID          = "PACKLIST_GCP_PROJECT_ID"
	EnvPubSubPackEventsTopic = "PACKLIST_PUBSUB_PACK_EVENTS_TOPIC"
	EnvSitemapBasePath       = "PACKLIST_SITEMAP_BASE_PATH"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
