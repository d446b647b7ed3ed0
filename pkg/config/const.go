package config

const (
	EnvPrefix = "ADSBOARD"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "ADSBOARD_APP_ENV"
	EnvPort   = "ADSBOARD_APP_PORT"

	EnvDBDSN  = "ADSBOARD_DB_DSN"
	EnvDBHost = "ADSBOARD_DB_HOST"
	EnvDBUser = "ADSBOARD_DB_USER"
	EnvDBName = "ADSBOARD_DB_NAME"

	EnvRedisURL        = "ADSBOARD_REDIS_URL"
	EnvMetaAccessToken = "ADSBOARD_META_ACCESS_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
