package config

const (
	EnvPrefix = "CANCELMEM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres  = "postgres"
	DBDriverSQLite    = "sqlite"
	defaultSQLitePath = "cancelmem.db"

	EnvAppEnv            = "CANCELMEM_APP_ENV"
	EnvPort              = "CANCELMEM_APP_PORT"
	EnvDBDSN             = "CANCELMEM_DB_DSN"
	EnvDBDriver          = "CANCELMEM_DB_DRIVER"
	EnvDBHost            = "CANCELMEM_DB_HOST"
	EnvDBUser            = "CANCELMEM_DB_USER"
	EnvDBName            = "CANCELMEM_DB_NAME"
	EnvDBPassword        = "CANCELMEM_DB_PASSWORD"
	EnvRedisURL          = "CANCELMEM_REDIS_URL"
	EnvJWTSecret         = "CANCELMEM_SUPABASE_JWT_SECRET"
	EnvRemindersTimezone = "CANCELMEM_REMINDERS_TIMEZONE"
	EnvFreeLimit         = "CANCELMEM_FREE_SUBSCRIPTION_LIMIT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
