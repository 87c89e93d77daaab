package config

const (
	EnvPrefix = "COURSEMARKET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "COURSEMARKET_APP_ENV"
	EnvPort   = "COURSEMARKET_APP_PORT"

	EnvDBDSN  = "COURSEMARKET_DB_DSN"
	EnvDBHost = "COURSEMARKET_DB_HOST"
	EnvDBUser = "COURSEMARKET_DB_USER"
	EnvDBName = "COURSEMARKET_DB_NAME"

	EnvRedisURL = "COURSEMARKET_REDIS_URL"

	EnvJWTSecret = "COURSEMARKET_JWT_SECRET"
	EnvJWTIssuer = "COURSEMARKET_JWT_ISSUER"

	EnvAuthAdminHashes = "COURSEMARKET_AUTH_ADMIN_ADDRESS_HASHES"

	EnvMarketplaceAdmin     = "COURSEMARKET_MARKETPLACE_ADMIN"
	EnvMarketplaceBlockTime = "COURSEMARKET_MARKETPLACE_BLOCK_TIME"
	EnvMarketplaceQueueSize = "COURSEMARKET_MARKETPLACE_QUEUE_SIZE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
