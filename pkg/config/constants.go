package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "PAYMENTS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "PAYMENTS_APP_ENV"
	EnvPort   = "PAYMENTS_APP_PORT"

	EnvDBDSN  = "PAYMENTS_DB_DSN"
	EnvDBHost = "PAYMENTS_DB_HOST"
	EnvDBUser = "PAYMENTS_DB_USER"
	EnvDBName = "PAYMENTS_DB_NAME"

	EnvRedisURL = "PAYMENTS_REDIS_URL"

	EnvStripeAPIKey        = "PAYMENTS_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "PAYMENTS_STRIPE_WEBHOOK_SECRET"

	EnvBankAPIURL        = "PAYMENTS_BANK_API_URL"
	EnvBankAPIKey        = "PAYMENTS_BANK_API_KEY"
	EnvBankWebhookSecret = "PAYMENTS_BANK_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
