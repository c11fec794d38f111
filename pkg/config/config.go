package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	pkgerrors "github.com/playforge/payments-backend/pkg/errors"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Bank         BankConfig
	Payments     PaymentsConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseMemoryLedger); err != nil {
		return nil, err
	}
	if err := cfg.ensureProdSecrets(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYMENTS_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYMENTS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PAYMENTS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYMENTS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PAYMENTS_DB_DSN"`
	Driver string `envconfig:"PAYMENTS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PAYMENTS_DB_HOST"`
	LegacyPort     int    `envconfig:"PAYMENTS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PAYMENTS_DB_USER"`
	LegacyPassword string `envconfig:"PAYMENTS_DB_PASSWORD"`
	LegacyName     string `envconfig:"PAYMENTS_DB_NAME"`
	LegacySSLMode  string `envconfig:"PAYMENTS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYMENTS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYMENTS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYMENTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYMENTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYMENTS_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"PAYMENTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYMENTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYMENTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYMENTS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYMENTS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey         string `envconfig:"PAYMENTS_STRIPE_API_KEY"`
	PublishableKey string `envconfig:"PAYMENTS_STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret  string `envconfig:"PAYMENTS_STRIPE_WEBHOOK_SECRET"`
	Env            string `envconfig:"PAYMENTS_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type BankConfig struct {
	APIURL        string        `envconfig:"PAYMENTS_BANK_API_URL"`
	APIKey        string        `envconfig:"PAYMENTS_BANK_API_KEY"`
	WebhookSecret string        `envconfig:"PAYMENTS_BANK_WEBHOOK_SECRET"`
	SourceAccount string        `envconfig:"PAYMENTS_BANK_SOURCE_ACCOUNT"`
	Timeout       time.Duration `envconfig:"PAYMENTS_BANK_TIMEOUT" default:"10s"`
}

type PaymentsConfig struct {
	MinAmountCents    int64         `envconfig:"PAYMENTS_MIN_AMOUNT_CENTS" default:"50"`
	MaxAmountCents    int64         `envconfig:"PAYMENTS_MAX_AMOUNT_CENTS" default:"99999900"`
	AllowedCurrencies []string      `envconfig:"PAYMENTS_ALLOWED_CURRENCIES" default:"usd,eur,gbp,aud,cad,jpy"`
	ProviderTimeout   time.Duration `envconfig:"PAYMENTS_PROVIDER_TIMEOUT" default:"10s"`
	MaxDescriptionLen int           `envconfig:"PAYMENTS_MAX_DESCRIPTION_LEN" default:"500"`
	MaxMetadataKeys   int           `envconfig:"PAYMENTS_MAX_METADATA_KEYS" default:"20"`
}

// CurrencyAllowed reports whether the lowercase form of code is accepted.
func (p PaymentsConfig) CurrencyAllowed(code string) bool {
	normalized := strings.ToLower(strings.TrimSpace(code))
	for _, candidate := range p.AllowedCurrencies {
		if strings.ToLower(strings.TrimSpace(candidate)) == normalized {
			return true
		}
	}
	return false
}

type RateLimitConfig struct {
	Window time.Duration `envconfig:"PAYMENTS_RATE_LIMIT_WINDOW" default:"1m"`
	Max    int           `envconfig:"PAYMENTS_RATE_LIMIT_MAX" default:"60"`
}

type FeatureFlagsConfig struct {
	UseMemoryLedger bool `envconfig:"PAYMENTS_USE_MEMORY_LEDGER" default:"false"`
	AutoMigrate     bool `envconfig:"PAYMENTS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(memoryLedger bool) error {
	if db.DSN != "" || memoryLedger {
		return nil
	}
	if strings.EqualFold(db.Driver, "sqlite") {
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

// ensureProdSecrets fails startup when a production deployment is missing a
// payment secret. Degrading silently would leave webhooks unverifiable.
func (c *Config) ensureProdSecrets() error {
	if !c.App.IsProd() {
		return nil
	}

	missing := []string{}
	if strings.TrimSpace(c.Stripe.APIKey) == "" {
		missing = append(missing, EnvStripeAPIKey)
	}
	if strings.TrimSpace(c.Stripe.WebhookSecret) == "" {
		missing = append(missing, EnvStripeWebhookSecret)
	}
	if strings.TrimSpace(c.Bank.APIURL) == "" {
		missing = append(missing, EnvBankAPIURL)
	}
	if strings.TrimSpace(c.Bank.APIKey) == "" {
		missing = append(missing, EnvBankAPIKey)
	}
	if strings.TrimSpace(c.Bank.WebhookSecret) == "" {
		missing = append(missing, EnvBankWebhookSecret)
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeConfiguration,
			fmt.Sprintf("missing required production secrets: %s", strings.Join(missing, ", ")))
	}
	return nil
}
