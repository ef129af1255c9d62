package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pay/internal/currency"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	LogFormat          string
	LogLevel           string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// ChargedCurrencyMode selects base or display currency for new orders.
	ChargedCurrencyMode currency.Mode

	ManagementLiveBaseURL string
	ManagementTestBaseURL string
	ManagementAPIKeyLive  string
	ManagementAPIKeyTest  string
	ManagementHTTPTimeout time.Duration

	DonationAmounts    []decimal.Decimal
	DonationCardMethod string
	// DonationTxVariants maps alternative payment method codes to the
	// provider tx variant sent with a donation capture.
	DonationTxVariants map[string]string
	DonationLockTTL    time.Duration

	DonationRateWindow time.Duration
	DonationRateMax    int

	CheckoutBaseURL string
	CheckoutAPIKey  string
	MerchantAccount string

	MetricsNamespace   string
	TracingEnabled     bool
	TracingEndpoint    string
	TracingSampleRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	amounts, err := parseAmounts(k.String("DONATION_AMOUNTS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		ChargedCurrencyMode: parseMode(k.String("CHARGED_CURRENCY")),

		ManagementLiveBaseURL: valueOrDefault(k.String("MANAGEMENT_BASE_URL_LIVE"), "https://management-live.example-payments.com/v3"),
		ManagementTestBaseURL: valueOrDefault(k.String("MANAGEMENT_BASE_URL_TEST"), "https://management-test.example-payments.com/v3"),
		ManagementAPIKeyLive:  k.String("MANAGEMENT_API_KEY_LIVE"),
		ManagementAPIKeyTest:  k.String("MANAGEMENT_API_KEY_TEST"),
		ManagementHTTPTimeout: parseDuration(k.String("MANAGEMENT_HTTP_TIMEOUT"), "10s"),

		DonationAmounts:    amounts,
		DonationCardMethod: valueOrDefault(k.String("DONATION_CARD_METHOD"), "cc"),
		DonationTxVariants: parsePairs(k.String("DONATION_TX_VARIANTS")),
		DonationLockTTL:    parseDuration(k.String("DONATION_LOCK_TTL"), "10s"),

		DonationRateWindow: parseDuration(k.String("DONATION_RATE_WINDOW"), "1m"),
		DonationRateMax:    int(k.Int64("DONATION_RATE_MAX")),

		CheckoutBaseURL: valueOrDefault(k.String("CHECKOUT_BASE_URL"), "https://checkout-test.example-payments.com/v71"),
		CheckoutAPIKey:  k.String("CHECKOUT_API_KEY"),
		MerchantAccount: k.String("MERCHANT_ACCOUNT"),

		MetricsNamespace:   valueOrDefault(k.String("METRICS_NAMESPACE"), "pay"),
		TracingEnabled:     k.Bool("TRACING_ENABLED"),
		TracingEndpoint:    k.String("TRACING_ENDPOINT"),
		TracingSampleRatio: k.Float64("TRACING_SAMPLE_RATIO"),
	}
	if cfg.DonationRateMax <= 0 {
		cfg.DonationRateMax = 10
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// ChargedCurrency implements currency.ModeSource. The setting is global;
// storeID is accepted for hosts that scope it per store.
func (c *Config) ChargedCurrency(string) currency.Mode {
	return c.ChargedCurrencyMode
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// ManagementBaseURL returns the management API base URL for the given mode.
func (c *Config) ManagementBaseURL(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), "live") {
		return c.ManagementLiveBaseURL
	}
	return c.ManagementTestBaseURL
}

// ManagementAPIKey returns the configured API key for the given mode.
func (c *Config) ManagementAPIKey(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), "live") {
		return c.ManagementAPIKeyLive
	}
	return c.ManagementAPIKeyTest
}

func parseMode(value string) currency.Mode {
	if strings.EqualFold(strings.TrimSpace(value), string(currency.ModeBase)) {
		return currency.ModeBase
	}
	return currency.ModeDisplay
}

func parseAmounts(csv string) ([]decimal.Decimal, error) {
	parts := splitAndTrim(csv)
	out := make([]decimal.Decimal, 0, len(parts))
	for _, part := range parts {
		d, err := decimal.NewFromString(part)
		if err != nil {
			return nil, fmt.Errorf("DONATION_AMOUNTS: invalid amount %q: %w", part, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// parsePairs reads "key=value,key=value" lists.
func parsePairs(csv string) map[string]string {
	parts := splitAndTrim(csv)
	if len(parts) == 0 {
		return nil
	}
	out := make(map[string]string, len(parts))
	for _, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key != "" && value != "" {
			out[key] = value
		}
	}
	return out
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// LoadForTests allows tests to override environment variables without leaking
// into the real environment.
func LoadForTests(envs map[string]string) (*Config, error) {
	original := make(map[string]string, len(envs))
	for key := range envs {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, envs[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
