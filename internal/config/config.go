package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from the environment, optionally seeded from a .env file.
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	Store  StoreConfig
	DB     DBConfig
	Redis  RedisConfig
	Twilio TwilioConfig
	Dial   DialConfig
	HTTP   HTTPConfig
}

type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

type StoreConfig struct {
	// Driver is "postgres" or "memory".
	Driver      string
	AutoMigrate bool
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. When Host is empty the dial limiter stays in-process.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	PhoneNumber       string
	// APIBaseURL overrides scheme and host of SDK requests; empty uses api.twilio.com.
	APIBaseURL        string
	StatusCallbackURL string
	ValidateSignature bool
	Voice             string
}

type DialConfig struct {
	// RatePerSecond may be fractional; the in-process and Redis limiters both
	// keep it exactly. 0 disables pacing.
	RatePerSecond float64
	// Burst also sizes the Redis sliding window: Burst placements per Burst/RatePerSecond.
	Burst         int
	DefaultScript string
	// LimiterKey scopes the shared Redis window; one key per provider account.
	LimiterKey string
}

type HTTPConfig struct {
	AllowedOrigins []string
	WriteTimeout   time.Duration
}

// Load reads .env (if present) and the environment, then validates.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Config{}
	var parseErrs []error
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	c.App.Env = get("APP_ENV")
	c.App.Port, parseErrs = intOr(get, "APP_PORT", 8080, parseErrs)
	c.App.LogLevel = get("LOG_LEVEL")

	c.Store.Driver = strings.ToLower(get("STORE_DRIVER"))
	c.Store.AutoMigrate, parseErrs = boolOr(get, "DB_AUTO_MIGRATE", false, parseErrs)

	c.DB.Host = get("DB_HOST")
	c.DB.Port, parseErrs = intOr(get, "DB_PORT", 5432, parseErrs)
	c.DB.User = get("DB_USER")
	c.DB.Password = getenv("DB_PASSWORD")
	c.DB.Name = get("DB_NAME")
	c.DB.SSLMode = get("DB_SSLMODE")

	c.Redis.Host = get("REDIS_HOST")
	c.Redis.Port, parseErrs = intOr(get, "REDIS_PORT", 6379, parseErrs)
	c.Redis.Password = getenv("REDIS_PASSWORD")

	c.Twilio.AccountSID = get("TWILIO_ACCOUNT_SID")
	c.Twilio.AuthToken = getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.PhoneNumber = get("TWILIO_PHONE_NUMBER")
	c.Twilio.APIBaseURL = get("TWILIO_API_BASE_URL")
	c.Twilio.StatusCallbackURL = get("TWILIO_STATUS_CALLBACK_URL")
	c.Twilio.ValidateSignature, parseErrs = boolOr(get, "TWILIO_VALIDATE_SIGNATURE", false, parseErrs)
	c.Twilio.Voice = get("TWILIO_VOICE")

	c.Dial.RatePerSecond, parseErrs = floatOr(get, "DIAL_RATE_PER_SECOND", 1, parseErrs)
	c.Dial.Burst, parseErrs = intOr(get, "DIAL_BURST", 1, parseErrs)
	c.Dial.DefaultScript = get("DEFAULT_VOICE_SCRIPT")
	c.Dial.LimiterKey = get("DIAL_LIMITER_KEY")

	c.HTTP.AllowedOrigins = splitList(get("ALLOWED_ORIGINS"))
	c.HTTP.WriteTimeout, parseErrs = durationOr(get, "HTTP_WRITE_TIMEOUT", 0, parseErrs)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the config and fills defaults that depend on other values.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "postgres"
	}
	switch c.Store.Driver {
	case "postgres":
		errs = append(errs, c.validateDB()...)
	case "memory":
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_DRIVER=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Store.Driver))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Twilio.ValidateSignature && c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required when TWILIO_VALIDATE_SIGNATURE is set"))
	}
	if c.IsProduction() {
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required in production"))
		}
		if c.Twilio.PhoneNumber == "" {
			errs = append(errs, errors.New("TWILIO_PHONE_NUMBER is required in production"))
		}
	}

	if c.Dial.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("DIAL_RATE_PER_SECOND must be >= 0, got %v", c.Dial.RatePerSecond))
	}
	if c.Dial.Burst <= 0 {
		errs = append(errs, fmt.Errorf("DIAL_BURST must be > 0, got %d", c.Dial.Burst))
	}
	if c.Dial.LimiterKey == "" {
		c.Dial.LimiterKey = "autodialer:dial:" + c.Twilio.AccountSID
	}

	// Bulk dispatch runs inside the request; the write timeout must cover a paced batch.
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 30 * time.Minute
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) IsLocal() bool {
	return c.App.Env == "local" || c.App.Env == "dev"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func intOr(get func(string) string, key string, def int, errs []error) (int, []error) {
	v := get(key)
	if v == "" {
		return def, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func floatOr(get func(string) string, key string, def float64, errs []error) (float64, []error) {
	v := get(key)
	if v == "" {
		return def, errs
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be a number, got %q", key, v))
	}
	return f, errs
}

func boolOr(get func(string) string, key string, def bool, errs []error) (bool, []error) {
	v := get(key)
	if v == "" {
		return def, errs
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
	}
	return b, errs
}

func durationOr(get func(string) string, key string, def time.Duration, errs []error) (time.Duration, []error) {
	v := get(key)
	if v == "" {
		return def, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
