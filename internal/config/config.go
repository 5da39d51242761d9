package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; durations and prices are parsed at load time so
// the rest of the application never sees raw strings.
type Config struct {
	Env         string // APP_ENV (local, dev, prod)
	Port        string // APP_PORT
	JWTSecret   string // JWT_SECRET, HS256 key shared with the identity provider
	LogLevel    string // LOG_LEVEL
	StoreDriver string // STORE_DRIVER

	DBUser      string // DB_USER (mysql)
	DBPass      string // DB_PASS (mysql, empty allowed)
	DBHost      string // DB_HOST (mysql)
	DBPort      string // DB_PORT (mysql)
	DBName      string // DB_NAME (mysql)
	DatabaseURL string // DATABASE_URL (postgres)

	BasePrice      decimal.Decimal // BASE_PRICE, price of the first started hour
	IncrementPrice decimal.Decimal // INCREMENT_PRICE, price of each further started hour

	MaxAdvance     time.Duration // MAX_ADVANCE_DAYS
	MaxDuration    time.Duration // MAX_DURATION_MINUTES
	ExpiryGrace    time.Duration // EXPIRY_GRACE_MINUTES
	ReaperInterval time.Duration // REAPER_INTERVAL_SECONDS
	ReaperBatch    int           // REAPER_BATCH_SIZE
	ListPageSize   int           // LIST_PAGE_SIZE
	MaxNotesLength int           // MAX_NOTES_LENGTH

	StoreTimeout       time.Duration // STORE_TIMEOUT
	StoreRetryAttempts int           // STORE_RETRY_ATTEMPTS
	AreaCacheTTL       time.Duration // AREA_CACHE_TTL

	EventsEnabled bool   // EVENTS_ENABLED
	RabbitMQURL   string // RABBITMQ_URL (AMQP_URL accepted as fallback)
}

// LoadDotEnv reads .env (or the given files) into the process environment
// without overriding variables that are already set.  A missing file is
// not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must(); every missing or malformed value is
// reported with the variable name, and all problems are joined into the
// returned error.
func Load() (Config, error) {
	l := &loader{}
	cfg := Config{
		Env:         l.must("APP_ENV"),
		Port:        l.must("APP_PORT"),
		JWTSecret:   l.must("JWT_SECRET"),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", DriverMemory)),

		BasePrice:      l.money("BASE_PRICE", "5.00"),
		IncrementPrice: l.money("INCREMENT_PRICE", "2.50"),

		MaxAdvance:     time.Duration(l.positiveInt("MAX_ADVANCE_DAYS", 30)) * 24 * time.Hour,
		MaxDuration:    time.Duration(l.positiveInt("MAX_DURATION_MINUTES", 720)) * time.Minute,
		ExpiryGrace:    time.Duration(l.nonNegativeInt("EXPIRY_GRACE_MINUTES", 0)) * time.Minute,
		ReaperInterval: time.Duration(l.positiveInt("REAPER_INTERVAL_SECONDS", 60)) * time.Second,
		ReaperBatch:    l.positiveInt("REAPER_BATCH_SIZE", 100),
		ListPageSize:   l.positiveInt("LIST_PAGE_SIZE", 50),
		MaxNotesLength: l.positiveInt("MAX_NOTES_LENGTH", 500),

		StoreTimeout:       l.duration("STORE_TIMEOUT", 5*time.Second),
		StoreRetryAttempts: l.positiveInt("STORE_RETRY_ATTEMPTS", 3),
		AreaCacheTTL:       l.duration("AREA_CACHE_TTL", time.Minute),

		EventsEnabled: l.boolean("EVENTS_ENABLED", true),
		RabbitMQURL:   envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
	}

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverMySQL:
		cfg.DBUser = l.must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = l.must("DB_HOST")
		cfg.DBPort = l.must("DB_PORT")
		cfg.DBName = l.must("DB_NAME")
	case DriverPostgres:
		cfg.DatabaseURL = l.must("DATABASE_URL")
	default:
		l.fail("STORE_DRIVER", "want memory, mysql or postgres, got %q", cfg.StoreDriver)
	}
	return cfg, errors.Join(l.errs...)
}

// loader accumulates configuration errors instead of exiting on the first.
type loader struct {
	errs []error
}

func (l *loader) fail(key, format string, args ...any) {
	l.errs = append(l.errs, fmt.Errorf("%s: %s", key, fmt.Sprintf(format, args...)))
}

// must retrieves the value of a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.fail(key, "missing required env var")
	}
	return v
}

func (l *loader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(key, "invalid int %q", v)
		return def
	}
	return n
}

func (l *loader) positiveInt(key string, def int) int {
	n := l.integer(key, def)
	if n <= 0 {
		l.fail(key, "must be positive, got %d", n)
	}
	return n
}

func (l *loader) nonNegativeInt(key string, def int) int {
	n := l.integer(key, def)
	if n < 0 {
		l.fail(key, "must not be negative, got %d", n)
	}
	return n
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		l.fail(key, "invalid duration %q", v)
		return def
	}
	return d
}

func (l *loader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.fail(key, "invalid bool %q", v)
		return def
	}
	return b
}

func (l *loader) money(key, def string) decimal.Decimal {
	v := envStr(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		l.fail(key, "invalid amount %q", v)
		return decimal.RequireFromString(def)
	}
	if d.IsNegative() {
		l.fail(key, "must not be negative, got %s", v)
	}
	return d
}
