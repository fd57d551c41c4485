package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultFile is read for keys the environment does not set.
const DefaultFile = "config/app.env"

type Config struct {
	// Application
	AppName     string `env:"APP_NAME"`
	Environment string `env:"ENVIRONMENT" validate:"oneof=development production test"`
	AppURL      string `env:"APP_URL" validate:"required,url"`
	Port        string `env:"PORT"`

	DB Database

	// Security
	JWTSecret                string        `env:"JWT_SECRET" validate:"required,min=16"`
	JWTExpiry                time.Duration `env:"JWT_EXPIRY"`
	TokenPasswordResetExpiry time.Duration `env:"TOKEN_PASSWORD_RESET_EXPIRY"`
	AuthRateLimit            int           `env:"AUTH_RATE_LIMIT" validate:"gte=0"`

	// Mail (RESEND_API_KEY optional in development, log mode is used instead)
	MailFrom     string `env:"MAIL_FROM" validate:"required,email"`
	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Environment production"`

	// Observability (optional)
	SentryDSN string `env:"SENTRY_DSN"`

	// Storage: "local" writes under UploadDir, "s3" uses any S3-compatible service
	StorageDriver   string        `env:"STORAGE_DRIVER" validate:"oneof=local s3"`
	UploadDir       string        `env:"UPLOAD_DIR" validate:"required_if=StorageDriver local"`
	S3Region        string        `env:"S3_REGION" validate:"required_if=StorageDriver s3"`
	S3Bucket        string        `env:"S3_BUCKET" validate:"required_if=StorageDriver s3"`
	S3AccessKey     string        `env:"S3_ACCESS_KEY" validate:"required_if=StorageDriver s3"`
	S3SecretKey     string        `env:"S3_SECRET_KEY" validate:"required_if=StorageDriver s3"`
	S3Endpoint      string        `env:"S3_ENDPOINT"`
	S3PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY"`
}

// Database holds the connection settings. Host, port, name, user and password
// are required for Postgres; Path is required for SQLite.
type Database struct {
	Driver       string        `env:"DB_DRIVER" validate:"oneof=pgx sqlite"`
	Host         string        `env:"DB_HOST" validate:"required_if=Driver pgx"`
	Port         string        `env:"DB_PORT" validate:"required_if=Driver pgx"`
	Name         string        `env:"DB_NAME" validate:"required_if=Driver pgx"`
	User         string        `env:"DB_USER" validate:"required_if=Driver pgx"`
	Password     string        `env:"DB_PASSWORD" validate:"required_if=Driver pgx"`
	SSLMode      string        `env:"DB_SSLMODE"`
	Path         string        `env:"DB_PATH" validate:"required_if=Driver sqlite"`
	QueryTimeout time.Duration `env:"DB_QUERY_TIMEOUT" validate:"gt=0"`
}

// DSN returns the driver-specific data source name.
func (d Database) DSN() string {
	if d.Driver == "sqlite" {
		return "file:" + d.Path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// ConfigError lists every required key that is missing and every key whose
// value was rejected.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "config: " + strings.Join(parts, "; ")
}

// Lookup returns the value of a configuration key and whether it was set.
type Lookup func(key string) (string, bool)

// Chain consults each lookup in order and returns the first non-empty value.
func Chain(lookups ...Lookup) Lookup {
	return func(key string) (string, bool) {
		for _, l := range lookups {
			if v, ok := l(key); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
}

// FromMap adapts a key/value map, e.g. the result of godotenv.Read.
func FromMap(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Load reads the configuration and exits the process when it is incomplete.
func Load() *Config {
	cfg, err := Read()
	if err != nil {
		slog.Error("config invalid", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Read loads .env into the environment, then resolves every key from the
// environment first and the config file second.
func Read() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = DefaultFile
	}
	file, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		file = map[string]string{}
	}

	return LoadWith(Chain(os.LookupEnv, FromMap(file)))
}

// LoadWith builds and validates a Config from lookup.
func LoadWith(lookup Lookup) (*Config, error) {
	e := env{lookup: lookup}
	cfg := &Config{
		// Application
		AppName:     e.string("APP_NAME", "Skillfolio"),
		Environment: e.string("ENVIRONMENT", "production"),
		AppURL:      e.string("APP_URL", ""),
		Port:        e.string("PORT", "8090"),

		// Database
		DB: Database{
			Driver:       e.string("DB_DRIVER", "pgx"),
			Host:         e.string("DB_HOST", ""),
			Port:         e.string("DB_PORT", "5432"),
			Name:         e.string("DB_NAME", ""),
			User:         e.string("DB_USER", ""),
			Password:     e.string("DB_PASSWORD", ""),
			SSLMode:      e.string("DB_SSLMODE", "disable"),
			Path:         e.string("DB_PATH", ""),
			QueryTimeout: e.duration("DB_QUERY_TIMEOUT", 5*time.Second),
		},

		// Security
		JWTSecret:                e.string("JWT_SECRET", ""),
		JWTExpiry:                e.duration("JWT_EXPIRY", 168*time.Hour),
		TokenPasswordResetExpiry: e.duration("TOKEN_PASSWORD_RESET_EXPIRY", time.Hour),
		AuthRateLimit:            e.int("AUTH_RATE_LIMIT", 10),

		// Mail
		MailFrom:     e.string("MAIL_FROM", "noreply@example.com"),
		ResendAPIKey: e.string("RESEND_API_KEY", ""),

		// Observability
		SentryDSN: e.string("SENTRY_DSN", ""),

		// Storage
		StorageDriver:   e.string("STORAGE_DRIVER", "local"),
		UploadDir:       e.string("UPLOAD_DIR", "./data/uploads"),
		S3Region:        e.string("S3_REGION", ""),
		S3Bucket:        e.string("S3_BUCKET", ""),
		S3AccessKey:     e.string("S3_ACCESS_KEY", ""),
		S3SecretKey:     e.string("S3_SECRET_KEY", ""),
		S3Endpoint:      e.string("S3_ENDPOINT", ""),
		S3PresignExpiry: e.duration("S3_PRESIGN_EXPIRY", 168*time.Hour),
	}

	err := validate(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Sanitized returns a copy holding only the fields that are safe to hand to
// request handlers. Secrets and credentials are left out.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:       c.AppName,
		Environment:   c.Environment,
		AppURL:        c.AppURL,
		Port:          c.Port,
		AuthRateLimit: c.AuthRateLimit,
		MailFrom:      c.MailFrom,
		StorageDriver: c.StorageDriver,
		S3Endpoint:    c.S3Endpoint,
	}
}

var validate = newValidator()

func newValidator() func(*Config) error {
	v := validator.New()
	// Report fields by their configuration key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})

	return func(cfg *Config) error {
		err := v.Struct(cfg)
		if err == nil {
			return nil
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		cerr := &ConfigError{}
		for _, fe := range verrs {
			if strings.HasPrefix(fe.Tag(), "required") {
				cerr.Missing = append(cerr.Missing, fe.Field())
				continue
			}
			cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return cerr
	}
}

type env struct {
	lookup Lookup
}

func (e env) string(key, def string) string {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	return v
}

func (e env) int(key string, def int) int {
	v := e.string(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func (e env) duration(key string, def time.Duration) time.Duration {
	v := e.string(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
