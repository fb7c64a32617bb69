package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type S3Config struct {
	Bucket    string
	Directory string
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint points the client at an S3-compatible store; empty means AWS.
	Endpoint string
}

type ESConfig struct {
	URL      string
	User     string
	Password string
	Index    string
}

// Config is built once at start-up and passed by value afterwards.
type Config struct {
	AppPort     int
	DatabaseURL string
	LogLevel    string

	JWTSecret      []byte
	JWTExpiration  time.Duration
	CookieLifetime time.Duration

	S3 S3Config

	KafkaBrokers []string
	ES           ESConfig

	CSRFEnabled bool
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("cannot read .env, using process environment", "error", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	jwtExp, err := EnvDurationDefault("JWT_EXPIRATION", time.Hour)
	if err != nil {
		return Config{}, err
	}
	cookieExp, err := EnvDurationDefault("JWT_COOKIE_EXPIRATION", time.Hour)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppPort:     EnvIntDefault("APP_PORT", 8080),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		JWTSecret:      []byte(os.Getenv("JWT_SECRET_KEY")),
		JWTExpiration:  jwtExp,
		CookieLifetime: cookieExp,

		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET_NAME"),
			Directory: os.Getenv("S3_DIRECTORY_NAME"),
			Region:    EnvDefault("AWS_REGION", "us-east-1"),
			AccessKey: os.Getenv("AWS_ACCESS_KEY"),
			SecretKey: os.Getenv("AWS_SECRET_KEY"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
		},

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		ES: ESConfig{
			URL:      os.Getenv("ES_URL"),
			User:     os.Getenv("ES_USER"),
			Password: os.Getenv("ES_PASSWORD"),
			Index:    EnvDefault("ES_INDEX", "products"),
		},

		CSRFEnabled: EnvBool("CSRF_ENABLED"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if len(c.JWTSecret) == 0 {
		errs = append(errs, missing("JWT_SECRET_KEY"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, missing("DATABASE_URL"))
	}
	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT out of range: %d", c.AppPort))
	}
	if c.JWTExpiration <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION must be positive"))
	}
	if c.CookieLifetime <= 0 {
		errs = append(errs, errors.New("JWT_COOKIE_EXPIRATION must be positive"))
	}
	return errors.Join(errs...)
}

func missing(key string) error {
	return fmt.Errorf("missing required env %s", key)
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.AppPort)
}
