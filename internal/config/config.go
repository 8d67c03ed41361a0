package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the complete service configuration
type Config struct {
	Server    ServerConfig    `validate:"required"`
	Database  DatabaseConfig  `validate:"required"`
	Logging   LoggingConfig   `validate:"required"`
	Dashboard DashboardConfig `validate:"required"`

	location *time.Location
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host           string        `validate:"omitempty,hostname|ip"`
	Port           int           `validate:"min=1,max=65535"`
	ReadTimeout    time.Duration `validate:"gt=0"`
	WriteTimeout   time.Duration `validate:"gt=0"`
	IdleTimeout    time.Duration `validate:"gt=0"`
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL/PostGIS connection settings.
// URL, when set, takes precedence over the discrete fields.
type DatabaseConfig struct {
	URL             string `validate:"omitempty,url"`
	Host            string `validate:"required_without=URL"`
	Port            int    `validate:"min=1,max=65535"`
	User            string `validate:"required_without=URL"`
	Password        string
	Database        string `validate:"required_without=URL"`
	SSLMode         string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int    `validate:"min=1"`
	MaxIdleConns    int    `validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `validate:"oneof=debug info warn warning error"`
}

// DashboardConfig holds aggregation settings
type DashboardConfig struct {
	// Timezone is the IANA zone used to assign records to calendar days and months
	Timezone string `validate:"required"`
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment wins.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvIntOrDefault("SERVER_PORT", 8080),
			ReadTimeout:    getEnvDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getEnvListOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            getEnvIntOrDefault("DB_PORT", 5432),
			User:            getEnvOrDefault("DB_USER", "postgres"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        getEnvOrDefault("DB_NAME", "sala_situacao"),
			SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDurationOrDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		},
		Dashboard: DashboardConfig{
			Timezone: getEnvOrDefault("DASHBOARD_TIMEZONE", "America/Sao_Paulo"),
		},
	}

	return cfg, nil
}

// Validate checks struct constraints and resolves the dashboard timezone
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	loc, err := time.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return fmt.Errorf("invalid DASHBOARD_TIMEZONE %q: %w", c.Dashboard.Timezone, err)
	}
	c.location = loc

	return nil
}

// Location is the resolved dashboard timezone. UTC until Validate succeeds.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// DSN returns the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

func getEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getEnvDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func getEnvListOrDefault(key string, def []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
