package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DASHBOARD_TIMEZONE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "America/Sao_Paulo", cfg.Dashboard.Timezone)
	assert.Equal(t, "America/Sao_Paulo", cfg.Location().String())
	assert.Contains(t, cfg.Database.DSN(), "dbname=sala_situacao")
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/sala?sslmode=disable")
	t.Setenv("DASHBOARD_TIMEZONE", "UTC")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://painel.example.org, https://mapa.example.org")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "postgres://app:secret@db:5432/sala?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, []string{"https://painel.example.org", "https://mapa.example.org"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "Port"},
		{"bad ssl mode", func(c *Config) { c.Database.SSLMode = "sometimes" }, "SSLMode"},
		{"idle above open", func(c *Config) { c.Database.MaxIdleConns = 100 }, "MaxIdleConns"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "Level"},
		{"bad timezone", func(c *Config) { c.Dashboard.Timezone = "Mars/Olympus" }, "DASHBOARD_TIMEZONE"},
		{"missing host without url", func(c *Config) { c.Database.Host = "" }, "Host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			cfg, err := LoadConfig()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}
