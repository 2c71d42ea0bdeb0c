package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productionConfig() *Config {
	return &Config{
		Env:                      "production",
		Port:                     "8080",
		JWTSecret:                "3f9c1a7e2b8d4f6a0c5e9b1d7a3f8c2e",
		DBPassword:               "zephyr-db-pass",
		DBSSLMode:                "require",
		MediaMaxUploadMB:         10,
		DBConnMaxLifetimeMinutes: 1,
		GlobalRateLimit:          100,
		TracingSample:            0.25,
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate  func(*Config)
		wantErr string
	}{
		"production baseline":         {mutate: func(*Config) {}},
		"prod alias with verify-full": {mutate: func(c *Config) { c.Env, c.DBSSLMode = "prod", "verify-full" }},
		"dev may skip tls":            {mutate: func(c *Config) { c.Env, c.DBSSLMode = "development", "disable" }},
		"test may leave sslmode":      {mutate: func(c *Config) { c.Env, c.DBSSLMode = "test", "" }},
		"dev tolerates short secret":  {mutate: func(c *Config) { c.Env, c.JWTSecret = "development", "short" }},
		"zero disables global limit":  {mutate: func(c *Config) { c.GlobalRateLimit = 0 }},

		"prod without sslmode":  {mutate: func(c *Config) { c.DBSSLMode = "" }, wantErr: "DB_SSLMODE"},
		"prod with tls off":     {mutate: func(c *Config) { c.DBSSLMode = "disable" }, wantErr: "DB_SSLMODE"},
		"prod default secret":   {mutate: func(c *Config) { c.JWTSecret = defaultJWTSecret }, wantErr: "default value"},
		"prod short secret":     {mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: "at least 32"},
		"prod default password": {mutate: func(c *Config) { c.DBPassword = "password" }, wantErr: "DB_PASSWORD"},
		"no port":               {mutate: func(c *Config) { c.Port = "" }, wantErr: "PORT"},
		"no upload size":        {mutate: func(c *Config) { c.MediaMaxUploadMB = 0 }, wantErr: "MEDIA_MAX_UPLOAD_MB"},
		"negative global limit": {mutate: func(c *Config) { c.GlobalRateLimit = -1 }, wantErr: "GLOBAL_RATE_LIMIT"},
		"sample ratio above 1":  {mutate: func(c *Config) { c.TracingSample = 1.5 }, wantErr: "TRACING_SAMPLE_RATIO"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := productionConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestKafkaBrokerList(t *testing.T) {
	c := &Config{KafkaBrokers: " kafka-1:9092, ,kafka-2:9092 "}
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.KafkaBrokerList())

	c.KafkaBrokers = ""
	assert.Empty(t, c.KafkaBrokerList())
}

func TestLoadConfig_DefaultsAndEnvOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("PORT", "9090")
	t.Setenv("GLOBAL_RATE_LIMIT", "0")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "development", c.Env)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 0, c.GlobalRateLimit)
	assert.Equal(t, 10, c.MediaMaxUploadMB)
	assert.Equal(t, "hybrid", c.DBSchemaMode)
	assert.InDelta(t, 1.0, c.TracingSample, 1e-9)
	assert.False(t, c.IsProduction())
}
