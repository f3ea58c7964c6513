package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ESTATEHUB_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8000", cfg.HTTPAddr())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2000, cfg.Messages.MaxLength)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL())
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.HTTP.CORSOrigins)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 256, cfg.Notify.QueueSize)
	assert.False(t, cfg.HTTP.TrustProxy)
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout())
}

func TestLoadLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estatehub.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[http]
port = 9000

[database]
driver = "postgres"
url = "postgres://localhost/estatehub"

[auth]
jwt_secret = "from-file"

[kafka]
brokers = ["k1:9092"]
`), 0o600))

	t.Setenv("ESTATEHUB_HTTP_PORT", "9100")
	t.Setenv("ESTATEHUB_MESSAGES_MAX_LENGTH", "500")
	t.Setenv("ESTATEHUB_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTP.Port, "env overrides file")
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 500, cfg.Messages.MaxLength)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadValidation(t *testing.T) {
	t.Run("Missing secret", func(t *testing.T) {
		_, err := Load("")
		assert.ErrorContains(t, err, "jwt_secret")
	})

	t.Run("Unknown driver", func(t *testing.T) {
		t.Setenv("ESTATEHUB_AUTH_JWT_SECRET", "s3cret")
		t.Setenv("ESTATEHUB_DATABASE_DRIVER", "mysql")
		_, err := Load("")
		assert.ErrorContains(t, err, "mysql")
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "auth.jwt_secret", envKey("ESTATEHUB_AUTH_JWT_SECRET"))
	assert.Equal(t, "http.cors_origins", envKey("ESTATEHUB_HTTP_CORS_ORIGINS"))
	assert.Equal(t, "database.url", envKey("ESTATEHUB_DATABASE_URL"))
}
