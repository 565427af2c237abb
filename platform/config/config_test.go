package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/backoffice")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ALLOW_ALL", "false")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.Equal(t, "backoffice", cfg.GetMongoDatabase())
	assert.Equal(t, "default", cfg.GetAsynqQueueName())
	assert.Equal(t, 10, cfg.GetAsynqConcurrency())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.IsSMTPEnabled())
	assert.False(t, cfg.IsMinIOEnabled())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.GetCORSOrigins())
}

func TestLoadRequiresMongoURI(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MONGO_URI", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}

func TestLoadRejectsWildcardCORSWithCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresFromAddressWithSMTP(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("EMAIL_FROM_ADDRESS", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("EMAIL_FROM_ADDRESS", "crm@example.com")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsSMTPEnabled())
}

func TestSplitCSVTrimsEmptyEntries(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a, ,b ,"))
}
