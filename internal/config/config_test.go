package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/venue-ticketing/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CRDB_DSN", "postgresql://root@localhost:26257/ticketing")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("QR_SIGNING_KEY", "")
	t.Setenv("HOLD_TTL", "")
	t.Setenv("MONGO_DB", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 30*time.Second, cfg.ExpiryInterval)
	assert.Equal(t, "ticketing", cfg.MongoDatabase)
	assert.Equal(t, "secret", cfg.QRSigningKey)
	assert.False(t, cfg.S3.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CRDB_DSN", "postgresql://root@localhost:26257/ticketing")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("QR_SIGNING_KEY", "qr")
	t.Setenv("HOLD_TTL", "90s")
	t.Setenv("S3_BUCKET", "images")
	t.Setenv("S3_ACCESS_KEY_ID", "id")
	t.Setenv("S3_SECRET_ACCESS_KEY", "key")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.HoldTTL)
	assert.Equal(t, "qr", cfg.QRSigningKey)
	assert.True(t, cfg.S3.Enabled())
}

func TestLoad_RequiresDSNAndSecret(t *testing.T) {
	t.Setenv("CRDB_DSN", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("CRDB_DSN", "postgresql://root@localhost:26257/ticketing")
	t.Setenv("JWT_SECRET", "")
	_, err = config.Load()
	assert.Error(t, err)
}
