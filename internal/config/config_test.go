package config

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_HMAC_SECRET", "s3cret")
	t.Setenv("REFRESH_TOKEN_PEPPER", "pepper")
	t.Setenv("DB_USER", "app")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMySQL, cfg.StorageDriver)
	assert.Equal(t, "127.0.0.1", cfg.DB.Host)
	assert.True(t, cfg.DB.Migrate)
	assert.Equal(t, "eventhub", cfg.Auth.Issuer)
	assert.Equal(t, 900, cfg.Auth.AccessTTLSeconds)
	assert.Equal(t, 2592000, cfg.Auth.RefreshTTLSeconds)
	assert.Equal(t, "admin@eventhub.local", cfg.Auth.AdminEmail)
	assert.Empty(t, cfg.Auth.AdminPasscode)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())
	assert.False(t, cfg.AMQP.Enabled)
	assert.Equal(t, "auth.events", cfg.AMQP.AuditQueue)
	assert.Equal(t, 256, cfg.AMQP.PublishBuffer)

	rl := cfg.RateLimit
	assert.True(t, rl.Enabled)
	assert.Equal(t, 20, rl.Capacity)
	assert.Equal(t, 3*time.Second, rl.RefillInterval)
	assert.Equal(t, 10*time.Minute, rl.TTL)
	assert.Equal(t, "ip_route", rl.KeyStrategy)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("ACCESS_TOKEN_FORMAT", "JWT")
	t.Setenv("ACCESS_TOKEN_TTL_SECONDS", "60")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, "cache:6380", cfg.Redis.Address())
	assert.Equal(t, 5, cfg.RateLimit.Capacity)
	assert.Equal(t, time.Minute, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.TTL)

	sc := cfg.Auth.SignerConfig()
	assert.Equal(t, "jwt", sc.Format)
	assert.Equal(t, time.Minute, sc.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, sc.RefreshTTL)
	assert.Equal(t, []byte("s3cret"), sc.Secret)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":  {"AUTH_HMAC_SECRET": ""},
		"missing pepper":  {"REFRESH_TOKEN_PEPPER": ""},
		"zero access ttl": {"ACCESS_TOKEN_TTL_SECONDS": "0"},
		"negative ttl":    {"REFRESH_TOKEN_TTL_SECONDS": "-1"},
		"bcrypt too low":  {"BCRYPT_COST": "3"},
		"bcrypt too high": {"BCRYPT_COST": "32"},
		"unknown format":  {"ACCESS_TOKEN_FORMAT": "paseto"},
		"unknown driver":  {"STORAGE_DRIVER": "postgres"},
		"mysql w/o user":  {"DB_USER": ""},
		"bad integer":     {"BCRYPT_COST": "twelve"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestRateLimitNormalize(t *testing.T) {
	rl := RateLimitConfig{Capacity: 0, RefillTokens: -2, RefillInterval: 0, TTL: time.Second}
	rl.normalize()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, time.Second, rl.RefillInterval)
	assert.Equal(t, 5*time.Second, rl.TTL)
	assert.Equal(t, "rl", rl.Prefix)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewRedisClient(RedisConfig{Addr: mr.Addr()})
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, NewRedisClient(RedisConfig{Addr: mr.Addr()}))
}
