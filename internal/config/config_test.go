package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiration)
	assert.False(t, cfg.AccessEnabled)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "10M", cfg.ImportMaxBytes)
	assert.Equal(t, "attendance.events", cfg.AttendanceQueue)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Contains(t, cfg.DBDSN, "tcp(127.0.0.1:3306)/school_admin")
	assert.Contains(t, cfg.DBDSN, "parseTime=true")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "8080")
	t.Setenv("ACCESS_ENABLED", "true")
	t.Setenv("JWT_EXPIRATION", "7d")
	t.Setenv("DB_DSN", "u:p@tcp(db:3306)/x?parseTime=true")
	t.Setenv("TIMEZONE", "Africa/Nairobi")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.AccessEnabled)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, "u:p@tcp(db:3306)/x?parseTime=true", cfg.DBDSN)
	assert.Equal(t, "Africa/Nairobi", cfg.Location.String())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"bad expiration", map[string]string{"JWT_EXPIRATION": "forever"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"bad body limit", map[string]string{"IMPORT_MAX_BYTES": "lots"}},
		{"bad bcrypt cost", map[string]string{"BCRYPT_COST": "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseExpiration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1h", time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"2d", 48 * time.Hour, false},
		{"3600", time.Hour, false},
		{"", 0, true},
		{"xd", 0, true},
		{"-1h", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseExpiration(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	cfg := LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, time.Minute, cfg.RefillInterval)
	assert.Equal(t, 5*time.Minute, cfg.TTL)
	assert.Equal(t, "ip_route", cfg.KeyStrategy)
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	assert.Equal(t, "cache:6380", LoadRedisConfig().Addr)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_DB", "2")
	cfg := LoadRedisConfig()
	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
}

func TestLoadRateLimitConfig_defaults(t *testing.T) {
	for _, k := range []string{"RATE_LIMIT_ENABLED", "RATE_LIMIT_CAPACITY", "RATE_LIMIT_REFILL_INTERVAL", "RATE_LIMIT_TTL", "RATE_LIMIT_DEBUG"} {
		t.Setenv(k, "")
	}

	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 10, cfg.Capacity)
	assert.Equal(t, 6*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Minute, cfg.TTL)
	assert.Equal(t, "rl", cfg.Prefix)
}

func TestSwitchOn(t *testing.T) {
	v := env()
	for in, want := range map[string]bool{"yes": true, "ON": true, "1": true, "true": true, "no": false, "off": false, "0": false, "junk": false} {
		t.Setenv("RATE_LIMIT_DEBUG", in)
		assert.Equal(t, want, switchOn(v, "RATE_LIMIT_DEBUG"), in)
	}
}

func TestLoadRedisConfig_tls(t *testing.T) {
	t.Setenv("REDIS_TLS", "on")
	t.Setenv("REDIS_PASSWORD", "s3cret")
	cfg := LoadRedisConfig()
	assert.True(t, cfg.TLS)
	assert.Equal(t, "s3cret", cfg.Password)
}
