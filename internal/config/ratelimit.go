package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig tunes the token bucket guarding POST /api/auth/login.
// A bucket holds Capacity tokens and gains RefillTokens every
// RefillInterval; one login attempt costs one token.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  The defaults allow a
// burst of 10 login attempts per client IP and one more every 6 seconds.
func LoadRateLimitConfig() RateLimitConfig {
	v := env()
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_CAPACITY", 10)
	v.SetDefault("RATE_LIMIT_REFILL_TOKENS", 1)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second)
	v.SetDefault("RATE_LIMIT_TTL", 10*time.Minute)
	v.SetDefault("RATE_LIMIT_KEY_STRATEGY", "ip_route")
	v.SetDefault("RATE_LIMIT_PREFIX", "rl")
	v.SetDefault("RATE_LIMIT_DEBUG", false)

	def := RateLimitConfig{
		Enabled:        switchOn(v, "RATE_LIMIT_ENABLED"),
		Capacity:       v.GetInt("RATE_LIMIT_CAPACITY"),
		RefillTokens:   v.GetInt("RATE_LIMIT_REFILL_TOKENS"),
		RefillInterval: v.GetDuration("RATE_LIMIT_REFILL_INTERVAL"),
		TTL:            v.GetDuration("RATE_LIMIT_TTL"),
		KeyStrategy:    v.GetString("RATE_LIMIT_KEY_STRATEGY"),
		Prefix:         v.GetString("RATE_LIMIT_PREFIX"),
		Debug:          switchOn(v, "RATE_LIMIT_DEBUG"),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	minTTL := 5 * def.RefillInterval
	if def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

// env returns a viper instance resolving keys from the process
// environment.
func env() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

// switchOn reads a boolean key that may also be spelled yes/no or on/off.
func switchOn(v *viper.Viper, key string) bool {
	switch strings.ToLower(strings.TrimSpace(v.GetString(key))) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	return v.GetBool(key)
}
