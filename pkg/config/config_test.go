package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "scholchat", cfg.Database.Name)
	assert.Equal(t, 15*time.Minute, cfg.Lookups.CacheTTL)
	assert.Equal(t, 2, cfg.Audit.Workers)
	assert.True(t, cfg.Exports.Enabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("LOOKUP_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://admin.scholchat.io , ,http://localhost:3000")
	v.Set("JWT_AUDIENCE", "dashboard")
	v.Set("AUDIT_RETRY_DELAY", "250ms")

	cfg := fromViper(v)
	assert.Equal(t, 15*time.Minute, cfg.Lookups.CacheTTL)
	assert.Equal(t, []string{"https://admin.scholchat.io", "http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"dashboard"}, cfg.JWT.Audience)
	assert.Equal(t, 250*time.Millisecond, cfg.Audit.RetryDelay)
}
