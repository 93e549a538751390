package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
)

func TestDefaultsWithoutSources(t *testing.T) {
	t.Parallel()

	cfg := config.NewWith(viper.New())

	assert.Equal(t, config.DefaultServerAddress, cfg.GetServerConfig().Address)
	assert.Equal(t, "localhost:6379", cfg.GetRedisConfig().Addr)
	assert.Equal(t, config.DefaultErrorsToCooldown, cfg.GetPoolConfig().ErrorsToCooldown)
	assert.Equal(t, config.DefaultReuseWindow, cfg.GetRotatorConfig().ReuseWindow)
	assert.Empty(t, cfg.GetCookieKey())
	assert.Equal(t, config.DefaultYtDlpScript, cfg.GetYtDlpConfig().ScriptPath)
}

func TestPlatformConfigOverrides(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("platforms.instagram.request_timeout", "5s")
	v.Set("platforms.instagram.cache_ttl", "1h")
	cfg := config.NewWith(v)

	igCfg := cfg.GetPlatformConfig(domain.PlatformInstagram)
	assert.Equal(t, 5*time.Second, igCfg.RequestTimeout)
	assert.Equal(t, time.Hour, igCfg.CacheTTL)

	// Untouched platforms keep their defaults.
	fbCfg := cfg.GetPlatformConfig(domain.PlatformFacebook)
	assert.Equal(t, config.DefaultRequestTimeout, fbCfg.RequestTimeout)
}

func TestMarkerListsHaveDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.NewWith(viper.New())

	for _, platform := range []string{domain.PlatformFacebook, domain.PlatformInstagram} {
		pCfg := cfg.GetPlatformConfig(platform)
		assert.NotEmpty(t, pCfg.LoginMarkers, platform)
		assert.NotEmpty(t, pCfg.CheckpointMarkers, platform)
	}
}

func TestMarkerOverrideReplacesDefaults(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("platforms.weibo.login_markers", []string{"passport.weibo.com"})
	cfg := config.NewWith(v)

	assert.Equal(t, []string{"passport.weibo.com"}, cfg.GetPlatformConfig(domain.PlatformWeibo).LoginMarkers)
}
