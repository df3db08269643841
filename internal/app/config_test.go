package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader() aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "EXTRAWEB",
		SkipFiles: true,
		SkipFlags: true,
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("EXTRAWEB_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("EXTRAWEB_AUTH_JWT_SECRET", "secret")

	cfg, err := loadConfig(testLoader())
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, "extraweb", cfg.Mongo.Database)
	assert.Equal(t, "extraweb.mail", cfg.AMQP.Queue)
	assert.Equal(t, 5*time.Minute, cfg.StatsCacheTTL)
	assert.Equal(t, 8, cfg.Outbox.MaxAttempts)
	assert.Equal(t, 10, cfg.RateLimit.OrderMax)
	assert.False(t, cfg.Production())
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://db:27017")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("PORT", "9000")
	t.Setenv("EXTRAWEB_AUTH_JWT_SECRET", "secret")
	t.Setenv("EXTRAWEB_ENVIRONMENT", "production")

	cfg, err := loadConfig(testLoader())
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.True(t, cfg.Production())
}

func TestLoadConfig_Required(t *testing.T) {
	for _, tt := range []struct {
		name string
		env  map[string]string
		want string
	}{
		{"NoMongo", map[string]string{"EXTRAWEB_AUTH_JWT_SECRET": "secret"}, "mongo URI is required"},
		{"NoSecret", map[string]string{"EXTRAWEB_MONGO_URI": "mongodb://localhost"}, "JWT secret is required"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MONGODB_URI", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(testLoader())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
