package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (EXTRAWEB_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	Environment   string        `default:"development" usage:"Deployment environment; production hides error stacks"`
	StatsCacheTTL time.Duration `default:"5m" usage:"Dashboard stats cache lifetime; 0 disables caching" flag:"stats-cache-ttl"`
	Mongo         MongoConfig
	Auth          AuthConfig
	Redis         RedisConfig
	AMQP          AMQPConfig
	Outbox        OutboxConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// MongoConfig selects the primary database.
type MongoConfig struct {
	URI      string `usage:"MongoDB connection URI (EXTRAWEB_MONGO_URI or MONGODB_URI)" flag:"mongo-uri"`
	Database string `default:"extraweb" usage:"MongoDB database name" flag:"mongo-database"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `usage:"HMAC secret for HS256 access tokens" flag:"jwt-secret"`
	Issuer    string `default:"" usage:"Expected token issuer; empty skips the check" flag:"jwt-issuer"`
}

// RedisConfig configures the stats cache. An empty URL disables it.
type RedisConfig struct {
	URL string `default:"" usage:"Redis URL (EXTRAWEB_REDIS_URL or REDIS_URL)" flag:"redis-url"`
}

// AMQPConfig configures the mail broker. An empty URL logs mails instead.
type AMQPConfig struct {
	URL   string `default:"" usage:"AMQP broker URL for outgoing mail" flag:"amqp-url"`
	Queue string `default:"extraweb.mail" usage:"Queue mail jobs are published to" flag:"amqp-queue"`
}

// OutboxConfig tunes the side-effect task dispatcher.
type OutboxConfig struct {
	PollInterval   time.Duration `default:"1s" usage:"Idle poll interval"`
	Lease          time.Duration `default:"30s" usage:"Task lease before it can be reclaimed"`
	MaxAttempts    int           `default:"8" usage:"Attempts before a task is dead-lettered"`
	InitialBackoff time.Duration `default:"5s" usage:"First retry delay"`
	MaxBackoff     time.Duration `default:"30m" usage:"Retry delay cap"`
	MaxDeadGrowth  int64         `default:"100" usage:"Dead-lettered tasks per health interval before liveness fails"`
}

// RateLimitConfig controls the sliding window rate limiters.
type RateLimitConfig struct {
	Max         int           `default:"100" usage:"Max requests per client per window"`
	Window      time.Duration `default:"1m"  usage:"Rate limit window duration"`
	OrderMax    int           `default:"10" usage:"Max order writes per user per window; 0 disables"`
	OrderWindow time.Duration `default:"1m" usage:"Order write window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// Production reports whether the service runs in production.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// LoadConfig loads configuration from environment variables, YAML config files,
// flags and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "EXTRAWEB",
		Files:     []string{"config.yaml", "/etc/extraweb/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Mongo.URI == "" {
		return nil, errors.New("mongo URI is required: set EXTRAWEB_MONGO_URI or MONGODB_URI")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set EXTRAWEB_AUTH_JWT_SECRET")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like MONGODB_URI and PORT to the
// application's EXTRAWEB_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Mongo.URI == "" {
		c.Mongo.URI = os.Getenv("MONGODB_URI")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
