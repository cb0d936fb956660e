package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	SenderEmail string `yaml:"senderEmail"`
	SenderName  string `yaml:"senderName"`
}

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
		TrustedProxies []string `yaml:"trustedProxies"`
		// BaseURL is the public frontend address used in emailed links and notifications.
		BaseURL string `yaml:"baseURL"`
	} `yaml:"server"`

	Database struct {
		// Driver is "mongo" or "memory".
		Driver string `yaml:"driver"`
		URI    string `yaml:"uri"`
		// SeedTestUsers creates the demo accounts at startup.
		SeedTestUsers bool `yaml:"seedTestUsers"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	JWT struct {
		Secret string        `yaml:"secret"`
		Expiry time.Duration `yaml:"expiry"`
	} `yaml:"jwt"`

	SMTP SMTPConfig `yaml:"smtp"`

	Cron struct {
		Secret string `yaml:"secret"`
		// SweepInterval > 0 runs the timeout sweep in-process as well as via the cron endpoint.
		SweepInterval time.Duration `yaml:"sweepInterval"`
	} `yaml:"cron"`

	RateLimit struct {
		// Backend is "memory" (per process) or "redis" (shared between instances).
		Backend string `yaml:"backend"`
	} `yaml:"rateLimit"`

	RBAC struct {
		// PolicySource is "default" for the built-in policies or "mongo" for the casbin_rule collection.
		PolicySource string `yaml:"policySource"`
	} `yaml:"rbac"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// LoadConfig reads the configuration file, then applies .env and environment overrides
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Database.URI, "MONGODB_URI")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.JWT.Secret, "JWT_SECRET")
	setString(&c.Cron.Secret, "CRON_SECRET")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.RateLimit.Backend, "RATE_LIMIT_BACKEND")

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 1313
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if len(c.Server.TrustedProxies) == 0 {
		c.Server.TrustedProxies = []string{"127.0.0.1"}
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:5173"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mongo"
	}
	if c.JWT.Expiry == 0 {
		c.JWT.Expiry = 24 * time.Hour
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RBAC.PolicySource == "" {
		c.RBAC.PolicySource = "default"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mongo":
		if c.Database.URI == "" {
			return fmt.Errorf("database.uri is required for the mongo driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("unknown rateLimit.backend %q", c.RateLimit.Backend)
	}
	if c.RBAC.PolicySource == "mongo" && c.Database.Driver != "mongo" {
		return fmt.Errorf("rbac.policySource mongo requires the mongo database driver")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret (or JWT_SECRET) is required")
	}
	if c.Cron.Secret == "" {
		return fmt.Errorf("cron.secret (or CRON_SECRET) is required")
	}
	return nil
}
