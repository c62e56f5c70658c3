// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/crypto/bcrypt"
)

// DevJWTSecret is the signing secret shipped in local compose files.
// It is rejected when the environment is production.
const DevJWTSecret = "dev-secret-key-change-in-production-000000"

const minJWTSecretBytes = 32

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Security  SecurityConfig  `koanf:"security"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Services  ServicesConfig  `koanf:"services"`
	Admin     AdminConfig     `koanf:"admin"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DrainDelay      time.Duration `koanf:"drain_delay"`
	TrustedProxies  []string      `koanf:"trusted_proxies"`
}

type DatabaseConfig struct {
	URL               string        `koanf:"url"`
	MinConns          int           `koanf:"min_conns"`
	MaxConns          int           `koanf:"max_conns"`
	ConnectTimeout    time.Duration `koanf:"connect_timeout"`
	AcquireTimeout    time.Duration `koanf:"acquire_timeout"`
	ConnMaxLifetime   time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `koanf:"conn_max_idle_time"`
	HealthCheckPeriod time.Duration `koanf:"health_check_period"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	Secret            string        `koanf:"secret"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type SecurityConfig struct {
	BcryptCost int `koanf:"bcrypt_cost"`
}

// RateLimitConfig holds the global limit plus the per-route budgets,
// all expressed as requests per minute per client address.
type RateLimitConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Requests     int           `koanf:"requests"`
	Window       time.Duration `koanf:"window"`
	Burst        int           `koanf:"burst"`
	Register     int           `koanf:"register"`
	Login        int           `koanf:"login"`
	FormsConnect int           `koanf:"forms_connect"`
	Analysis     int           `koanf:"analysis"`
}

type ServicesConfig struct {
	FormsURL          string        `koanf:"forms_url"`
	PlagiarismURL     string        `koanf:"plagiarism_url"`
	AIDetectionURL    string        `koanf:"ai_detection_url"`
	RankingURL        string        `koanf:"ranking_url"`
	FileProcessingURL string        `koanf:"file_processing_url"`
	Timeout           time.Duration `koanf:"timeout"`
}

// AdminConfig lists the accounts allowed on /api/admin.
type AdminConfig struct {
	Emails []string `koanf:"emails"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order.
func Load(configPath string) (*Config, error) {
	return load(configPath)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKeyValue), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "SmartScreen API Gateway",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8000,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "60s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.drain_delay":      "5s",
		"server.trusted_proxies":  []string{},

		"database.min_conns":           1,
		"database.max_conns":           20,
		"database.connect_timeout":     "10s",
		"database.acquire_timeout":     "10s",
		"database.conn_max_lifetime":   "1h",
		"database.conn_max_idle_time":  "30m",
		"database.health_check_period": "1m",

		"redis.url":            "redis://localhost:6379/0",
		"redis.pool_size":      10,
		"redis.min_idle_conns": 2,

		"jwt.secret":              DevJWTSecret,
		"jwt.access_token_expire": "24h",
		"jwt.issuer":              "smartscreen-gateway",
		"jwt.audience":            "smartscreen-api",

		"security.bcrypt_cost": 12,

		"rate_limit.enabled":       true,
		"rate_limit.requests":      100,
		"rate_limit.window":        "1m",
		"rate_limit.burst":         20,
		"rate_limit.register":      5,
		"rate_limit.login":         10,
		"rate_limit.forms_connect": 10,
		"rate_limit.analysis":      20,

		"services.forms_url":           "http://localhost:8001",
		"services.plagiarism_url":      "http://localhost:8002",
		"services.ai_detection_url":    "http://localhost:8003",
		"services.ranking_url":         "http://localhost:8004",
		"services.file_processing_url": "http://localhost:8005",
		"services.timeout":             "30s",

		"admin.emails": []string{},

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "smartscreen-gateway",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DB_MIN_CONNS":                "database.min_conns",
	"DB_MAX_CONNS":                "database.max_conns",
	"DB_CONNECT_TIMEOUT":          "database.connect_timeout",
	"DB_ACQUIRE_TIMEOUT":          "database.acquire_timeout",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"TRUSTED_PROXIES":             "server.trusted_proxies",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_SECRET":                  "jwt.secret",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"BCRYPT_COST":                 "security.bcrypt_cost",
	"RATE_LIMIT_ENABLED":          "rate_limit.enabled",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"RATE_LIMIT_REGISTER":         "rate_limit.register",
	"RATE_LIMIT_LOGIN":            "rate_limit.login",
	"RATE_LIMIT_FORMS_CONNECT":    "rate_limit.forms_connect",
	"RATE_LIMIT_ANALYSIS":         "rate_limit.analysis",
	"SERVICES_TIMEOUT":            "services.timeout",
	"ADMIN_EMAILS":                "admin.emails",
	"CORS_ALLOWED_ORIGINS":        "cors.allowed_origins",
	"FORMS_SERVICE_URL":           "services.forms_url",
	"PLAGIARISM_SERVICE_URL":      "services.plagiarism_url",
	"AI_DETECTION_SERVICE_URL":    "services.ai_detection_url",
	"RANKING_SERVICE_URL":         "services.ranking_url",
	"FILE_PROCESSING_SERVICE_URL": "services.file_processing_url",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

var envListKeys = map[string]bool{
	"admin.emails":           true,
	"cors.allowed_origins":   true,
	"server.trusted_proxies": true,
}

func envKeyValue(key, value string) (string, any) {
	mapped, ok := envKeyMap[key]
	if !ok {
		return "", nil
	}

	if envListKeys[mapped] {
		parts := strings.Split(value, ",")
		items := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		return mapped, items
	}

	return mapped, value
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Database.MinConns < 0 || c.Database.MaxConns < 1 {
		return fmt.Errorf("database pool bounds must satisfy min >= 0 and max >= 1")
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf(
			"database.min_conns (%d) exceeds database.max_conns (%d)",
			c.Database.MinConns,
			c.Database.MaxConns,
		)
	}

	if c.Database.AcquireTimeout <= 0 {
		return fmt.Errorf("database.acquire_timeout must be positive")
	}

	if len(c.JWT.Secret) < minJWTSecretBytes {
		return fmt.Errorf(
			"JWT_SECRET must be at least %d bytes",
			minJWTSecretBytes,
		)
	}

	if c.JWT.AccessTokenExpire <= 0 {
		return fmt.Errorf("jwt.access_token_expire must be positive")
	}

	if c.Security.BcryptCost < bcrypt.MinCost ||
		c.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf(
			"security.bcrypt_cost must be between %d and %d",
			bcrypt.MinCost,
			bcrypt.MaxCost,
		)
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.JWT.Secret == DevJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
