package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DBConfig holds the PostgreSQL connection settings.
type DBConfig struct {
	Host                 string
	Port                 string
	User                 string
	Password             string
	Name                 string
	SSLMode              string
	MaxIdleConns         int
	MaxOpenConns         int
	ConnMaxLifetime      time.Duration
	PreferSimpleProtocol bool
	LogLevel             string
}

// DSN returns the PostgreSQL connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// TenancyConfig controls subdomain resolution and the resolver failure policy.
type TenancyConfig struct {
	// ExcludedSubdomains never resolve to a tenant.
	ExcludedSubdomains []string
	// DevFallback switches a request to the public schema when tenant
	// resolution fails instead of failing the request.
	DevFallback  bool
	BaseDomain   string
	ResetTimeout time.Duration
}

type Config struct {
	Port string
	Env  string

	DB DBConfig

	JWTSecret     string
	JWTTTLHours   int
	JWTIssuer     string
	BcryptCost    int
	LogLevel      string
	MetricsPrefix string

	// Redis backs the token denylist cache and the rate limiter store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka receives tenant lifecycle events.
	KafkaBrokers []string
	KafkaTopic   string

	RateLimitPerMinute int64
	CORSOrigins        []string
	// TrustedProxies may set the client IP through forwarding headers. Empty
	// trusts none and uses the peer address.
	TrustedProxies []string

	Tenancy TenancyConfig
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads environment variables and returns a Config object
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment variables")
	}

	// An unset APP_ENV still runs in development mode, but only an explicit
	// development setting turns the tenant fallback on.
	explicitEnv, _ := os.LookupEnv("APP_ENV")
	env := getEnv("APP_ENV", "development")

	return &Config{
		Port: getEnv("PORT", "3000"),
		Env:  env,

		DB: DBConfig{
			Host:                 getEnv("DB_HOST", "localhost"),
			Port:                 getEnv("DB_PORT", "5432"),
			User:                 getEnv("DB_USER", "postgres"),
			Password:             getEnv("DB_PASSWORD", "postgres"),
			Name:                 getEnv("DB_NAME", "tenant_access"),
			SSLMode:              getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:         getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:         getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime:      getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			PreferSimpleProtocol: getEnvAsBool("DB_PREFER_SIMPLE_PROTOCOL", false),
			LogLevel:             getEnv("DB_LOG_LEVEL", "warn"),
		},

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTTTLHours:   getEnvAsInt("JWT_TTL_HOURS", 24),
		JWTIssuer:     getEnv("JWT_ISSUER", "tenant-access-backend"),
		BcryptCost:    getEnvAsInt("BCRYPT_COST", 12),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		MetricsPrefix: getEnv("METRICS_PREFIX", "tenant_access"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		KafkaBrokers: getEnvAsList("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TENANT_TOPIC", "tenant-events"),

		RateLimitPerMinute: int64(getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100)),
		CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:4173"}),
		TrustedProxies:     getEnvAsList("TRUSTED_PROXIES", nil),

		Tenancy: TenancyConfig{
			ExcludedSubdomains: getEnvAsList("TENANT_EXCLUDED_SUBDOMAINS", []string{"www", "api", "admin", "mail", "ftp"}),
			DevFallback:        getEnvAsBool("TENANT_DEV_FALLBACK", explicitEnv == "development"),
			BaseDomain:         getEnv("TENANT_BASE_DOMAIN", "localhost:3000"),
			ResetTimeout:       getEnvAsDuration("TENANT_RESET_TIMEOUT", 5*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
