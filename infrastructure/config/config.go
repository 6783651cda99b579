package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session store backends
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Session token signing methods
const (
	JWTSigningHS256 = "HS256"
	JWTSigningRS256 = "RS256"
)

// Record storage backends
const (
	StorageDynamoDB = "dynamodb"
	StorageMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress    string `yaml:"serverAddress"`
	Environment      string `yaml:"environment"`
	TrustedProxyHops int    `yaml:"trustedProxyHops"` // proxies appending to X-Forwarded-For

	// Storage backend for users, OAuth links and dive logs
	Storage string `yaml:"storage"`

	// AWS configuration
	AWSRegion        string `yaml:"awsRegion"`
	DynamoDBEndpoint string `yaml:"dynamodbEndpoint"` // set for DynamoDB Local
	TablePrefix      string `yaml:"tablePrefix"`
	EventBusName     string `yaml:"eventBusName"`

	// Lambda configuration
	IsLambda bool `yaml:"isLambda"`

	// Logging
	LogLevel string `yaml:"logLevel"`

	// Authentication
	JWTSigningMethod string        `yaml:"jwtSigningMethod"` // HS256 or RS256
	JWTSecret        string        `yaml:"jwtSecret"`
	JWTPublicKey     string        `yaml:"jwtPublicKey"`  // PEM, RS256 only
	JWTPrivateKey    string        `yaml:"jwtPrivateKey"` // PEM, RS256 only
	JWTIssuer        string        `yaml:"jwtIssuer"`
	SessionTTL     time.Duration `yaml:"sessionTTL"`
	SessionStore   string        `yaml:"sessionStore"`
	LoginRateLimit int           `yaml:"loginRateLimit"` // attempts per minute per client
	RateLimitTable bool          `yaml:"rateLimitTable"` // share login limits through DynamoDB
	BcryptCost     int           `yaml:"bcryptCost"`

	// Redis session store
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`

	// Feature flags
	EnableMetrics    bool     `yaml:"enableMetrics"`
	EnableTracing    bool     `yaml:"enableTracing"`
	EnableCORS       bool     `yaml:"enableCORS"`
	CORSOrigins      []string `yaml:"corsOrigins"`
	MetricsNamespace string   `yaml:"metricsNamespace"`
}

func defaults() *Config {
	return &Config{
		ServerAddress:    ":8080",
		Environment:      "development",
		Storage:          StorageDynamoDB,
		AWSRegion:        "us-east-1",
		TablePrefix:      "bottomtime",
		LogLevel:         "info",
		JWTSigningMethod: JWTSigningHS256,
		JWTIssuer:        "bottomtime",
		SessionTTL:       14 * 24 * time.Hour,
		SessionStore:     SessionStoreMemory,
		LoginRateLimit:   10,
		EnableCORS:       true,
		CORSOrigins:      []string{"*"},
		MetricsNamespace: "BottomTime",
	}
}

// LoadConfig loads configuration from defaults, then an optional YAML file
// named by CONFIG_FILE, then environment variables. A .env file in the
// working directory is loaded into the environment first if present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.TrustedProxyHops = getEnvInt("TRUSTED_PROXY_HOPS", c.TrustedProxyHops)

	c.Storage = getEnv("STORAGE", c.Storage)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", c.DynamoDBEndpoint)
	c.TablePrefix = getEnv("TABLE_PREFIX", c.TablePrefix)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.JWTSigningMethod = getEnv("JWT_SIGNING_METHOD", c.JWTSigningMethod)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTPublicKey = getEnvPEM("JWT_PUBLIC_KEY", c.JWTPublicKey)
	c.JWTPrivateKey = getEnvPEM("JWT_PRIVATE_KEY", c.JWTPrivateKey)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.SessionStore = getEnv("SESSION_STORE", c.SessionStore)
	c.LoginRateLimit = getEnvInt("LOGIN_RATE_LIMIT", c.LoginRateLimit)
	c.RateLimitTable = getEnvBool("RATE_LIMIT_TABLE", c.RateLimitTable)
	c.BcryptCost = getEnvInt("BCRYPT_COST", c.BcryptCost)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.MetricsNamespace = getEnv("METRICS_NAMESPACE", c.MetricsNamespace)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.JWTSigningMethod {
	case JWTSigningHS256:
		if c.IsProduction() && c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	case JWTSigningRS256:
		if c.JWTPublicKey == "" || c.JWTPrivateKey == "" {
			return fmt.Errorf("JWT_PUBLIC_KEY and JWT_PRIVATE_KEY are required for RS256")
		}
	default:
		return fmt.Errorf("unknown JWT_SIGNING_METHOD %q", c.JWTSigningMethod)
	}

	if c.TrustedProxyHops < 0 {
		return fmt.Errorf("TRUSTED_PROXY_HOPS must not be negative")
	}

	if c.Storage != StorageDynamoDB && c.Storage != StorageMemory {
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when SESSION_STORE is redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.LoginRateLimit < 1 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RedisURL builds a go-redis connection URL from the address settings
func (c *Config) RedisURL() string {
	if strings.HasPrefix(c.RedisAddr, "redis://") || strings.HasPrefix(c.RedisAddr, "rediss://") {
		return c.RedisAddr
	}
	auth := ""
	if c.RedisPassword != "" {
		auth = ":" + c.RedisPassword + "@"
	}
	return fmt.Sprintf("redis://%s%s/%d", auth, c.RedisAddr, c.RedisDB)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvPEM reads a PEM block that may have its newlines escaped as \n
func getEnvPEM(key, defaultValue string) string {
	value := getEnv(key, defaultValue)
	return strings.ReplaceAll(value, `\n`, "\n")
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
