package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	Env     string
	LogFile string

	JWTSecret string

	MongoURI      string
	MongoDatabase string

	ScyllaHosts    []string
	ScyllaKeyspace string
	ScyllaUsername string
	ScyllaPassword string

	RedisHost       string
	RedisPassword   string
	ProductCacheTTL time.Duration

	ElasticURL      string
	ElasticUser     string
	ElasticPassword string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	KafkaBrokers    string
	KafkaOrderTopic string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	StripeSecretKey     string
	StripeWebhookSecret string
	ClientURL           string
	Currency            string

	MaxCartItems    int
	MaxItemQuantity int
	CartRateLimit   int64
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	// .env is optional outside of local development
	_ = godotenv.Load(".env")
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Port:    getEnv("PORT", "8080"),
		Env:     getEnv("APP_ENV", "development"),
		LogFile: os.Getenv("LOG_FILE"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "storefront"),

		ScyllaHosts:    splitCSV(getEnv("SCYLLA_HOSTS", "127.0.0.1")),
		ScyllaKeyspace: getEnv("SCYLLA_KEYSPACE", "products"),
		ScyllaUsername: os.Getenv("SCYLLA_USERNAME"),
		ScyllaPassword: os.Getenv("SCYLLA_PASSWORD"),

		RedisHost:     getEnv("REDIS_HOST", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ElasticURL:      os.Getenv("ELASTIC_URL"),
		ElasticUser:     os.Getenv("ELASTIC_USER"),
		ElasticPassword: os.Getenv("ELASTIC_PASSWORD"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "receipts"),
		MinioUseSSL:    strings.EqualFold(os.Getenv("MINIO_USE_SSL"), "true"),

		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "orders"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@storefront.local"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		ClientURL:           strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:3000"), "/"),
		Currency:            strings.ToLower(getEnv("CURRENCY", "usd")),
	}

	var err error
	if cfg.ProductCacheTTL, err = getDuration("PRODUCT_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	if cfg.MaxCartItems, err = getInt("MAX_CART_ITEMS", 5); err != nil {
		return Config{}, err
	}
	if cfg.MaxItemQuantity, err = getInt("MAX_ITEM_QUANTITY", 10); err != nil {
		return Config{}, err
	}
	limit, err := getInt("CART_RATE_LIMIT", 20)
	if err != nil {
		return Config{}, err
	}
	cfg.CartRateLimit = int64(limit)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	if c.MaxCartItems < 1 || c.MaxItemQuantity < 1 {
		return errors.New("config: MAX_CART_ITEMS and MAX_ITEM_QUANTITY must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
