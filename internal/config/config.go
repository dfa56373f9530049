package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	LogLevel       string
	CORSOrigins    []string
	RequestTimeout time.Duration
	DBUrl          string
	AutoMigrate    bool
	SeedDemo       bool

	WeatherAPIKey  string
	WeatherBaseURL string
	GeocodeBaseURL string
	GeocodeAgent   string
	GatewayTimeout time.Duration

	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string

	RedisAddr     string
	FeedCacheSize int
	FeedCacheTTL  time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	OTELEndpoint string
	ServiceName  string
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CORSOrigins:    splitList(os.Getenv("CORS_ORIGINS")),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),
		DBUrl:          os.Getenv("DATABASE_URL"),
		AutoMigrate:    getBool("AUTO_MIGRATE", true),
		SeedDemo:       getBool("SEED_DEMO", false),

		WeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		WeatherBaseURL: getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		GeocodeBaseURL: getEnv("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeAgent:   getEnv("GEOCODE_USER_AGENT", "sunset-spot/1.0"),
		GatewayTimeout: getDuration("GATEWAY_TIMEOUT", 3*time.Second),

		S3Bucket:    os.Getenv("AWS_BUCKET_NAME"),
		S3Region:    getEnv("AWS_REGION", "us-east-1"),
		S3AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		S3SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3Endpoint:  os.Getenv("AWS_S3_ENDPOINT"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		FeedCacheSize: getInt("FEED_CACHE_SIZE", 256),
		FeedCacheTTL:  getDuration("FEED_CACHE_TTL", 30*time.Second),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "spot.events"),

		OTELEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "sunset-spot"),
	}
}

func (c *Config) WeatherEnabled() bool { return c.WeatherAPIKey != "" }

func (c *Config) StorageEnabled() bool { return c.S3Bucket != "" }

func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
