package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"auction-core/utils"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Bidding   BiddingConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Observ    ObservabilityConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type LogConfig struct {
	Level string
}

type BiddingConfig struct {
	LockTimeout         time.Duration
	MinIncrement        decimal.Decimal
	AllowCancelWithBids bool
}

type SchedulerConfig struct {
	Interval time.Duration
}

type NotifyConfig struct {
	Buffer int
}

// DatabaseConfig selects the store. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL string
}

// RedisConfig enables the pub/sub relay when Addr is set
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// KafkaConfig enables event publishing and the payment worker when Brokers is non-empty
type KafkaConfig struct {
	Brokers            []string
	TopicAuctionEvents string
	TopicPayments      string
	ConsumerGroup      string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

// Load reads .env if present, then the environment
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Bidding: BiddingConfig{
			LockTimeout:         getDuration("BID_LOCK_TIMEOUT", 2*time.Second),
			MinIncrement:        getDecimal("MIN_BID_INCREMENT", decimal.Zero),
			AllowCancelWithBids: getBool("ALLOW_CANCEL_WITH_BIDS", false),
		},
		Scheduler: SchedulerConfig{
			Interval: getDuration("SCHEDULER_INTERVAL", time.Second),
		},
		Notify: NotifyConfig{
			Buffer: getInt("NOTIFY_BUFFER", 256),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getInt("REDIS_DB", 0),
			ChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "auction-core:"),
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(getEnv("KAFKA_BROKERS", "")),
			TopicAuctionEvents: getEnv("KAFKA_TOPIC_AUCTION_EVENTS", "auction-events"),
			TopicPayments:      getEnv("KAFKA_TOPIC_PAYMENTS", "payment-events"),
			ConsumerGroup:      getEnv("KAFKA_CONSUMER_GROUP", "auction-core-group"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
	}

	utils.Info("config loaded", map[string]any{
		"env":      cfg.Server.Env,
		"port":     cfg.Server.Port,
		"postgres": cfg.Database.URL != "",
		"redis":    cfg.Redis.Addr != "",
		"kafka":    len(cfg.Kafka.Brokers) > 0,
	})
	return cfg
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Server.Port, ":")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		utils.Warn("invalid integer in env, using default", map[string]any{"key": key, "value": raw})
		return defaultVal
	}
	return v
}

func getBool(key string, defaultVal bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		utils.Warn("invalid boolean in env, using default", map[string]any{"key": key, "value": raw})
		return defaultVal
	}
	return v
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		utils.Warn("invalid duration in env, using default", map[string]any{"key": key, "value": raw})
		return defaultVal
	}
	return v
}

func getDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		utils.Warn("invalid amount in env, using default", map[string]any{"key": key, "value": raw})
		return defaultVal
	}
	return v
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
