package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP     HTTPConfig
	Order    OrderConfig
	DB       DBConfig
	Telegram TelegramConfig
	Kafka    KafkaConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Addr      string
	RateRPS   float64
	RateBurst int
	StaticDir string // optional directory served at / for display assets
}

type OrderConfig struct {
	ClearDelay       time.Duration
	PublishTimeout   time.Duration
	SubscriberBuffer int
}

const (
	HistoryMemory   = "memory"
	HistoryPostgres = "postgres"
)

type DBConfig struct {
	HistoryBackend string
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	AutoMigrate    bool
}

// ConnString builds the pgx connection URL.
func (c DBConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

type TelegramConfig struct {
	MessageToken string // token of the bot that posts order notifications
	AdminChatID  int64
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type LogConfig struct {
	Level  string
	Format string // json or console
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	rps, err := getFloat("RATE_RPS", 20)
	if err != nil {
		return nil, err
	}
	burst, err := getInt("RATE_BURST", 40)
	if err != nil {
		return nil, err
	}
	clearDelay, err := getDuration("CLEAR_DELAY", 3*time.Second)
	if err != nil {
		return nil, err
	}
	publishTimeout, err := getDuration("PUBLISH_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}
	buffer, err := getInt("SUBSCRIBER_BUFFER", 64)
	if err != nil {
		return nil, err
	}
	port, err := getInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	adminChat, err := getInt64("ADMIN_CHAT_ID", 0)
	if err != nil {
		return nil, err
	}

	backend := strings.ToLower(getEnv("HISTORY_BACKEND", HistoryMemory))
	if backend != HistoryMemory && backend != HistoryPostgres {
		return nil, fmt.Errorf("HISTORY_BACKEND: unknown backend %q", backend)
	}
	format := strings.ToLower(getEnv("LOG_FORMAT", "json"))
	if format != "json" && format != "console" {
		return nil, fmt.Errorf("LOG_FORMAT: unknown format %q", format)
	}

	return &Config{
		HTTP: HTTPConfig{
			Addr:      getEnv("HTTP_ADDR", ":3000"),
			RateRPS:   rps,
			RateBurst: burst,
			StaticDir: getEnv("STATIC_DIR", ""),
		},
		Order: OrderConfig{
			ClearDelay:       clearDelay,
			PublishTimeout:   publishTimeout,
			SubscriberBuffer: buffer,
		},
		DB: DBConfig{
			HistoryBackend: backend,
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           port,
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", ""),
			Database:       getEnv("DB_NAME", "order_display"),
			AutoMigrate:    getBool("AUTO_MIGRATE"),
		},
		Telegram: TelegramConfig{
			MessageToken: getEnv("MESSAGE_TOKEN", ""),
			AdminChatID:  adminChat,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "order-display.events"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: format,
		},
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// getBool accepts "1" or "true" (any case), like AUTO_MIGRATE always has.
func getBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
