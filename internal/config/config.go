package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TargetsPath string
	OutputRoot  string

	SpiderCommand string
	SpiderModes   []string

	UserAgent   string
	HTTPTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration

	PageWorkers   int
	DetailWorkers int

	RunInterval time.Duration

	NATSURL         string
	NATSConnTimeout time.Duration
	PublishEvents   bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	ClickHouseDSN          string
	ClickHouseMaxOpenConns int
	ClickHouseMaxIdleConns int
	ClickHouseConnMaxLife  time.Duration
	ClickHouseUsername     string
	ClickHousePassword     string
	ClickHouseDatabase     string
}

func LoadConfig() (*Config, error) {
	config := &Config{
		TargetsPath: getEnvString("TARGETS_PATH", "uk_links_only.csv"),
		OutputRoot:  getEnvString("OUTPUT_ROOT", "."),

		SpiderCommand: getEnvString("SPIDER_COMMAND", "spider"),
		SpiderModes:   getEnvStringSlice("SPIDER_MODES", []string{"search", "list"}),

		UserAgent: getEnvString("USER_AGENT",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:  getEnvInt("MAX_RETRIES", 3),
		RetryDelay:  getEnvDuration("RETRY_DELAY", 5*time.Second),

		PageWorkers:   getEnvInt("PAGE_WORKERS", 5),
		DetailWorkers: getEnvInt("DETAIL_WORKERS", 25),

		RunInterval: getEnvDuration("RUN_INTERVAL", 24*time.Hour),

		NATSURL:         getEnvString("NATS_URL", "nats://localhost:4222"),
		NATSConnTimeout: getEnvDuration("NATS_CONN_TIMEOUT", 10*time.Second),
		PublishEvents:   getEnvBool("PUBLISH_EVENTS", false),

		RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 24*time.Hour),

		ClickHouseDSN:          getEnvString("CLICKHOUSE_DSN", "localhost:9000"),
		ClickHouseMaxOpenConns: getEnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 10),
		ClickHouseMaxIdleConns: getEnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 5),
		ClickHouseConnMaxLife:  getEnvDuration("CLICKHOUSE_CONN_MAX_LIFE", time.Hour),
		ClickHouseUsername:     getEnvString("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword:     getEnvString("CLICKHOUSE_PASSWORD", ""),
		ClickHouseDatabase:     getEnvString("CLICKHOUSE_DATABASE", "jobspider"),
	}

	return config, nil
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
