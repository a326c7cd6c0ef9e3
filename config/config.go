package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Elastic  ElasticsearchConfig
	Security SecurityConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	AppEnv    string
	GRPCPort  string
	AdminPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers      []string
	CommandTopic string
	EventTopic   string
	GroupID      string
	Enabled      bool
}

type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	LogIndex  string
}

type SecurityConfig struct {
	// Base64 AES-256 key used to seal store and ERP credentials.
	EncryptionKey string
}

type SyncConfig struct {
	Workers          int
	JobTimeout       time.Duration
	LockTTL          time.Duration
	RetryAttempts    int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	ScheduleInterval time.Duration
	ScheduleTypes    []string
	PruneAfter       time.Duration
	StaleAfter       time.Duration
	ShopifyTimeout   time.Duration
	ErpTimeout       time.Duration
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:    getEnv("APP_ENV", "dev"),
			GRPCPort:  getEnv("GRPC_PORT", ":8086"),
			AdminPort: getEnv("ADMIN_PORT", ":9096"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_erp_sync"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			CommandTopic: getEnv("KAFKA_TOPIC_SYNC_COMMANDS", "sync.commands"),
			EventTopic:   getEnv("KAFKA_TOPIC_SYNC_EVENTS", "sync.events"),
			GroupID:      getEnv("KAFKA_GROUP_SYNC", "erp-sync"),
			Enabled:      getEnvBool("KAFKA_ENABLED", true),
		},
		Elastic: ElasticsearchConfig{
			Addresses: getEnvSlice("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			Username:  getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:  getEnv("ELASTICSEARCH_PASSWORD", ""),
			LogIndex:  getEnv("ELASTICSEARCH_SYNC_LOG_INDEX", "sync-logs"),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Sync: SyncConfig{
			Workers:          getEnvInt("SYNC_WORKERS", 4),
			JobTimeout:       getEnvDuration("SYNC_JOB_TIMEOUT", 30*time.Minute),
			LockTTL:          getEnvDuration("SYNC_LOCK_TTL", time.Minute),
			RetryAttempts:    getEnvInt("SYNC_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:   getEnvDuration("SYNC_RETRY_BASE_DELAY", 500*time.Millisecond),
			RetryMaxDelay:    getEnvDuration("SYNC_RETRY_MAX_DELAY", 10*time.Second),
			ScheduleInterval: getEnvDuration("SYNC_SCHEDULE_INTERVAL", 0),
			ScheduleTypes:    getEnvSlice("SYNC_SCHEDULE_TYPES", []string{"inventory"}),
			PruneAfter:       getEnvDuration("SYNC_PRUNE_AFTER", 30*24*time.Hour),
			StaleAfter:       getEnvDuration("SYNC_STALE_PENDING_AFTER", 5*time.Minute),
			ShopifyTimeout:   getEnvDuration("SHOPIFY_HTTP_TIMEOUT", 30*time.Second),
			ErpTimeout:       getEnvDuration("ERP_HTTP_TIMEOUT", 60*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
