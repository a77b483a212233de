package config

import (
	"time"

	"github.com/Gobusters/ectoenv"
)

type Config struct {
	AppName            string `env:"APP_NAME" env-default:"vine"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" env-default:"false"`
	MetricsAddr        string `env:"METRICS_ADDR" env-default:":9102"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Tracing
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:""`
	OTLPProtocol string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"vine"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseReconnectRetryCount   int           `env:"DB_RECONNECT_RETRY_COUNT" env-default:"3"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (mapping read cache and review locks)
	RedisEnabled  bool          `env:"REDIS_ENABLED" env-default:"false"`
	RedisAddr     string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	MappingTTL    time.Duration `env:"MAPPING_CACHE_TTL" env-default:"10m"`
	ReviewLockTTL time.Duration `env:"REVIEW_LOCK_TTL" env-default:"30s"`

	// Kafka consumer (import lines)
	KafkaBrokers         []string      `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string        `env:"KAFKA_INPUT_TOPIC" env-default:"import-lines"`
	KafkaConsumerGroup   string        `env:"KAFKA_CONSUMER_GROUP" env-default:"vine-matcher"`
	KafkaConsumerEnabled bool          `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`
	KafkaMaxWait         time.Duration `env:"KAFKA_MAX_WAIT" env-default:"1s"`

	// Kafka producer (domain events)
	KafkaOutputTopic  string `env:"KAFKA_OUTPUT_TOPIC" env-default:"match-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Catalog
	CatalogSeedPath        string        `env:"CATALOG_SEED_PATH" env-default:""`
	CatalogRefreshInterval time.Duration `env:"CATALOG_REFRESH_INTERVAL" env-default:"5m"`
	CatalogWaitBudget      time.Duration `env:"CATALOG_WAIT_BUDGET" env-default:"2s"`

	// Matching
	MatchWorkerCount     int           `env:"MATCH_WORKER_COUNT" env-default:"8"`
	MatchQueueSize       int           `env:"MATCH_QUEUE_SIZE" env-default:"256"`
	MatchMaxAttempts     uint          `env:"MATCH_MAX_ATTEMPTS" env-default:"5"`
	MatchRetryBackoff    time.Duration `env:"MATCH_RETRY_BACKOFF" env-default:"200ms"`
	MatchRetryMaxBackoff time.Duration `env:"MATCH_RETRY_MAX_BACKOFF" env-default:"5s"`
	HighThreshold        float64       `env:"MATCH_HIGH_THRESHOLD" env-default:"0.90"`
	MediumThreshold      float64       `env:"MATCH_MEDIUM_THRESHOLD" env-default:"0.60"`
	FuzzyStrongThreshold float64       `env:"MATCH_FUZZY_STRONG_THRESHOLD" env-default:"0.85"`
	CandidateFloor       float64       `env:"MATCH_CANDIDATE_FLOOR" env-default:"0.35"`
	SearchTopK           int           `env:"MATCH_SEARCH_TOP_K" env-default:"10"`
	CrossValidate        bool          `env:"MATCH_CROSS_VALIDATE" env-default:"false"`
	CacheAutoMatches     bool          `env:"MATCH_CACHE_AUTO_MATCHES" env-default:"true"`
	LenientGTIN          bool          `env:"MATCH_LENIENT_GTIN" env-default:"false"`
	WeightTablePath      string        `env:"MATCH_WEIGHT_TABLE_PATH" env-default:""`
	ReviewQueueEnabled   bool          `env:"REVIEW_QUEUE_ENABLED" env-default:"true"`
}

// Load binds the process environment onto a Config, applying env-default values.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
