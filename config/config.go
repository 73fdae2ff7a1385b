package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"

	"github.com/ballotline/registry/pkg/matching"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"registry-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (Candidate Registry)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"registry"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseReconnectRetryCount   int           `env:"DB_RECONNECT_RETRY_COUNT" env-default:"3"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Kafka Consumer (normalized filing batches from state transformers)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"filing-batches"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"registry-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer (audit events)
	KafkaOutputTopic    string `env:"KAFKA_OUTPUT_TOPIC" env-default:"candidate-events"`
	KafkaRunEventsTopic string `env:"KAFKA_RUN_EVENTS_TOPIC" env-default:"ingest-run-events"`
	KafkaBatchSize      int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout   int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks   int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression    string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Consolidation
	StatewideThreshold    int `env:"STATEWIDE_THRESHOLD" env-default:"50"`
	ExpectedJurisdictions int `env:"EXPECTED_JURISDICTIONS" env-default:"100"`

	// Matching
	MatchAutoUpdateThreshold float64 `env:"MATCH_AUTO_UPDATE_THRESHOLD" env-default:"0.95"`
	MatchReviewThreshold     float64 `env:"MATCH_REVIEW_THRESHOLD" env-default:"0.85"`
	// MatchStateThresholds overrides the cut lines per state, formatted
	// "NC=0.95:0.85,DE=0.97:0.88" (auto:review).
	MatchStateThresholds string `env:"MATCH_STATE_THRESHOLDS" env-default:""`
	MatchWorkerCount     int    `env:"MATCH_WORKER_COUNT" env-default:"4"`

	// Tracing
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:""`
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure bool   `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads .env (when present) and binds environment variables onto a
// Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to bind environment variables: %w", err)
	}
	return &cfg, nil
}

// Thresholds returns the default classification cut lines.
func (c *Config) Thresholds() matching.Thresholds {
	return matching.Thresholds{
		AutoUpdate: c.MatchAutoUpdateThreshold,
		Review:     c.MatchReviewThreshold,
	}
}

// StateThresholds parses the per-state threshold overrides.
func (c *Config) StateThresholds() (map[string]matching.Thresholds, error) {
	return ParseStateThresholds(c.MatchStateThresholds)
}

// ParseStateThresholds parses "NC=0.95:0.85,DE=0.97:0.88" into per-state
// cut lines. An empty input yields no overrides.
func ParseStateThresholds(raw string) (map[string]matching.Thresholds, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	overrides := make(map[string]matching.Thresholds)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		state, values, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("invalid state threshold entry %q: expected STATE=auto:review", entry)
		}
		state = strings.ToUpper(strings.TrimSpace(state))
		if state == "" {
			return nil, fmt.Errorf("invalid state threshold entry %q: empty state code", entry)
		}

		autoPart, reviewPart, found := strings.Cut(values, ":")
		if !found {
			return nil, fmt.Errorf("invalid state threshold entry %q: expected auto:review", entry)
		}

		auto, err := strconv.ParseFloat(strings.TrimSpace(autoPart), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid auto threshold in %q: %w", entry, err)
		}
		review, err := strconv.ParseFloat(strings.TrimSpace(reviewPart), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid review threshold in %q: %w", entry, err)
		}

		if auto < review {
			return nil, fmt.Errorf("invalid thresholds in %q: auto %v below review %v", entry, auto, review)
		}
		if auto > 1 || review <= 0 {
			return nil, fmt.Errorf("invalid thresholds in %q: values must be in (0, 1]", entry)
		}

		overrides[state] = matching.Thresholds{AutoUpdate: auto, Review: review}
	}

	return overrides, nil
}
