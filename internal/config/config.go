// Package config loads per-service configuration from the environment, in
// the teacher's style: a typed Config struct per concern, populated via
// small getEnv/getIntEnv/... helpers with documented defaults, loaded once
// at process start via godotenv for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig controls the HTTP surface of a single service binary.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
}

// KafkaConfig controls the durable partitioned event log.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	RetryAttempts int
	DeadLetterFmt string // fmt string, "%s.dlq" applied to the source topic

	// OperationTimeout is the fixed per-I/O deadline spec.md §5 assigns the
	// event log: bounds one consumer handler invocation and one producer
	// publish, each retried with backoff+jitter rather than extended.
	OperationTimeout time.Duration
}

// RedisConfig controls the external per-entity key/value store.
type RedisConfig struct {
	URL         string
	DialTimeout time.Duration

	// OperationTimeout is the fixed per-call deadline spec.md §5 assigns
	// the k/v store (default 50ms).
	OperationTimeout time.Duration
}

// PostgresConfig controls the index-store connection pool.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// OperationTimeout is the fixed per-query deadline spec.md §5 assigns
	// the index store (default 500ms).
	OperationTimeout time.Duration
}

// ObjectStoreConfig controls the content-addressable object store.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool

	// OperationTimeout is the fixed per-call deadline spec.md §5 assigns
	// the object store (default 2s).
	OperationTimeout time.Duration
}

// PolicyConfig carries the decisioning thresholds and ensemble parameters
// that spec.md §6 requires to be configurable.
type PolicyConfig struct {
	BlockThreshold   float64
	HoldThreshold    float64
	TrustedChannels  []string
	EnsembleWeights  [3]float64 // (w_g, w_n, w_r)
	PlattK           float64
	PlattX0          float64
	PSIAlertThresh   float64
	BrierAlertThresh float64
}

// JWTConfig holds the secret used to validate bearer tokens issued by the
// external gateway. This service never issues tokens itself.
type JWTConfig struct {
	Secret string
}

// Config aggregates every sub-config a service binary may need; each
// service wires only the pieces it uses.
type Config struct {
	Server      ServerConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	Postgres    PostgresConfig
	ObjectStore ObjectStoreConfig
	Policy      PolicyConfig
	JWT         JWTConfig
}

// Load populates Config from the environment, applying the same defaults
// the teacher's configs.Load used for its own sub-configs.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Kafka: KafkaConfig{
			Brokers:          getSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			ConsumerGroup:    getEnv("KAFKA_CONSUMER_GROUP", "fraud-pipeline"),
			RetryAttempts:    getIntEnv("KAFKA_RETRY_ATTEMPTS", 3),
			DeadLetterFmt:    getEnv("KAFKA_DLQ_SUFFIX", "%s.dlq"),
			OperationTimeout: getDurationEnv("KAFKA_OPERATION_TIMEOUT", 2*time.Second),
		},
		Redis: RedisConfig{
			URL:              getEnv("REDIS_URL", "redis://localhost:6379"),
			DialTimeout:      getDurationEnv("REDIS_DIAL_TIMEOUT", 50*time.Millisecond),
			OperationTimeout: getDurationEnv("REDIS_OPERATION_TIMEOUT", 50*time.Millisecond),
		},
		Postgres: PostgresConfig{
			URL:              getEnv("DATABASE_URL", "postgres://localhost:5432/fraud_pipeline"),
			MaxOpenConns:     getIntEnv("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getIntEnv("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getDurationEnv("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			OperationTimeout: getDurationEnv("DATABASE_OPERATION_TIMEOUT", 500*time.Millisecond),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         getEnv("OBJECT_STORE_ENDPOINT", "localhost:9000"),
			AccessKey:        getEnv("OBJECT_STORE_ACCESS_KEY", "minioadmin"),
			SecretKey:        getEnv("OBJECT_STORE_SECRET_KEY", "minioadmin"),
			Bucket:           getEnv("OBJECT_STORE_BUCKET", "fraud-evidence"),
			Secure:           getBoolEnv("OBJECT_STORE_SECURE", false),
			OperationTimeout: getDurationEnv("OBJECT_STORE_OPERATION_TIMEOUT", 2*time.Second),
		},
		Policy: PolicyConfig{
			BlockThreshold:  getFloatEnv("BLOCK_THRESHOLD", 0.90),
			HoldThreshold:   getFloatEnv("HOLD_THRESHOLD", 0.70),
			TrustedChannels: getSliceEnv("TRUSTED_CHANNELS", []string{"mobile"}),
			EnsembleWeights: [3]float64{
				getFloatEnv("ENSEMBLE_WEIGHT_XGB", 0.5),
				getFloatEnv("ENSEMBLE_WEIGHT_NN", 0.3),
				getFloatEnv("ENSEMBLE_WEIGHT_RULES", 0.2),
			},
			PlattK:           getFloatEnv("PLATT_K", 5.0),
			PlattX0:          getFloatEnv("PLATT_X0", 0.5),
			PSIAlertThresh:   getFloatEnv("PSI_ALERT_THRESHOLD", 0.2),
			BrierAlertThresh: getFloatEnv("BRIER_ALERT_THRESHOLD", 0.25),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getSliceEnv(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
