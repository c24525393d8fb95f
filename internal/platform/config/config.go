package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration

	// SamplingPercent is the chance, in whole percent, that a record
	// passing the sampling gate finalizes without the final review step.
	SamplingPercent int
	RequireNote     bool

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// SurveyAPIURL is the upstream survey platform; imports are disabled
	// when empty.
	SurveyAPIURL string

	// AdminUsername/AdminPassword seed a bootstrap administrator on
	// startup when both are set.
	AdminUsername string
	AdminPassword string
}

// RedisConfig holds connection settings for the optional counts cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds producer settings for the status-change feed.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	addr := os.Getenv("CASEFLOW_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	sampling := 50
	if raw := os.Getenv("CASEFLOW_SAMPLING_PERCENT"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Server{}, fmt.Errorf("parse CASEFLOW_SAMPLING_PERCENT: %w", err)
		}
		if parsed < 1 || parsed > 100 {
			return Server{}, fmt.Errorf("CASEFLOW_SAMPLING_PERCENT must be between 1 and 100, got %d", parsed)
		}
		sampling = parsed
	}

	requireNote := os.Getenv("CASEFLOW_OPTIONAL_NOTES") != "true"

	var brokers []string
	if raw := os.Getenv("CASEFLOW_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("CASEFLOW_KAFKA_TOPIC")
	if topic == "" {
		topic = "caseflow.status-changes"
	}

	return Server{
		Addr:            addr,
		JWTSigningKey:   jwtSigningKey,
		JWTIssuer:       "caseflow",
		JWTAudience:     "caseflow-api",
		TokenTTL:        time.Hour,
		SamplingPercent: sampling,
		RequireNote:     requireNote,
		PostgresURL:     os.Getenv("CASEFLOW_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("CASEFLOW_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
		SurveyAPIURL:  os.Getenv("CASEFLOW_SURVEY_API_URL"),
		AdminUsername: os.Getenv("CASEFLOW_ADMIN_USERNAME"),
		AdminPassword: os.Getenv("CASEFLOW_ADMIN_PASSWORD"),
	}, nil
}
