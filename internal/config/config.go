// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all service configuration, grouped by concern.
type Configuration struct {
	Service       ServiceConfig
	Agent         AgentConfig
	TextGen       TextGenConfig
	Session       SessionConfig
	Evaluation    EvaluationConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service and its listen address.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
}

// AgentConfig selects and configures the conversational agent backend.
type AgentConfig struct {
	Provider string // "mock" or "gemini"
	APIKey   string
	Model    string
}

// TextGenConfig selects and configures the evaluation text generator.
type TextGenConfig struct {
	Provider string // "mock" or "gemini"
	Model    string
}

// SessionConfig bounds an encounter session.
type SessionConfig struct {
	Duration      time.Duration
	FrameInterval time.Duration
	MicBuffer     int
}

// EvaluationConfig bounds the evaluation pipeline.
type EvaluationConfig struct {
	RubricTimeout time.Duration
}

// KafkaConfig configures event publishing.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicTurn       string
	TopicEvaluation string
}

// ObservabilityConfig configures logging and metrics.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsPort string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal: envOrDefault("SERVICE_PRINCIPAL", "svc-patient-sim"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		Agent: AgentConfig{
			Provider: envOrDefault("AGENT_PROVIDER", "mock"),
			APIKey:   os.Getenv("GEMINI_API_KEY"),
			Model:    os.Getenv("AGENT_MODEL"),
		},
		TextGen: TextGenConfig{
			Provider: envOrDefault("TEXTGEN_PROVIDER", "mock"),
			Model:    os.Getenv("TEXTGEN_MODEL"),
		},
		Session: SessionConfig{
			Duration:      envDuration("SESSION_DURATION", 12*time.Minute),
			FrameInterval: envDuration("SESSION_FRAME_INTERVAL", time.Second),
			MicBuffer:     envInt("SESSION_MIC_BUFFER", 32),
		},
		Evaluation: EvaluationConfig{
			RubricTimeout: envDuration("EVAL_RUBRIC_TIMEOUT", 90*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:         envBool("KAFKA_ENABLED", false),
			Brokers:         envList("KAFKA_BROKERS"),
			TopicTurn:       envOrDefault("KAFKA_TOPIC_TURN", "encounter.transcript.turn"),
			TopicEvaluation: envOrDefault("KAFKA_TOPIC_EVALUATION", "encounter.evaluation.completed"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
