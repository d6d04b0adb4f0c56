// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_patient_sim"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsSuccess prometheus.Counter
	SessionsFailed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// Turn metrics
	TurnsCompleted  prometheus.Counter
	TranscriptLines prometheus.Counter

	// Audio metrics
	AudioFramesSent     prometheus.Counter
	AudioBytesSent      prometheus.Counter
	AudioChunksReceived prometheus.Counter
	AudioSendErrors     prometheus.Counter
	VideoFramesSent     prometheus.Counter

	// Agent metrics
	AgentConnectErrors prometheus.Counter
	AgentStreamErrors  prometheus.Counter

	// Evaluation metrics
	EvaluationsTotal   prometheus.Counter
	RubricRuns         *prometheus.CounterVec
	RubricFailures     *prometheus.CounterVec
	RubricLatency      *prometheus.HistogramVec
	EvaluationDuration prometheus.Histogram

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of encounter sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active encounter sessions",
		}),
		SessionsSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_success_total",
			Help:      "Total number of sessions that ended normally",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that failed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of encounter sessions in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 480, 600, 720, 900},
		}),

		// Turn metrics
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_completed_total",
			Help:      "Total number of conversation turns flushed to the transcript",
		}),
		TranscriptLines: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_lines_total",
			Help:      "Total number of transcript entries recorded",
		}),

		// Audio metrics
		AudioFramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_sent_total",
			Help:      "Total microphone frames forwarded to the agent",
		}),
		AudioBytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Total encoded audio bytes forwarded to the agent",
		}),
		AudioChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total patient audio chunks received from the agent",
		}),
		AudioSendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_send_errors_total",
			Help:      "Total errors sending audio frames to the agent",
		}),
		VideoFramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_frames_sent_total",
			Help:      "Total camera frames forwarded to the agent",
		}),

		// Agent metrics
		AgentConnectErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_connect_errors_total",
			Help:      "Total failures to establish an agent connection",
		}),
		AgentStreamErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_stream_errors_total",
			Help:      "Total mid-stream agent errors",
		}),

		// Evaluation metrics
		EvaluationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of encounter evaluations run",
		}),
		RubricRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rubric_runs_total",
			Help:      "Total rubric evaluations attempted",
		}, []string{"rubric"}),
		RubricFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rubric_failures_total",
			Help:      "Total rubric evaluations that failed",
		}, []string{"rubric"}),
		RubricLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rubric_latency_seconds",
			Help:      "Per-rubric evaluation latency in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90},
		}, []string{"rubric"}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "End-to-end evaluation duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90, 120},
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(success bool, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if success {
		m.SessionsSuccess.Inc()
	} else {
		m.SessionsFailed.Inc()
	}
}

// RecordTurn records a completed conversation turn and its entry count.
func (m *Metrics) RecordTurn(entries int) {
	m.TurnsCompleted.Inc()
	m.TranscriptLines.Add(float64(entries))
}

// RecordAudioSent records one microphone frame forwarded upstream.
func (m *Metrics) RecordAudioSent(bytes int) {
	m.AudioFramesSent.Inc()
	m.AudioBytesSent.Add(float64(bytes))
}

// RecordRubric records one rubric evaluation attempt.
func (m *Metrics) RecordRubric(rubric string, err error, latencySeconds float64) {
	m.RubricRuns.WithLabelValues(rubric).Inc()
	m.RubricLatency.WithLabelValues(rubric).Observe(latencySeconds)
	if err != nil {
		m.RubricFailures.WithLabelValues(rubric).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
