package events

import (
	"context"
	"testing"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerTurn != nil {
				t.Error("expected nil turn writer when disabled")
			}
			if p.writerEvaluation != nil {
				t.Error("expected nil evaluation writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:         false,
		Brokers:         []string{"localhost:9092"},
		TopicTurn:       "test.turn",
		TopicEvaluation: "test.evaluation",
		Principal:       "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicTurn != "test.turn" {
		t.Errorf("expected topic turn 'test.turn', got %s", p.topicTurn)
	}
	if p.topicEvaluation != "test.evaluation" {
		t.Errorf("expected topic evaluation 'test.evaluation', got %s", p.topicEvaluation)
	}
}

func TestPublisher_PublishTurn_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	event := map[string]string{"text": "test turn"}
	err := p.PublishTurn(context.Background(), "test-key", event)

	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishEvaluation_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	event := map[string]string{"text": "test evaluation"}
	err := p.PublishEvaluation(context.Background(), "test-key", event)

	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishTurn_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Create an unmarshalable value (channel)
	event := make(chan int)
	err := p.PublishTurn(context.Background(), "test-key", event)

	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_PublishEvaluation_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Create an unmarshalable value (channel)
	event := make(chan int)
	err := p.PublishEvaluation(context.Background(), "test-key", event)

	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.Close()
	if err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilPublisher(t *testing.T) {
	p := &Publisher{
		writerTurn:       nil,
		writerEvaluation: nil,
	}

	err := p.Close()
	if err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}

type testEvent struct {
	EventType   string `json:"eventType"`
	EncounterID string `json:"encounterId"`
	Text        string `json:"text"`
}

func TestPublisher_PublishTurn_ValidEvent(t *testing.T) {
	p := New(&Config{
		Enabled:   false,
		TopicTurn: "test.turn",
		Principal: "test-svc",
	})

	event := testEvent{
		EventType:   "encounter.transcript.turn",
		EncounterID: "enc-123",
		Text:        "hello world",
	}

	err := p.PublishTurn(context.Background(), "enc-123", event)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestPublisher_PublishEvaluation_ValidEvent(t *testing.T) {
	p := New(&Config{
		Enabled:         false,
		TopicEvaluation: "test.evaluation",
		Principal:       "test-svc",
	})

	event := testEvent{
		EventType:   "encounter.evaluation.completed",
		EncounterID: "enc-123",
		Text:        "settled",
	}

	err := p.PublishEvaluation(context.Background(), "enc-123", event)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
