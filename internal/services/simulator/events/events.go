// Package events publishes simulation lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// TypeRunCompleted is the event type header of RunCompleted messages.
const TypeRunCompleted = "slotsim.run.completed.v1"

// RunCompleted announces a finished (or cancelled) run.
type RunCompleted struct {
	RunID       string    `json:"run_id"`
	Setting     int       `json:"setting"`
	Seed        uint32    `json:"seed"`
	Status      string    `json:"status"`
	Simulations int       `json:"simulations"`
	Completed   int       `json:"completed"`
	MajorTotal  int       `json:"major_total"`
	MinorTotal  int       `json:"minor_total"`
	MeanProfit  float64   `json:"mean_profit_yen"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Publisher delivers run events.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, event RunCompleted) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishRunCompleted(context.Context, RunCompleted) error { return nil }
func (NopPublisher) Close() error                                          { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a KafkaPublisher.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	MaxAttempts int
}

// KafkaPublisher writes events to a Kafka topic keyed by run id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher builds a publisher for cfg.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	var brokers []string
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		MaxAttempts:            attempts,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}
	return newKafkaPublisher(writer, topic), nil
}

func newKafkaPublisher(writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

// PublishRunCompleted encodes event as JSON and writes it.
func (p *KafkaPublisher) PublishRunCompleted(ctx context.Context, event RunCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal run completed: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.RunID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TypeRunCompleted)},
			{Key: "content_type", Value: []byte("application/json")},
		},
		Time: event.FinishedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run %s to %s: %w", event.RunID, p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
