package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/ballotline/registry/pkg/tracing"
	"github.com/segmentio/kafka-go"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// CandidateEvent is the audit event for candidate lifecycle changes
type CandidateEvent struct {
	EventType     string          `json:"event_type"` // candidate.created, candidate.updated, candidate.review_queued
	StateCode     string          `json:"state_code"`
	CandidateID   string          `json:"candidate_id,omitempty"`
	IdentityKey   string          `json:"identity_key"`
	RunID         string          `json:"run_id"`
	ChangedFields []string        `json:"changed_fields,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	// Fingerprint is a content hash of Data with volatile fields excluded.
	// Delivery is at least once; consumers dedupe on it.
	Fingerprint string    `json:"fingerprint,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// RunEvent is the audit event for ingest run lifecycle changes
type RunEvent struct {
	EventType string          `json:"event_type"` // run.completed, run.failed
	StateCode string          `json:"state_code"`
	RunID     string          `json:"run_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// PublishCandidateEvent publishes a candidate event to Kafka
func (p *Producer) PublishCandidateEvent(ctx context.Context, event *CandidateEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishCandidateEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "state_code", Value: []byte(event.StateCode)},
	}
	if event.Fingerprint != "" {
		headers = append(headers, kafka.Header{Key: "fingerprint", Value: []byte(event.Fingerprint)})
	}

	msg := kafka.Message{
		Topic: p.topic,
		// Key by identity key so every event for one candidacy lands on the
		// same partition, in order.
		Key:     []byte(event.StateCode + ":" + event.IdentityKey),
		Value:   data,
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish candidate event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":   event.EventType,
		"identity_key": event.IdentityKey,
		"state_code":   event.StateCode,
	}).Debug("Published candidate event")

	return nil
}

// PublishRunEvent publishes an ingest run event to Kafka
func (p *Producer) PublishRunEvent(ctx context.Context, event *RunEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishRunEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.StateCode + ":" + event.RunID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "state_code", Value: []byte(event.StateCode)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish run event")
		return err
	}

	return nil
}

// PublishCandidateEvents publishes multiple candidate events in a batch
func (p *Producer) PublishCandidateEvents(ctx context.Context, events []*CandidateEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishCandidateEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		messages[i] = kafka.Message{
			Topic: p.topic,
			Key:   []byte(event.StateCode + ":" + event.IdentityKey),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
				{Key: "state_code", Value: []byte(event.StateCode)},
				{Key: "schema_version", Value: []byte("1.0")},
			},
		}
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish candidate events batch")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
	}).Debug("Published candidate events batch")

	return nil
}
