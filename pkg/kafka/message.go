package kafka

import (
	"encoding/json"
	"time"

	"github.com/ballotline/registry/pkg/models"
)

// BatchMessage is a normalized filing batch published by a state
// transformer. One message carries one state's records for one run.
type BatchMessage struct {
	StateCode    string             `json:"state_code"`
	ElectionYear int                `json:"election_year"`
	Source       string             `json:"source"`
	Records      []models.RawRecord `json:"records"`
	PublishedAt  time.Time          `json:"published_at"`
}

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	Batch *BatchMessage
}

// ParseBatch parses the message value as a filing batch
func (m *IncomingMessage) ParseBatch() error {
	var batch BatchMessage
	if err := json.Unmarshal(m.Value, &batch); err != nil {
		return err
	}
	m.Batch = &batch
	return nil
}

// GetStateCode returns the state scope of the message
func (m *IncomingMessage) GetStateCode() string {
	if m.Batch != nil && m.Batch.StateCode != "" {
		return m.Batch.StateCode
	}
	// Fallback to header
	return m.Headers["state_code"]
}

// GetSource returns the feed source of the message
func (m *IncomingMessage) GetSource() string {
	if m.Batch != nil && m.Batch.Source != "" {
		return m.Batch.Source
	}
	return m.Headers["source"]
}

// IsValidBatch reports whether the parsed batch carries enough to ingest.
func (m *IncomingMessage) IsValidBatch() bool {
	return m.Batch != nil && m.Batch.StateCode != "" && m.Batch.ElectionYear != 0
}
