package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	vinectx "github.com/Ramsey-B/vine/pkg/context"
	"github.com/Ramsey-B/vine/pkg/models"
)

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
	Line *models.ImportLine

	commit func(ctx context.Context) error
}

func newIncomingMessage(msg kafka.Message, reader *kafka.Reader) *IncomingMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &IncomingMessage{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Headers:   headers,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Topic:     msg.Topic,
		commit: func(ctx context.Context) error {
			return reader.CommitMessages(ctx, msg)
		},
	}
}

// Commit marks the message as processed
func (m *IncomingMessage) Commit(ctx context.Context) error {
	if m.commit == nil {
		return nil
	}
	return m.commit(ctx)
}

// ParseImportLine decodes the message value as an import line. Unknown fields are rejected so
// producer schema drift shows up instead of silently dropping data.
func (m *IncomingMessage) ParseImportLine() error {
	dec := json.NewDecoder(bytes.NewReader(m.Value))
	dec.DisallowUnknownFields()
	var line models.ImportLine
	if err := dec.Decode(&line); err != nil {
		return err
	}
	if line.ImportID == "" {
		line.ImportID = m.Headers["import_id"]
	}
	m.Line = &line
	return nil
}

// ImportID returns the import batch of the message, from the line or the header.
func (m *IncomingMessage) ImportID() string {
	if m.Line != nil && m.Line.ImportID != "" {
		return m.Line.ImportID
	}
	return m.Headers["import_id"]
}

// RequestID returns the producer's request id header, or the message coordinates without one.
func (m *IncomingMessage) RequestID() string {
	if id := m.Headers[string(vinectx.RequestIDKey)]; id != "" {
		return id
	}
	return fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
}
