package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/draftea/event-saga/shared/models"
)

var (
	ErrInvalidTopic   = errors.New("invalid topic")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Topic represents an event topic
type Topic string

func NewTopic(topic string) (Topic, error) {
	if topic == "" {
		return "", ErrInvalidTopic
	}
	return Topic(topic), nil
}

func (t Topic) String() string {
	return string(t)
}

// Metadata represents event metadata
type Metadata map[string]string

func (m Metadata) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m Metadata) Set(key string, value string) {
	m[key] = value
}

func (m Metadata) Clone() Metadata {
	clone := Metadata{}
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// Event represents a saga lifecycle event
type Event struct {
	ID            models.ID `json:"id"`
	AggregateID   models.ID `json:"aggregate_id"`
	Topic         Topic     `json:"topic"`
	Version       string    `json:"version"`
	Data          any       `json:"data"`
	Metadata      Metadata  `json:"metadata"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID models.ID `json:"correlation_id,omitempty"`
}

// Publisher publishes events
type Publisher interface {
	Publish(ctx context.Context, events ...*Event) error
}

// NewEvent creates a new event on the given topic
func NewEvent(aggregateID models.ID, topic Topic, data any) *Event {
	return &Event{
		ID:          models.GenerateUUID(),
		AggregateID: aggregateID,
		Topic:       topic,
		Version:     "1.0",
		Data:        data,
		Metadata:    make(Metadata),
		Timestamp:   time.Now().UTC(),
	}
}

// WithCorrelationID sets correlation ID
func (e *Event) WithCorrelationID(correlationID models.ID) *Event {
	e.CorrelationID = correlationID
	return e
}

// WithMetadata adds metadata
func (e *Event) WithMetadata(key string, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(Metadata)
	}
	e.Metadata.Set(key, value)
	return e
}

// MarshalPayload marshals the event payload
func (e *Event) MarshalPayload() (json.RawMessage, error) {
	if e.Data == nil {
		return nil, ErrInvalidPayload
	}

	if b, ok := e.Data.([]byte); ok {
		return b, nil
	}

	if b, ok := e.Data.(json.RawMessage); ok {
		return b, nil
	}

	return json.Marshal(e.Data)
}

// Saga lifecycle topics
const (
	SagaStartedEvent     Topic = "saga.started"
	SagaCompletedEvent   Topic = "saga.completed"
	SagaCompensatedEvent Topic = "saga.compensated"
	SagaFailedEvent      Topic = "saga.failed"
)
