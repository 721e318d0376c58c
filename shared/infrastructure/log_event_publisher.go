package infrastructure

import (
	"context"
	"log/slog"
	"sync"

	"github.com/draftea/event-saga/shared/events"
)

var _ events.Publisher = (*LogEventPublisher)(nil)

// LogEventPublisher writes events to the structured log and keeps the
// most recent ones in memory for the demo endpoints.
type LogEventPublisher struct {
	logger *slog.Logger
	limit  int

	mu     sync.Mutex
	recent []*events.Event
}

// NewLogEventPublisher creates a publisher retaining up to limit events
func NewLogEventPublisher(logger *slog.Logger, limit int) *LogEventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventPublisher{
		logger: logger,
		limit:  limit,
	}
}

// Publish logs each event
func (p *LogEventPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, event := range evts {
		p.logger.InfoContext(ctx, "event published",
			slog.String("event_id", event.ID.String()),
			slog.String("topic", event.Topic.String()),
			slog.String("aggregate_id", event.AggregateID.String()),
		)

		p.recent = append(p.recent, event)
	}

	if p.limit > 0 && len(p.recent) > p.limit {
		p.recent = append([]*events.Event(nil), p.recent[len(p.recent)-p.limit:]...)
	}

	return nil
}

// Recent returns the retained events, oldest first
func (p *LogEventPublisher) Recent() []*events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*events.Event, len(p.recent))
	copy(out, p.recent)
	return out
}

// Close is a no-op
func (p *LogEventPublisher) Close() error {
	return nil
}
