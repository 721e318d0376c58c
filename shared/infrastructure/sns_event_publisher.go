package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/draftea/event-saga/shared/events"
	"github.com/draftea/event-saga/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var _ events.Publisher = (*SNSEventPublisher)(nil)

const maxBatchSize = 10

type snsMessage struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	Metadata      events.Metadata `json:"metadata"`
	Topic         string          `json:"topic"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// SNSAPI is the subset of the SNS client used by the publisher
type SNSAPI interface {
	PublishBatch(ctx context.Context, params *sns.PublishBatchInput, optFns ...func(*sns.Options)) (*sns.PublishBatchOutput, error)
}

// SNSEventPublisher implements events.Publisher using AWS SNS
type SNSEventPublisher struct {
	client   SNSAPI
	topicArn string
}

// NewSNSEventPublisher creates a new SNSEventPublisher
func NewSNSEventPublisher(client SNSAPI, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{
		client:   client,
		topicArn: topicArn,
	}
}

// Publish publishes events to SNS
func (p *SNSEventPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	if len(evts) == 0 {
		return nil
	}

	batchEvents := splitToChunks(evts, maxBatchSize)

	gr, ctx := errgroup.WithContext(ctx)

	for _, eventBatch := range batchEvents {
		gr.Go(func() error {
			return p.batchPublish(ctx, eventBatch)
		})
	}

	return gr.Wait()
}

func (p *SNSEventPublisher) batchPublish(ctx context.Context, batch []*events.Event) error {
	requests := make([]types.PublishBatchRequestEntry, len(batch))

	for i, event := range batch {
		payload, err := event.MarshalPayload()
		if err != nil {
			return errors.Wrap(err, "failed to marshal payload")
		}

		message := &snsMessage{
			ID:            event.ID.String(),
			AggregateID:   event.AggregateID.String(),
			Metadata:      event.Metadata,
			Topic:         event.Topic.String(),
			Payload:       payload,
			Timestamp:     event.Timestamp,
			CorrelationID: event.CorrelationID.String(),
		}

		msgJson, err := json.Marshal(message)
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}

		attrs := map[string]types.MessageAttributeValue{
			"topic": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Topic.String()),
			},
		}

		for k, v := range event.Metadata {
			attrs[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}

		requests[i] = types.PublishBatchRequestEntry{
			Id:                aws.String(event.ID.String()),
			Message:           aws.String(string(msgJson)),
			MessageAttributes: attrs,
		}
	}

	res, err := p.client.PublishBatch(
		ctx,
		&sns.PublishBatchInput{
			TopicArn:                   &p.topicArn,
			PublishBatchRequestEntries: requests,
		},
	)
	if err != nil {
		return errors.Wrap(err, "failed to publish batch to SNS")
	}

	failed := make(map[string]struct{}, len(res.Failed))
	for _, entry := range res.Failed {
		if entry.Id != nil {
			failed[*entry.Id] = struct{}{}
		}
	}

	for _, event := range batch {
		status := "success"
		if _, ok := failed[event.ID.String()]; ok {
			status = "error"
		}
		telemetry.RecordCounter(ctx, "saga_events_published_total", "Saga lifecycle events published", 1,
			attribute.String("topic", event.Topic.String()),
			attribute.String("status", status),
		)
	}

	if len(failed) > 0 {
		return errors.Errorf("%d of %d events rejected by SNS", len(failed), len(batch))
	}

	return nil
}

// splitToChunks splits slice into chunks of specified size
func splitToChunks[T any](slice []T, chunkSize int) [][]T {
	var chunks [][]T
	for i := 0; i < len(slice); i += chunkSize {
		end := i + chunkSize
		if end > len(slice) {
			end = len(slice)
		}
		chunks = append(chunks, slice[i:end])
	}
	return chunks
}
