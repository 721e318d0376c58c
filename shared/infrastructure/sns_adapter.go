package infrastructure

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/draftea/event-saga/shared/events"
	"github.com/pkg/errors"
)

// SNSPublisherAdapter adapts SNSEventPublisher to work with events.Publisher interface
type SNSPublisherAdapter struct {
	snsPublisher *SNSEventPublisher
}

// NewSNSPublisherAdapter creates a new SNS publisher adapter
func NewSNSPublisherAdapter(ctx context.Context, topicArn string) (*SNSPublisherAdapter, error) {
	if topicArn == "" {
		return nil, errors.New("sns topic arn is required")
	}

	// Load AWS config (works with LocalStack when AWS_ENDPOINT_URL is set)
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	snsClient := sns.NewFromConfig(cfg)

	return &SNSPublisherAdapter{
		snsPublisher: NewSNSEventPublisher(snsClient, topicArn),
	}, nil
}

// Publish implements events.Publisher interface
func (p *SNSPublisherAdapter) Publish(ctx context.Context, events ...*events.Event) error {
	return p.snsPublisher.Publish(ctx, events...)
}

// Close closes the publisher
func (p *SNSPublisherAdapter) Close() error {
	// SNS client doesn't need explicit closing
	return nil
}
