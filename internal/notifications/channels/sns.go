// Package channels delivers registry events outside the process: an SNS
// topic for downstream systems and SES email for the users an event names.
package channels

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/notifications"
)

const sendTimeout = 5 * time.Second

// SNSAPI is the part of the SNS client the topic channel calls.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// TopicChannel forwards every event to one SNS topic. The event type is
// set as a message attribute so subscribers can filter on it.
type TopicChannel struct {
	client   SNSAPI
	topicARN string
	logger   *zap.Logger
}

var _ notifications.Publisher = (*TopicChannel)(nil)

func NewTopicChannel(client SNSAPI, topicARN string, logger *zap.Logger) *TopicChannel {
	return &TopicChannel{client: client, topicARN: topicARN, logger: logger}
}

// Publish never fails the caller; delivery errors are logged.
func (c *TopicChannel) Publish(ctx context.Context, event notifications.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("Failed to encode event for SNS", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	out, err := c.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Type)),
			},
		},
	})
	if err != nil {
		c.logger.Warn("SNS publish failed", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}
	c.logger.Debug("Event sent to SNS",
		zap.String("type", string(event.Type)),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
}
