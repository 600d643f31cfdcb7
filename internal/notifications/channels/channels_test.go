package channels

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/auth"
	"samudra-ledger/registry-backend/internal/notifications"
)

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(params)
	return &sesv2.SendEmailOutput{}, args.Error(0)
}

type directory map[string]*auth.User

func (d directory) GetUser(_ context.Context, id string) (*auth.User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, auth.ErrUserNotFound
}

func TestTopicChannel_Publish(t *testing.T) {
	api := new(MockSNS)
	ch := NewTopicChannel(api, "arn:aws:sns:ap-south-1:123:registry", zap.NewNop())

	var captured *sns.PublishInput
	api.On("Publish", mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(0).(*sns.PublishInput) }).
		Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil).Once()

	ch.Publish(context.Background(), notifications.NewEvent(notifications.EventCreditRetired, map[string]any{
		"creditId": "credit_1",
		"amount":   90,
	}))

	require.NotNil(t, captured)
	assert.Equal(t, "arn:aws:sns:ap-south-1:123:registry", aws.ToString(captured.TopicArn))
	assert.Equal(t, "credit.retired", aws.ToString(captured.MessageAttributes["eventType"].StringValue))

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(captured.Message)), &body))
	assert.Equal(t, "credit.retired", body["type"])
	assert.Equal(t, "credit_1", body["data"].(map[string]any)["creditId"])
	api.AssertExpectations(t)
}

func TestTopicChannel_ErrorsAreSwallowed(t *testing.T) {
	api := new(MockSNS)
	ch := NewTopicChannel(api, "arn", zap.NewNop())
	api.On("Publish", mock.Anything).Return(nil, errors.New("throttled")).Once()

	assert.NotPanics(t, func() {
		ch.Publish(context.Background(), notifications.NewEvent(notifications.EventCreditIssued, nil))
	})
	api.AssertExpectations(t)
}

func TestEmailChannel_MailsAddressedUsers(t *testing.T) {
	api := new(MockSES)
	users := directory{
		"buyer_1": {ID: "buyer_1", Email: "buyer@example.com", Name: "Asha"},
		"pm_1":    {ID: "pm_1", Email: "pm@example.com", Name: "Ravi"},
	}
	ch := NewEmailChannel(api, users, "registry@example.com", zap.NewNop())

	var sent []*sesv2.SendEmailInput
	api.On("SendEmail", mock.Anything).
		Run(func(args mock.Arguments) { sent = append(sent, args.Get(0).(*sesv2.SendEmailInput)) }).
		Return(nil)

	event := notifications.NewEvent(notifications.EventCreditPurchased, map[string]any{
		"creditId": "credit_1",
		"amount":   90,
	}).ForUsers("buyer_1", "pm_1", "ghost")
	ch.Publish(context.Background(), event)

	require.Len(t, sent, 2)
	assert.Equal(t, []string{"buyer@example.com"}, sent[0].Destination.ToAddresses)
	assert.Equal(t, []string{"pm@example.com"}, sent[1].Destination.ToAddresses)
	assert.Equal(t, "registry@example.com", aws.ToString(sent[0].FromEmailAddress))
	assert.Equal(t, "Carbon credit purchase confirmed", aws.ToString(sent[0].Content.Simple.Subject.Data))
	assert.Contains(t, aws.ToString(sent[0].Content.Simple.Body.Text.Data), "Hello Asha")
	assert.Contains(t, aws.ToString(sent[0].Content.Simple.Body.Text.Data), "credit_1")
}

func TestEmailChannel_SkipsBroadcastsAndUnmailedTypes(t *testing.T) {
	api := new(MockSES)
	ch := NewEmailChannel(api, directory{}, "registry@example.com", zap.NewNop())

	ch.Publish(context.Background(), notifications.NewEvent(notifications.EventCreditPurchased, nil))
	ch.Publish(context.Background(), notifications.NewEvent(notifications.EventCreditRetired, nil).ForUsers("buyer_1"))

	api.AssertNotCalled(t, "SendEmail", mock.Anything)
}
