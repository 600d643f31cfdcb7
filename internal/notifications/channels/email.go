package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/auth"
	"samudra-ledger/registry-backend/internal/notifications"
)

// SESAPI is the part of the SESv2 client the email channel calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Directory resolves the recipients of user-addressed events.
type Directory interface {
	GetUser(ctx context.Context, id string) (*auth.User, error)
}

// EmailChannel mails the users an event is addressed to. Broadcast and
// role-only events are left to the socket and topic channels.
type EmailChannel struct {
	client SESAPI
	users  Directory
	from   string
	logger *zap.Logger
}

var _ notifications.Publisher = (*EmailChannel)(nil)

func NewEmailChannel(client SESAPI, users Directory, from string, logger *zap.Logger) *EmailChannel {
	return &EmailChannel{client: client, users: users, from: from, logger: logger}
}

var subjects = map[notifications.EventType]string{
	notifications.EventCreditPurchased: "Carbon credit purchase confirmed",
	notifications.EventMRVDecided:      "MRV report reviewed",
}

func (c *EmailChannel) Publish(ctx context.Context, event notifications.Event) {
	subject, ok := subjects[event.Type]
	if !ok || len(event.UserIDs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	body := renderBody(event)
	for _, id := range event.UserIDs {
		user, err := c.users.GetUser(ctx, id)
		if err != nil {
			c.logger.Warn("Email recipient lookup failed", zap.String("user_id", id), zap.Error(err))
			continue
		}
		_, err = c.client.SendEmail(ctx, &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(c.from),
			Destination:      &sestypes.Destination{ToAddresses: []string{user.Email}},
			Content: &sestypes.EmailContent{
				Simple: &sestypes.Message{
					Subject: &sestypes.Content{Data: aws.String(subject)},
					Body: &sestypes.Body{
						Text: &sestypes.Content{Data: aws.String(fmt.Sprintf("Hello %s,\n\n%s", user.Name, body))},
					},
				},
			},
		})
		if err != nil {
			c.logger.Warn("SES send failed",
				zap.String("type", string(event.Type)),
				zap.String("user_id", id),
				zap.Error(err),
			)
		}
	}
}

func renderBody(event notifications.Event) string {
	var b strings.Builder
	switch event.Type {
	case notifications.EventCreditPurchased:
		fmt.Fprintf(&b, "Credit %v for %v tCO2e has changed hands.\n", event.Data["creditId"], event.Data["amount"])
	case notifications.EventMRVDecided:
		fmt.Fprintf(&b, "MRV report %v for project %v is now %v.\n", event.Data["mrvId"], event.Data["projectId"], event.Data["status"])
	}
	fmt.Fprintf(&b, "\nSent %s", event.Timestamp.Format("2006-01-02 15:04 MST"))
	return b.String()
}
