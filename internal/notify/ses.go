package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/rs/zerolog"

	"github.com/jgoulah/punchsync/internal/aggregate"
)

// SESClient is the part of the SES API the mailer uses
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer emails summaries to a fixed recipient list
type SESMailer struct {
	client     SESClient
	sender     string
	recipients []string
}

// NewSESMailer creates a mailer
func NewSESMailer(client SESClient, sender string, recipients []string) *SESMailer {
	return &SESMailer{client: client, sender: sender, recipients: recipients}
}

// Notify sends one email covering every summary
func (m *SESMailer) Notify(ctx context.Context, summaries []aggregate.EmployeeSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	if len(m.recipients) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	var body bytes.Buffer
	if err := WriteText(&body, summaries); err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: m.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject(summaries)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(body.String()),
				},
			},
		},
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("sending summary email: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("message_id", aws.ToString(out.MessageId)).Strs("to", m.recipients).Msg("Sent summary email")
	return nil
}

func subject(summaries []aggregate.EmployeeSummary) string {
	names := make([]string, 0, len(summaries))
	for _, s := range summaries {
		names = append(names, s.Employee)
	}
	return fmt.Sprintf("Punch hours %s: %s", summaries[0].Month.Label(), strings.Join(names, ", "))
}
