package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

// ==========================
// SES
// ==========================

func TestSESClient_SendEmail(t *testing.T) {
	var captured *ses.SendEmailInput
	client := NewSESClientWithAPI(&MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: aws.String("ses-msg-1")}, nil
		},
	}, "assistant@shop.example")

	id, err := client.SendEmail(context.Background(), "shopper@example.com", "Your answer", "The Razer DeathAdder costs 59.")
	require.NoError(t, err)
	assert.Equal(t, "ses-msg-1", id)

	require.NotNil(t, captured)
	assert.Equal(t, []string{"shopper@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "assistant@shop.example", aws.ToString(captured.Source))
	assert.Equal(t, "Your answer", aws.ToString(captured.Message.Subject.Data))
	assert.Equal(t, "The Razer DeathAdder costs 59.", aws.ToString(captured.Message.Body.Text.Data))
	assert.Nil(t, captured.Message.Body.Html)
}

func TestSESClient_Errors(t *testing.T) {
	failing := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("MessageRejected: Email address is not verified")
		},
	}

	_, err := NewSESClientWithAPI(failing, "assistant@shop.example").SendEmail(context.Background(), "a@b.co", "s", "b")
	assert.ErrorContains(t, err, "ses send email: MessageRejected")

	_, err = NewSESClientWithAPI(failing, "").SendEmail(context.Background(), "a@b.co", "s", "b")
	assert.ErrorContains(t, err, "sender address is not configured")
}

// ==========================
// SNS
// ==========================

func TestSNSClient_SendSMS(t *testing.T) {
	tests := []struct {
		name       string
		senderID   string
		wantSender bool
	}{
		{name: "with sender id", senderID: "SHOP", wantSender: true},
		{name: "without sender id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured *sns.PublishInput
			client := NewSNSClientWithAPI(&MockSNSService{
				PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
					captured = params
					return &sns.PublishOutput{MessageId: aws.String("sns-msg-1")}, nil
				},
			}, tt.senderID)

			id, err := client.SendSMS(context.Background(), "+14155550100", "Razer DeathAdder: 59")
			require.NoError(t, err)
			assert.Equal(t, "sns-msg-1", id)
			assert.Equal(t, "+14155550100", aws.ToString(captured.PhoneNumber))
			assert.Equal(t, "Transactional", aws.ToString(captured.MessageAttributes[attrSMSType].StringValue))

			sender, ok := captured.MessageAttributes[attrSenderID]
			assert.Equal(t, tt.wantSender, ok)
			if tt.wantSender {
				assert.Equal(t, tt.senderID, aws.ToString(sender.StringValue))
			}
		})
	}
}

func TestSNSClient_Error(t *testing.T) {
	client := NewSNSClientWithAPI(&MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("InvalidParameter")
		},
	}, "")

	_, err := client.SendSMS(context.Background(), "+14155550100", "hi")
	assert.ErrorContains(t, err, "sns publish: InvalidParameter")
}
