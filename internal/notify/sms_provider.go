package notify

import (
	"context"
	"fmt"

	"github.com/bookline/bookline/internal/models"
)

// TextSender sends plain SMS messages. Satisfied by the twiliosms client.
type TextSender interface {
	SendText(ctx context.Context, to, body string) (messageID string, err error)
}

// SMSProvider delivers notifications as freeform SMS.
type SMSProvider struct {
	sender TextSender
}

// NewSMSProvider creates an SMS notification provider.
func NewSMSProvider(sender TextSender) *SMSProvider {
	return &SMSProvider{sender: sender}
}

func (p *SMSProvider) Name() string { return ProviderSMS }

func (p *SMSProvider) CanHandle(recipient models.NotificationRecipient) bool {
	return recipient.PhoneNumber != ""
}

func (p *SMSProvider) Send(ctx context.Context, recipient models.NotificationRecipient, _ models.NotificationType, content models.NotificationContent) (string, string, error) {
	body := content.Message
	if content.Title != "" {
		body = content.Title + "\n" + body
	}
	messageID, err := p.sender.SendText(ctx, recipient.PhoneNumber, body)
	if err != nil {
		return "", "", fmt.Errorf("failed to send SMS: %w", err)
	}
	return messageID, "text", nil
}
