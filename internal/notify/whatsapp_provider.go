package notify

import (
	"context"
	"fmt"

	"github.com/bookline/bookline/internal/models"
)

// TemplateSender sends pre-approved WhatsApp template messages. Satisfied by
// the whatsapp package's client.
type TemplateSender interface {
	SendTemplate(ctx context.Context, to, templateName string, params map[string]string) (messageID string, err error)
}

// Template names registered with the WhatsApp Business platform, per
// notification type.
var whatsappTemplates = map[models.NotificationType]string{
	models.NotificationTypeBooking:    "booking_update",
	models.NotificationTypeEscalation: "customer_needs_help",
	models.NotificationTypeSystem:     "system_notice",
}

// WhatsAppProvider delivers notifications as WhatsApp template messages.
// Business-initiated WhatsApp messages must use templates, so there is no
// freeform fallback here: a failed template send fails the provider.
type WhatsAppProvider struct {
	sender TemplateSender
}

// NewWhatsAppProvider creates a WhatsApp notification provider.
func NewWhatsAppProvider(sender TemplateSender) *WhatsAppProvider {
	return &WhatsAppProvider{sender: sender}
}

func (p *WhatsAppProvider) Name() string { return ProviderWhatsApp }

func (p *WhatsAppProvider) CanHandle(recipient models.NotificationRecipient) bool {
	return recipient.PhoneNumber != ""
}

func (p *WhatsAppProvider) Send(ctx context.Context, recipient models.NotificationRecipient, notificationType models.NotificationType, content models.NotificationContent) (string, string, error) {
	template, ok := whatsappTemplates[notificationType]
	if !ok {
		return "", "", fmt.Errorf("no WhatsApp template for notification type %q", notificationType)
	}

	params := map[string]string{"message": content.Message}
	if content.Title != "" {
		params["title"] = content.Title
	}
	for k, v := range content.Data {
		params[k] = v
	}

	messageID, err := p.sender.SendTemplate(ctx, recipient.PhoneNumber, template, params)
	if err != nil {
		return "", "", fmt.Errorf("failed to send WhatsApp template %s: %w", template, err)
	}
	return messageID, "template", nil
}
