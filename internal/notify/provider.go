// Package notify dispatches business notifications (booking confirmations,
// escalation alerts, system notices) to staff over an ordered set of delivery
// providers with per-recipient fallback.
package notify

import (
	"context"

	"github.com/bookline/bookline/internal/models"
)

// Provider delivers one notification to one recipient over one channel.
type Provider interface {
	// Name identifies the provider in delivery records ("whatsapp", "sms", "email").
	Name() string
	// CanHandle reports whether the recipient is addressable on this channel.
	CanHandle(recipient models.NotificationRecipient) bool
	// Send delivers the content. On success it returns the provider message id
	// and the delivery method used ("template", "text", "smtp").
	Send(ctx context.Context, recipient models.NotificationRecipient, notificationType models.NotificationType, content models.NotificationContent) (messageID, method string, err error)
}

// Provider names, in default priority order.
const (
	ProviderWhatsApp = "whatsapp"
	ProviderSMS      = "sms"
	ProviderEmail    = "email"
)
