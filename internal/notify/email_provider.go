package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"

	"github.com/bookline/bookline/internal/models"
)

// EmailProvider delivers notifications over SMTP. Last in the default
// provider chain; used when a recipient has no reachable phone channel.
type EmailProvider struct {
	host string
	port string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailProvider creates an SMTP notification provider. Password may be
// empty for unauthenticated relays.
func NewEmailProvider(host, port, from, username, password string) *EmailProvider {
	var auth smtp.Auth
	if password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &EmailProvider{host: host, port: port, from: from, auth: auth, send: smtp.SendMail}
}

func (p *EmailProvider) Name() string { return ProviderEmail }

func (p *EmailProvider) CanHandle(recipient models.NotificationRecipient) bool {
	return recipient.Email != ""
}

func (p *EmailProvider) Send(ctx context.Context, recipient models.NotificationRecipient, notificationType models.NotificationType, content models.NotificationContent) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	subject := content.Title
	if subject == "" {
		subject = fmt.Sprintf("Bookline %s notification", notificationType)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", p.from)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(content.Message)
	msg.WriteString("\r\n")

	addr := p.host + ":" + p.port
	if err := p.send(addr, p.auth, p.from, []string{recipient.Email}, []byte(msg.String())); err != nil {
		return "", "", fmt.Errorf("failed to send email: %w", err)
	}
	// SMTP has no provider message id; synthesize one for the audit row.
	return uuid.New().String(), "smtp", nil
}
