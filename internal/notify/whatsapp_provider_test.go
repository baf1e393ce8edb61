package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/bookline/bookline/internal/models"
)

type fakeTemplateSender struct {
	lastTemplate string
	lastParams   map[string]string
	err          error
}

func (f *fakeTemplateSender) SendTemplate(ctx context.Context, to, templateName string, params map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastTemplate = templateName
	f.lastParams = params
	return "wamid.123", nil
}

func TestWhatsAppProviderSelectsTemplateByType(t *testing.T) {
	sender := &fakeTemplateSender{}
	p := NewWhatsAppProvider(sender)
	recipient := models.NotificationRecipient{UserID: "u1", PhoneNumber: "+1admin"}

	messageID, method, err := p.Send(context.Background(), recipient, models.NotificationTypeEscalation,
		models.NotificationContent{Title: "Help needed", Message: "Customer asked for a human"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if messageID != "wamid.123" || method != "template" {
		t.Errorf("got (%s, %s), want (wamid.123, template)", messageID, method)
	}
	if sender.lastTemplate != "customer_needs_help" {
		t.Errorf("template = %s, want customer_needs_help", sender.lastTemplate)
	}
	if sender.lastParams["message"] == "" || sender.lastParams["title"] == "" {
		t.Errorf("params missing content: %+v", sender.lastParams)
	}
}

func TestWhatsAppProviderHasNoFreeformFallback(t *testing.T) {
	sender := &fakeTemplateSender{err: errors.New("template rejected")}
	p := NewWhatsAppProvider(sender)
	recipient := models.NotificationRecipient{UserID: "u1", PhoneNumber: "+1admin"}

	if _, _, err := p.Send(context.Background(), recipient, models.NotificationTypeBooking,
		models.NotificationContent{Message: "msg"}); err == nil {
		t.Fatal("expected template failure to fail the provider")
	}
}

func TestWhatsAppProviderCanHandle(t *testing.T) {
	p := NewWhatsAppProvider(&fakeTemplateSender{})
	if p.CanHandle(models.NotificationRecipient{Email: "a@b.c"}) {
		t.Error("recipient without phone should not be addressable")
	}
	if !p.CanHandle(models.NotificationRecipient{PhoneNumber: "+1"}) {
		t.Error("recipient with phone should be addressable")
	}
}
