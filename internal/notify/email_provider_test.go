package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/bookline/bookline/internal/models"
)

func TestEmailProviderSend(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	p := NewEmailProvider("mail.example.com", "587", "alerts@example.com", "user", "")
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	recipient := models.NotificationRecipient{UserID: "u1", Email: "ana@example.com"}
	messageID, method, err := p.Send(context.Background(), recipient, models.NotificationTypeBooking,
		models.NotificationContent{Title: "New booking", Message: "Haircut at 3pm"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if messageID == "" || method != "smtp" {
		t.Errorf("got (%q, %q), want synthesized id and smtp", messageID, method)
	}
	if gotAddr != "mail.example.com:587" || gotFrom != "alerts@example.com" {
		t.Errorf("unexpected addr/from: %s %s", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "ana@example.com" {
		t.Errorf("unexpected to list %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: New booking") || !strings.Contains(gotMsg, "Haircut at 3pm") {
		t.Errorf("unexpected message body:\n%s", gotMsg)
	}
}

func TestEmailProviderSendFailure(t *testing.T) {
	p := NewEmailProvider("mail.example.com", "587", "alerts@example.com", "", "")
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("relay refused")
	}
	recipient := models.NotificationRecipient{UserID: "u1", Email: "ana@example.com"}
	if _, _, err := p.Send(context.Background(), recipient, models.NotificationTypeBooking,
		models.NotificationContent{Message: "msg"}); err == nil {
		t.Fatal("expected send failure")
	}
}

func TestEmailProviderCanHandle(t *testing.T) {
	p := NewEmailProvider("mail.example.com", "587", "alerts@example.com", "", "")
	if p.CanHandle(models.NotificationRecipient{PhoneNumber: "+1"}) {
		t.Error("recipient without email should not be addressable")
	}
	if !p.CanHandle(models.NotificationRecipient{Email: "a@b.c"}) {
		t.Error("recipient with email should be addressable")
	}
}
