package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/store"
)

// fakeProvider counts sends and can be forced to fail or decline recipients.
type fakeProvider struct {
	name      string
	fail      bool
	declines  bool
	sent      []models.NotificationRecipient
	messageID string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CanHandle(recipient models.NotificationRecipient) bool {
	return !f.declines
}

func (f *fakeProvider) Send(ctx context.Context, recipient models.NotificationRecipient, notificationType models.NotificationType, content models.NotificationContent) (string, string, error) {
	if f.fail {
		return "", "", errors.New(f.name + " unreachable")
	}
	f.sent = append(f.sent, recipient)
	id := f.messageID
	if id == "" {
		id = f.name + "-msg"
	}
	return id, "text", nil
}

func seedStaff(st *store.InMemoryStore) {
	st.SeedStaff("biz1", []models.StaffMember{
		{ID: "u1", Name: "Ana", PhoneNumber: "+1admin", Role: models.RoleAdmin},
		{ID: "u2", Name: "Ben", PhoneNumber: "+1provider", Role: models.RoleProvider},
		{ID: "u3", Name: "Cleo", PhoneNumber: "+1super", Role: models.RoleSuperAdmin},
		{ID: "u4", Name: "Dot", PhoneNumber: "+1visitor", Role: "viewer"},
	})
}

func TestSendStopsAtFirstSuccessfulProvider(t *testing.T) {
	st := store.NewInMemoryStore()
	first := &fakeProvider{name: ProviderWhatsApp, fail: true}
	second := &fakeProvider{name: ProviderSMS}
	third := &fakeProvider{name: ProviderEmail}
	d := NewDispatcher(st, st)
	d.Register(first)
	d.Register(second)
	d.Register(third)

	recipient := models.NotificationRecipient{UserID: "u1", PhoneNumber: "+1admin", Role: models.RoleAdmin}
	err := d.Send(context.Background(), models.NotificationTypeBooking, "biz1",
		models.NotificationContent{Message: "Booking confirmed"}, []models.NotificationRecipient{recipient})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(second.sent) != 1 {
		t.Errorf("sms provider sends = %d, want 1", len(second.sent))
	}
	if len(third.sent) != 0 {
		t.Error("email provider ran after a successful delivery")
	}

	rows := st.ListNotifications()
	if len(rows) != 1 {
		t.Fatalf("notification rows = %d, want 1", len(rows))
	}
	if rows[0].Status != models.NotificationStatusSent {
		t.Errorf("row status = %s, want sent", rows[0].Status)
	}
	if rows[0].DeliveryMethod != "sms:text" {
		t.Errorf("delivery method = %s, want sms:text", rows[0].DeliveryMethod)
	}
	if rows[0].DeliveryMessageID != "sms-msg" {
		t.Errorf("delivery message id = %s, want sms-msg", rows[0].DeliveryMessageID)
	}
}

func TestSendAllProvidersFailMarksFailed(t *testing.T) {
	st := store.NewInMemoryStore()
	d := NewDispatcher(st, st)
	d.Register(&fakeProvider{name: ProviderWhatsApp, fail: true})
	d.Register(&fakeProvider{name: ProviderSMS, fail: true})

	recipient := models.NotificationRecipient{UserID: "u1", PhoneNumber: "+1admin", Role: models.RoleAdmin}
	err := d.Send(context.Background(), models.NotificationTypeBooking, "biz1",
		models.NotificationContent{Message: "Booking confirmed"}, []models.NotificationRecipient{recipient})
	if !errors.Is(err, models.ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}

	rows := st.ListNotifications()
	if len(rows) != 1 {
		t.Fatalf("notification rows = %d, want 1", len(rows))
	}
	if rows[0].Status != models.NotificationStatusFailed {
		t.Errorf("row status = %s, want failed", rows[0].Status)
	}
	if rows[0].LastError == "" {
		t.Error("expected LastError to record the attempt errors")
	}
}

func TestSendRecipientsAreIndependent(t *testing.T) {
	st := store.NewInMemoryStore()
	provider := &fakeProvider{name: ProviderSMS}
	failing := &fakeProvider{name: ProviderWhatsApp, fail: true}
	d := NewDispatcher(st, st)
	d.Register(failing)
	d.Register(provider)

	recipients := []models.NotificationRecipient{
		{UserID: "u1", PhoneNumber: "+1a", Role: models.RoleAdmin},
		{UserID: "u2", PhoneNumber: "+1b", Role: models.RoleAdmin},
	}
	err := d.Send(context.Background(), models.NotificationTypeBooking, "biz1",
		models.NotificationContent{Message: "msg"}, recipients)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(provider.sent) != 2 {
		t.Errorf("deliveries = %d, want 2", len(provider.sent))
	}
}

func TestSendJoinsErrorsAcrossFailedRecipients(t *testing.T) {
	st := store.NewInMemoryStore()
	d := NewDispatcher(st, st)
	d.Register(&fakeProvider{name: ProviderSMS, fail: true})

	recipients := []models.NotificationRecipient{
		{UserID: "u1", PhoneNumber: "+1a", Role: models.RoleAdmin},
		{UserID: "u2", PhoneNumber: "+1b", Role: models.RoleAdmin},
	}
	err := d.Send(context.Background(), models.NotificationTypeBooking, "biz1",
		models.NotificationContent{Message: "msg"}, recipients)
	if !errors.Is(err, models.ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}
	if len(st.ListNotifications()) != 2 {
		t.Errorf("expected a failed audit row per recipient")
	}
}

func TestSendResolvesBusinessRecipients(t *testing.T) {
	st := store.NewInMemoryStore()
	seedStaff(st)
	provider := &fakeProvider{name: ProviderSMS}
	d := NewDispatcher(st, st)
	d.Register(provider)

	err := d.Send(context.Background(), models.NotificationTypeBooking, "biz1",
		models.NotificationContent{Message: "New booking"}, nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	// admin + provider + super admin; the viewer is skipped.
	if len(provider.sent) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(provider.sent))
	}
}

func TestSendSystemNoticesGoToSuperAdminsOnly(t *testing.T) {
	st := store.NewInMemoryStore()
	seedStaff(st)
	provider := &fakeProvider{name: ProviderSMS}
	d := NewDispatcher(st, st)
	d.Register(provider)

	err := d.Send(context.Background(), models.NotificationTypeSystem, "biz1",
		models.NotificationContent{Message: "Disk almost full"}, nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(provider.sent) != 1 || provider.sent[0].PhoneNumber != "+1super" {
		t.Fatalf("unexpected system recipients %+v", provider.sent)
	}
}

func TestSendZeroRecipientsIsNotAnError(t *testing.T) {
	st := store.NewInMemoryStore()
	d := NewDispatcher(st, st)
	d.Register(&fakeProvider{name: ProviderSMS})

	err := d.Send(context.Background(), models.NotificationTypeBooking, "biz-without-staff",
		models.NotificationContent{Message: "msg"}, nil)
	if err != nil {
		t.Fatalf("expected nil for zero recipients, got %v", err)
	}
	if len(st.ListNotifications()) != 0 {
		t.Error("no audit rows should exist without recipients")
	}
}

func TestSendPreferredChannelRunsFirst(t *testing.T) {
	st := store.NewInMemoryStore()
	whatsapp := &fakeProvider{name: ProviderWhatsApp}
	sms := &fakeProvider{name: ProviderSMS}
	d := NewDispatcher(st, st)
	d.Register(whatsapp)
	d.Register(sms)

	recipient := models.NotificationRecipient{UserID: "u1", PhoneNumber: "+1a", Role: models.RoleAdmin, PreferredChannel: ProviderSMS}
	err := d.Send(context.Background(), models.NotificationTypeBooking, "biz1",
		models.NotificationContent{Message: "msg"}, []models.NotificationRecipient{recipient})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(sms.sent) != 1 {
		t.Errorf("preferred sms provider sends = %d, want 1", len(sms.sent))
	}
	if len(whatsapp.sent) != 0 {
		t.Error("non-preferred provider ran despite preferred success")
	}
}

func TestSendRejectsInvalidInput(t *testing.T) {
	st := store.NewInMemoryStore()
	d := NewDispatcher(st, st)

	if err := d.Send(context.Background(), "party", "biz1",
		models.NotificationContent{Message: "msg"}, nil); !errors.Is(err, models.ErrInvalidNotification) {
		t.Errorf("invalid type: expected ErrInvalidNotification, got %v", err)
	}
	if err := d.Send(context.Background(), models.NotificationTypeBooking, "biz1",
		models.NotificationContent{}, nil); !errors.Is(err, models.ErrEmptyMessage) {
		t.Errorf("empty message: expected ErrEmptyMessage, got %v", err)
	}
}
