package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/store"
)

// Dispatcher fans a notification out to its recipients. Every attempt is
// audited: a pending row is written per recipient before any provider runs,
// and the row is marked sent or failed afterwards. Recipients are independent;
// one recipient exhausting all providers does not stop the others.
type Dispatcher struct {
	store     store.Store
	data      store.DataStore
	providers []Provider
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. Providers are registered afterwards in
// priority order.
func NewDispatcher(st store.Store, data store.DataStore) *Dispatcher {
	return &Dispatcher{store: st, data: data, now: time.Now}
}

// Register appends a provider. Registration order is the default priority.
func (d *Dispatcher) Register(p Provider) {
	d.providers = append(d.providers, p)
	slog.Debug("Dispatcher.Register: provider registered", "provider", p.Name())
}

// Send delivers a notification of the given type. When recipients is empty
// they are resolved from the business staff roster: system notices go to
// super admins only, everything else to business admins plus super admins.
// Zero resolved recipients is not an error. Returns the joined errors of
// recipients whose every provider failed.
func (d *Dispatcher) Send(ctx context.Context, notificationType models.NotificationType, businessID string, content models.NotificationContent, recipients []models.NotificationRecipient) error {
	if !models.IsValidNotificationType(notificationType) {
		return models.ErrInvalidNotification
	}
	if content.Message == "" {
		return models.ErrEmptyMessage
	}

	if len(recipients) == 0 {
		resolved, err := d.resolveRecipients(ctx, notificationType, businessID)
		if err != nil {
			return err
		}
		recipients = resolved
	}
	if len(recipients) == 0 {
		slog.Warn("Dispatcher.Send: no recipients resolved, nothing to deliver",
			"type", notificationType, "businessID", businessID)
		return nil
	}

	var errs []error
	for _, recipient := range recipients {
		if err := d.deliverToRecipient(ctx, notificationType, businessID, content, recipient); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolveRecipients derives the recipient list from the staff roster.
// Admins and super admins are kept as separate entries even when the same
// person holds both roles; the audit trail records each delivery.
func (d *Dispatcher) resolveRecipients(ctx context.Context, notificationType models.NotificationType, businessID string) ([]models.NotificationRecipient, error) {
	staff, err := d.data.GetStaff(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notification recipients: %w", err)
	}

	var out []models.NotificationRecipient
	appendMember := func(m models.StaffMember, super bool) {
		out = append(out, models.NotificationRecipient{
			UserID:           m.ID,
			Name:             m.Name,
			PhoneNumber:      m.PhoneNumber,
			Email:            m.Email,
			Role:             m.Role,
			IsBusinessAdmin:  !super,
			IsSuperAdmin:     super,
			PreferredChannel: m.PreferredChannel,
		})
	}

	if notificationType != models.NotificationTypeSystem {
		for _, m := range staff {
			if models.IsProviderRole(m.Role) {
				appendMember(m, false)
			}
		}
	}
	for _, m := range staff {
		if m.Role == models.RoleSuperAdmin {
			appendMember(m, true)
		}
	}
	return out, nil
}

// deliverToRecipient writes the pending audit row, then walks the provider
// chain until one delivers. All providers failing marks the row failed and
// returns the collected error.
func (d *Dispatcher) deliverToRecipient(ctx context.Context, notificationType models.NotificationType, businessID string, content models.NotificationContent, recipient models.NotificationRecipient) error {
	now := d.now()
	notification := models.Notification{
		ID:               uuid.New().String(),
		BusinessID:       businessID,
		RecipientPhone:   recipient.PhoneNumber,
		Message:          content.Message,
		Status:           models.NotificationStatusPending,
		NotificationType: notificationType,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := d.store.CreateNotification(notification); err != nil {
		return fmt.Errorf("failed to persist pending notification for %s: %w", recipient.UserID, err)
	}

	var attemptErrs []string
	for _, provider := range d.orderedProviders(recipient.PreferredChannel) {
		if !provider.CanHandle(recipient) {
			continue
		}
		messageID, method, err := provider.Send(ctx, recipient, notificationType, content)
		if err != nil {
			slog.Warn("Dispatcher.deliverToRecipient: provider failed, trying next",
				"provider", provider.Name(), "recipient", recipient.UserID, "error", err)
			attemptErrs = append(attemptErrs, fmt.Sprintf("%s: %v", provider.Name(), err))
			continue
		}
		if err := d.store.MarkNotificationSent(notification.ID, messageID, provider.Name()+":"+method); err != nil {
			slog.Error("Dispatcher.deliverToRecipient: delivered but failed to record",
				"error", err, "notificationID", notification.ID)
		}
		slog.Info("Dispatcher.deliverToRecipient: notification delivered",
			"provider", provider.Name(), "recipient", recipient.UserID, "notificationID", notification.ID)
		return nil
	}

	lastError := strings.Join(attemptErrs, "; ")
	if lastError == "" {
		lastError = "no provider can reach this recipient"
	}
	if err := d.store.MarkNotificationFailed(notification.ID, lastError); err != nil {
		slog.Error("Dispatcher.deliverToRecipient: failed to record delivery failure",
			"error", err, "notificationID", notification.ID)
	}
	return fmt.Errorf("%w for %s: %s", models.ErrAllProvidersFailed, recipient.UserID, lastError)
}

// orderedProviders returns the provider chain with the recipient's preferred
// channel moved to the front.
func (d *Dispatcher) orderedProviders(preferred string) []Provider {
	if preferred == "" {
		return d.providers
	}
	out := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Name() == preferred {
			out = append(out, p)
		}
	}
	for _, p := range d.providers {
		if p.Name() != preferred {
			out = append(out, p)
		}
	}
	return out
}
