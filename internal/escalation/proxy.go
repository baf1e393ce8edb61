package escalation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/store"
)

// Manager owns proxy session lifecycle: creation when an escalation fires,
// lazy 24h expiry on access, and idempotent teardown. Relay mappings and the
// paired notification row live in the store; nothing is kept in memory.
type Manager struct {
	store store.Store
	now   func() time.Time
}

// NewManager creates a proxy session manager over the given store.
func NewManager(st store.Store) *Manager {
	return &Manager{store: st, now: time.Now}
}

// CreateSession persists the escalation notification and the relay mapping
// for a new proxy session. Store write failures are propagated; a session
// whose records cannot be written must not exist.
func (m *Manager) CreateSession(businessID, businessChannelID, adminPhone, customerPhone, summary string) (*models.ProxySession, error) {
	now := m.now()
	notification := models.Notification{
		ID:               uuid.New().String(),
		BusinessID:       businessID,
		RecipientPhone:   adminPhone,
		Message:          summary,
		Status:           models.NotificationStatusProxyMode,
		NotificationType: models.NotificationTypeEscalation,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.CreateNotification(notification); err != nil {
		return nil, fmt.Errorf("failed to persist escalation notification: %w", err)
	}

	session := models.ProxySession{
		NotificationID:    notification.ID,
		SessionID:         uuid.New().String(),
		AdminPhone:        adminPhone,
		CustomerPhone:     customerPhone,
		BusinessChannelID: businessChannelID,
		IsActive:          true,
		StartedAt:         now,
	}
	if err := m.store.SaveProxySession(session); err != nil {
		return nil, fmt.Errorf("failed to persist proxy session: %w", err)
	}

	slog.Info("Manager.CreateSession: proxy session started",
		"sessionID", session.SessionID, "adminPhone", adminPhone, "customerPhone", customerPhone)
	return &session, nil
}

// ActiveByAdmin returns the admin's active session, expiring it in-line if it
// has exceeded its maximum duration.
func (m *Manager) ActiveByAdmin(adminPhone string) (*models.ProxySession, error) {
	session, err := m.store.GetProxySessionByAdmin(adminPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up proxy session by admin: %w", err)
	}
	return m.checkExpiry(session)
}

// ActiveByCustomer returns the customer's active session, expiring it in-line
// if it has exceeded its maximum duration.
func (m *Manager) ActiveByCustomer(customerPhone string) (*models.ProxySession, error) {
	session, err := m.store.GetProxySessionByCustomer(customerPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up proxy session by customer: %w", err)
	}
	return m.checkExpiry(session)
}

// ActiveBySessionID returns the active session with the given id, expiring it
// in-line if it has exceeded its maximum duration.
func (m *Manager) ActiveBySessionID(sessionID string) (*models.ProxySession, error) {
	session, err := m.store.GetProxySessionBySessionID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up proxy session: %w", err)
	}
	return m.checkExpiry(session)
}

// checkExpiry enforces lazy expiry. Expired sessions are ended in-line and
// reported as absent.
func (m *Manager) checkExpiry(session *models.ProxySession) (*models.ProxySession, error) {
	if session == nil {
		return nil, nil
	}
	if !session.Expired(m.now()) {
		return session, nil
	}
	slog.Info("Manager.checkExpiry: proxy session expired, ending", "sessionID", session.SessionID)
	if _, err := m.EndSession(session.SessionID); err != nil {
		return nil, err
	}
	return nil, nil
}

// EndSession deactivates a session and resolves its notification. Idempotent:
// ending an already-ended or unknown session reports ended=false with no
// error. Store write failures are propagated.
func (m *Manager) EndSession(sessionID string) (bool, error) {
	session, err := m.store.GetProxySessionBySessionID(sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to look up proxy session for end: %w", err)
	}

	ended, err := m.store.EndProxySession(sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to end proxy session: %w", err)
	}
	if !ended {
		return false, nil
	}

	if session != nil && session.NotificationID != "" {
		if err := m.store.UpdateNotificationStatus(session.NotificationID, models.NotificationStatusResolved); err != nil {
			return false, fmt.Errorf("failed to resolve escalation notification: %w", err)
		}
	}
	slog.Info("Manager.EndSession: proxy session ended", "sessionID", sessionID)
	return true, nil
}
