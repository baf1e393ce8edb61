// Package store provides storage backends for Bookline.
//
// It includes an in-memory store for tests and development, and persistent
// SQLite and PostgreSQL backends for conversation goals, notifications and
// proxy sessions. Read accessors for structured business records live behind
// the separate DataStore interface.
package store

import (
	"context"
	"strings"

	"github.com/bookline/bookline/internal/models"
)

// Store persists the conversation core's mutable records: the per-conversation
// goal, notification audit rows, and proxy-session relay mappings.
type Store interface {
	// GetGoal returns the goal for a conversation, or nil if none exists.
	GetGoal(conversationID string) (*models.Goal, error)
	// SaveGoal creates or replaces the goal for a conversation.
	SaveGoal(conversationID string, goal models.Goal) error

	// CreateNotification persists a new notification row.
	CreateNotification(n models.Notification) error
	// GetNotification returns a notification by id, or nil if not found.
	GetNotification(id string) (*models.Notification, error)
	// MarkNotificationSent records the terminal sent transition.
	MarkNotificationSent(id, deliveryMessageID, deliveryMethod string) error
	// MarkNotificationFailed records the terminal failed transition.
	MarkNotificationFailed(id, lastError string) error
	// UpdateNotificationStatus sets a non-delivery status (proxy_mode, resolved).
	UpdateNotificationStatus(id string, status models.NotificationStatus) error

	// SaveProxySession persists a proxy session and its relay mapping.
	SaveProxySession(s models.ProxySession) error
	// GetProxySessionByAdmin returns the active session for an admin phone, or nil.
	GetProxySessionByAdmin(adminPhone string) (*models.ProxySession, error)
	// GetProxySessionByCustomer returns the active session for a customer phone, or nil.
	GetProxySessionByCustomer(customerPhone string) (*models.ProxySession, error)
	// GetProxySessionBySessionID returns the active session by session id, or nil.
	GetProxySessionBySessionID(sessionID string) (*models.ProxySession, error)
	// EndProxySession deactivates a session. Returns false when no active
	// session with that id exists; ending twice is not an error.
	EndProxySession(sessionID string) (bool, error)
}

// DataStore exposes read accessors for business-scoped structured records.
// This core never writes through it.
type DataStore interface {
	GetBusiness(ctx context.Context, businessID string) (*models.Business, error)
	GetBusinessByChannelID(ctx context.Context, channelID string) (*models.Business, error)
	GetServices(ctx context.Context, businessID string) ([]models.Service, error)
	GetCalendarSettings(ctx context.Context, businessID string) (*models.CalendarSettings, error)
	GetAvailability(ctx context.Context, businessID, fromDate, toDate string) ([]models.AvailabilityDay, error)
	GetStaff(ctx context.Context, businessID string) ([]models.StaffMember, error)
	// ListDocuments returns the pre-ingested document corpus for a business,
	// including stored embeddings.
	ListDocuments(ctx context.Context, businessID string) ([]models.Document, error)
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL-style connection strings
// and "sqlite" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
