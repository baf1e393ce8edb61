package store

import (
	"database/sql"

	"github.com/bookline/bookline/internal/models"
)

// nilIfEmpty returns nil for empty strings so optional columns store NULL.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var chatSessionID, recipientPhone, deliveryMessageID, deliveryMethod, lastError sql.NullString
	var status, notificationType string
	err := row.Scan(&n.ID, &n.BusinessID, &chatSessionID, &recipientPhone, &n.Message,
		&status, &notificationType, &deliveryMessageID, &deliveryMethod, &lastError,
		&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.ChatSessionID = chatSessionID.String
	n.RecipientPhone = recipientPhone.String
	n.Status = models.NotificationStatus(status)
	n.NotificationType = models.NotificationType(notificationType)
	n.DeliveryMessageID = deliveryMessageID.String
	n.DeliveryMethod = deliveryMethod.String
	n.LastError = lastError.String
	return &n, nil
}

func scanProxySession(row rowScanner) (*models.ProxySession, error) {
	var sess models.ProxySession
	var notificationID, businessChannelID, templateMessageID sql.NullString
	err := row.Scan(&sess.SessionID, &notificationID, &sess.AdminPhone, &sess.CustomerPhone,
		&businessChannelID, &sess.IsActive, &sess.StartedAt, &templateMessageID)
	if err != nil {
		return nil, err
	}
	sess.NotificationID = notificationID.String
	sess.BusinessChannelID = businessChannelID.String
	sess.TemplateMessageID = templateMessageID.String
	return &sess, nil
}
