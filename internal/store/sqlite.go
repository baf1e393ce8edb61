// Package store provides storage backends for Bookline.
//
// This file implements an SQLite-backed store for goals, notifications and
// proxy sessions.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/bookline/bookline/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: migrations applied")

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetGoal(conversationID string) (*models.Goal, error) {
	var raw string
	err := s.db.QueryRow("SELECT goal_json FROM goals WHERE conversation_id = ?", conversationID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	var goal models.Goal
	if err := json.Unmarshal([]byte(raw), &goal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal goal: %w", err)
	}
	return &goal, nil
}

func (s *SQLiteStore) SaveGoal(conversationID string, goal models.Goal) error {
	raw, err := json.Marshal(goal)
	if err != nil {
		return fmt.Errorf("failed to marshal goal: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO goals (conversation_id, goal_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET goal_json = excluded.goal_json, updated_at = excluded.updated_at`,
		conversationID, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateNotification(n models.Notification) error {
	if n.ID == "" {
		return models.ErrInvalidNotification
	}
	_, err := s.db.Exec(`INSERT INTO notifications
		(id, business_id, chat_session_id, recipient_phone, message, status, notification_type, delivery_message_id, delivery_method, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.BusinessID, nilIfEmpty(n.ChatSessionID), nilIfEmpty(n.RecipientPhone), n.Message,
		string(n.Status), string(n.NotificationType), nilIfEmpty(n.DeliveryMessageID), nilIfEmpty(n.DeliveryMethod),
		nilIfEmpty(n.LastError), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetNotification(id string) (*models.Notification, error) {
	row := s.db.QueryRow(`SELECT id, business_id, chat_session_id, recipient_phone, message, status, notification_type,
		delivery_message_id, delivery_method, last_error, created_at, updated_at FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) MarkNotificationSent(id, deliveryMessageID, deliveryMethod string) error {
	return s.updateNotification(id,
		"UPDATE notifications SET status = ?, delivery_message_id = ?, delivery_method = ?, updated_at = ? WHERE id = ?",
		string(models.NotificationStatusSent), deliveryMessageID, deliveryMethod, time.Now().UTC(), id)
}

func (s *SQLiteStore) MarkNotificationFailed(id, lastError string) error {
	return s.updateNotification(id,
		"UPDATE notifications SET status = ?, last_error = ?, updated_at = ? WHERE id = ?",
		string(models.NotificationStatusFailed), lastError, time.Now().UTC(), id)
}

func (s *SQLiteStore) UpdateNotificationStatus(id string, status models.NotificationStatus) error {
	return s.updateNotification(id,
		"UPDATE notifications SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id)
}

func (s *SQLiteStore) updateNotification(id, query string, args ...interface{}) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check notification update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) SaveProxySession(sess models.ProxySession) error {
	_, err := s.db.Exec(`INSERT INTO proxy_sessions
		(session_id, notification_id, admin_phone, customer_phone, business_channel_id, is_active, started_at, template_message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET is_active = excluded.is_active, template_message_id = excluded.template_message_id`,
		sess.SessionID, nilIfEmpty(sess.NotificationID), sess.AdminPhone, sess.CustomerPhone,
		nilIfEmpty(sess.BusinessChannelID), sess.IsActive, sess.StartedAt, nilIfEmpty(sess.TemplateMessageID))
	if err != nil {
		return fmt.Errorf("failed to save proxy session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProxySessionByAdmin(adminPhone string) (*models.ProxySession, error) {
	return s.queryProxySession("admin_phone = ? AND is_active = 1", adminPhone)
}

func (s *SQLiteStore) GetProxySessionByCustomer(customerPhone string) (*models.ProxySession, error) {
	return s.queryProxySession("customer_phone = ? AND is_active = 1", customerPhone)
}

func (s *SQLiteStore) GetProxySessionBySessionID(sessionID string) (*models.ProxySession, error) {
	return s.queryProxySession("session_id = ? AND is_active = 1", sessionID)
}

func (s *SQLiteStore) queryProxySession(where string, arg interface{}) (*models.ProxySession, error) {
	row := s.db.QueryRow(`SELECT session_id, notification_id, admin_phone, customer_phone, business_channel_id, is_active, started_at, template_message_id
		FROM proxy_sessions WHERE `+where+` ORDER BY started_at DESC LIMIT 1`, arg)
	sess, err := scanProxySession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proxy session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) EndProxySession(sessionID string) (bool, error) {
	res, err := s.db.Exec("UPDATE proxy_sessions SET is_active = 0 WHERE session_id = ? AND is_active = 1", sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to end proxy session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check proxy session update: %w", err)
	}
	return affected > 0, nil
}
