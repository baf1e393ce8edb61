// Package store provides storage backends for Bookline.
//
// This file implements a PostgreSQL-backed store. It serves both the mutable
// conversation records (Store) and the read-only business catalog (DataStore).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/bookline/bookline/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("PostgresStore.NewPostgresStore: failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgresStore.NewPostgresStore: ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresStore.NewPostgresStore: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore.NewPostgresStore: migrations applied")

	return &PostgresStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetGoal(conversationID string) (*models.Goal, error) {
	var raw []byte
	err := s.db.QueryRow("SELECT goal_json FROM goals WHERE conversation_id = $1", conversationID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	var goal models.Goal
	if err := json.Unmarshal(raw, &goal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal goal: %w", err)
	}
	return &goal, nil
}

func (s *PostgresStore) SaveGoal(conversationID string, goal models.Goal) error {
	raw, err := json.Marshal(goal)
	if err != nil {
		return fmt.Errorf("failed to marshal goal: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO goals (conversation_id, goal_json, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id) DO UPDATE SET goal_json = EXCLUDED.goal_json, updated_at = EXCLUDED.updated_at`,
		conversationID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateNotification(n models.Notification) error {
	if n.ID == "" {
		return models.ErrInvalidNotification
	}
	_, err := s.db.Exec(`INSERT INTO notifications
		(id, business_id, chat_session_id, recipient_phone, message, status, notification_type, delivery_message_id, delivery_method, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.BusinessID, nilIfEmpty(n.ChatSessionID), nilIfEmpty(n.RecipientPhone), n.Message,
		string(n.Status), string(n.NotificationType), nilIfEmpty(n.DeliveryMessageID), nilIfEmpty(n.DeliveryMethod),
		nilIfEmpty(n.LastError), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNotification(id string) (*models.Notification, error) {
	row := s.db.QueryRow(`SELECT id, business_id, chat_session_id, recipient_phone, message, status, notification_type,
		delivery_message_id, delivery_method, last_error, created_at, updated_at FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MarkNotificationSent(id, deliveryMessageID, deliveryMethod string) error {
	return s.updateNotification(id,
		"UPDATE notifications SET status = $1, delivery_message_id = $2, delivery_method = $3, updated_at = $4 WHERE id = $5",
		string(models.NotificationStatusSent), deliveryMessageID, deliveryMethod, time.Now().UTC(), id)
}

func (s *PostgresStore) MarkNotificationFailed(id, lastError string) error {
	return s.updateNotification(id,
		"UPDATE notifications SET status = $1, last_error = $2, updated_at = $3 WHERE id = $4",
		string(models.NotificationStatusFailed), lastError, time.Now().UTC(), id)
}

func (s *PostgresStore) UpdateNotificationStatus(id string, status models.NotificationStatus) error {
	return s.updateNotification(id,
		"UPDATE notifications SET status = $1, updated_at = $2 WHERE id = $3",
		string(status), time.Now().UTC(), id)
}

func (s *PostgresStore) updateNotification(id, query string, args ...interface{}) error {
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

func (s *PostgresStore) SaveProxySession(sess models.ProxySession) error {
	_, err := s.db.Exec(`INSERT INTO proxy_sessions
		(session_id, notification_id, admin_phone, customer_phone, business_channel_id, is_active, started_at, template_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET is_active = EXCLUDED.is_active, template_message_id = EXCLUDED.template_message_id`,
		sess.SessionID, nilIfEmpty(sess.NotificationID), sess.AdminPhone, sess.CustomerPhone,
		nilIfEmpty(sess.BusinessChannelID), sess.IsActive, sess.StartedAt, nilIfEmpty(sess.TemplateMessageID))
	if err != nil {
		return fmt.Errorf("failed to save proxy session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProxySessionByAdmin(adminPhone string) (*models.ProxySession, error) {
	return s.queryProxySession("admin_phone = $1 AND is_active", adminPhone)
}

func (s *PostgresStore) GetProxySessionByCustomer(customerPhone string) (*models.ProxySession, error) {
	return s.queryProxySession("customer_phone = $1 AND is_active", customerPhone)
}

func (s *PostgresStore) GetProxySessionBySessionID(sessionID string) (*models.ProxySession, error) {
	return s.queryProxySession("session_id = $1 AND is_active", sessionID)
}

func (s *PostgresStore) queryProxySession(where string, arg interface{}) (*models.ProxySession, error) {
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

func (s *PostgresStore) EndProxySession(sessionID string) (bool, error) {
	res, err := s.db.Exec("UPDATE proxy_sessions SET is_active = FALSE WHERE session_id = $1 AND is_active", sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to end proxy session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check proxy session update: %w", err)
	}
	return affected > 0, nil
}

// Catalog accessors. The catalog is written by the management surface; the
// conversation core only reads it.

func (s *PostgresStore) GetBusiness(ctx context.Context, businessID string) (*models.Business, error) {
	row := s.db.QueryRowContext(ctx, businessQuery+" WHERE id = $1", businessID)
	return scanBusiness(row)
}

func (s *PostgresStore) GetBusinessByChannelID(ctx context.Context, channelID string) (*models.Business, error) {
	row := s.db.QueryRowContext(ctx, businessQuery+" WHERE whatsapp_channel_id = $1", channelID)
	return scanBusiness(row)
}

const businessQuery = `SELECT id, name, phone, email, whatsapp_number, whatsapp_channel_id, address, website_url,
	time_zone, deposit_type, deposit_percentage, deposit_fixed_amount, preferred_payment, created_at FROM businesses`

func scanBusiness(row rowScanner) (*models.Business, error) {
	var b models.Business
	var phone, email, waNumber, waChannel, address, website, tz, depositType, payment sql.NullString
	var depositPct, depositFixed sql.NullFloat64
	err := row.Scan(&b.ID, &b.Name, &phone, &email, &waNumber, &waChannel, &address, &website,
		&tz, &depositType, &depositPct, &depositFixed, &payment, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	b.Phone = phone.String
	b.Email = email.String
	b.WhatsAppNumber = waNumber.String
	b.WhatsAppChannelID = waChannel.String
	b.Address = address.String
	b.WebsiteURL = website.String
	b.TimeZone = tz.String
	b.DepositType = depositType.String
	b.DepositPercentage = depositPct.Float64
	b.DepositFixedAmount = depositFixed.Float64
	b.PreferredPayment = payment.String
	return &b, nil
}

func (s *PostgresStore) GetServices(ctx context.Context, businessID string) ([]models.Service, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, business_id, name, description, duration_estimate, pricing_type,
		fixed_price, rate_per_minute, base_charge, included_minutes, mobile FROM services WHERE business_id = $1 ORDER BY name`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to get services: %w", err)
	}
	defer rows.Close()
	var out []models.Service
	for rows.Next() {
		var svc models.Service
		var description sql.NullString
		var duration, included sql.NullInt64
		var pricingType string
		var fixedPrice, ratePerMinute, baseCharge sql.NullFloat64
		if err := rows.Scan(&svc.ID, &svc.BusinessID, &svc.Name, &description, &duration, &pricingType,
			&fixedPrice, &ratePerMinute, &baseCharge, &included, &svc.Mobile); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		svc.Description = description.String
		svc.DurationEstimate = int(duration.Int64)
		svc.PricingType = models.PricingType(pricingType)
		svc.FixedPrice = fixedPrice.Float64
		svc.RatePerMinute = ratePerMinute.Float64
		svc.BaseCharge = baseCharge.Float64
		svc.IncludedMinutes = int(included.Int64)
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetCalendarSettings(ctx context.Context, businessID string) (*models.CalendarSettings, error) {
	var cs models.CalendarSettings
	var hoursRaw []byte
	var tz sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT business_id, working_hours, timezone, buffer_time FROM calendar_settings WHERE business_id = $1", businessID).
		Scan(&cs.BusinessID, &hoursRaw, &tz, &cs.BufferTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar settings: %w", err)
	}
	if len(hoursRaw) > 0 {
		if err := json.Unmarshal(hoursRaw, &cs.WorkingHours); err != nil {
			return nil, fmt.Errorf("failed to unmarshal working hours: %w", err)
		}
	}
	cs.Timezone = tz.String
	return &cs, nil
}

func (s *PostgresStore) GetAvailability(ctx context.Context, businessID, fromDate, toDate string) ([]models.AvailabilityDay, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT day, slots FROM availability_days
		WHERE business_id = $1 AND day >= $2::date AND day <= $3::date ORDER BY day`, businessID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}
	defer rows.Close()
	var out []models.AvailabilityDay
	for rows.Next() {
		var day time.Time
		var slotsRaw []byte
		if err := rows.Scan(&day, &slotsRaw); err != nil {
			return nil, fmt.Errorf("failed to scan availability day: %w", err)
		}
		d := models.AvailabilityDay{Date: day.Format("2006-01-02")}
		if err := json.Unmarshal(slotsRaw, &d.Slots); err != nil {
			return nil, fmt.Errorf("failed to unmarshal slots: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetStaff(ctx context.Context, businessID string) ([]models.StaffMember, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, business_id, name, phone, email, role, preferred_channel
		FROM staff WHERE business_id = $1`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	defer rows.Close()
	var out []models.StaffMember
	for rows.Next() {
		var m models.StaffMember
		var name, phone, email, channel sql.NullString
		if err := rows.Scan(&m.ID, &m.BusinessID, &name, &phone, &email, &m.Role, &channel); err != nil {
			return nil, fmt.Errorf("failed to scan staff member: %w", err)
		}
		m.Name = name.String
		m.PhoneNumber = phone.String
		m.Email = email.String
		m.PreferredChannel = channel.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListDocuments(ctx context.Context, businessID string) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, business_id, content, category, source, embedding
		FROM documents WHERE business_id = $1`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()
	var out []models.Document
	for rows.Next() {
		var d models.Document
		var category, source sql.NullString
		var embeddingRaw []byte
		if err := rows.Scan(&d.ID, &d.BusinessID, &d.Content, &category, &source, &embeddingRaw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.Category = category.String
		d.Source = source.String
		if len(embeddingRaw) > 0 {
			if err := json.Unmarshal(embeddingRaw, &d.Embedding); err != nil {
				return nil, fmt.Errorf("failed to unmarshal document embedding: %w", err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
