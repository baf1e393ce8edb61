package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/bookline/bookline/internal/models"
)

// InMemoryStore is a mutex-guarded Store and DataStore used in tests and
// local development. Seed* methods populate the structured catalog.
type InMemoryStore struct {
	mu            sync.RWMutex
	goals         map[string]models.Goal
	notifications map[string]models.Notification
	proxySessions map[string]models.ProxySession

	businesses map[string]models.Business
	services   map[string][]models.Service
	calendars  map[string]models.CalendarSettings
	avail      map[string][]models.AvailabilityDay
	staff      map[string][]models.StaffMember
	documents  map[string][]models.Document
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		goals:         make(map[string]models.Goal),
		notifications: make(map[string]models.Notification),
		proxySessions: make(map[string]models.ProxySession),
		businesses:    make(map[string]models.Business),
		services:      make(map[string][]models.Service),
		calendars:     make(map[string]models.CalendarSettings),
		avail:         make(map[string][]models.AvailabilityDay),
		staff:         make(map[string][]models.StaffMember),
		documents:     make(map[string][]models.Document),
	}
}

func (s *InMemoryStore) GetGoal(conversationID string) (*models.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[conversationID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (s *InMemoryStore) SaveGoal(conversationID string, goal models.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[conversationID] = goal
	return nil
}

func (s *InMemoryStore) CreateNotification(n models.Notification) error {
	if n.ID == "" {
		return models.ErrInvalidNotification
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = n
	return nil
}

func (s *InMemoryStore) GetNotification(id string) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *InMemoryStore) MarkNotificationSent(id, deliveryMessageID, deliveryMethod string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return fmt.Errorf("InMemoryStore.MarkNotificationSent: notification %s not found", id)
	}
	n.Status = models.NotificationStatusSent
	n.DeliveryMessageID = deliveryMessageID
	n.DeliveryMethod = deliveryMethod
	s.notifications[id] = n
	return nil
}

func (s *InMemoryStore) MarkNotificationFailed(id, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return fmt.Errorf("InMemoryStore.MarkNotificationFailed: notification %s not found", id)
	}
	n.Status = models.NotificationStatusFailed
	n.LastError = lastError
	s.notifications[id] = n
	return nil
}

func (s *InMemoryStore) UpdateNotificationStatus(id string, status models.NotificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return fmt.Errorf("InMemoryStore.UpdateNotificationStatus: notification %s not found", id)
	}
	n.Status = status
	s.notifications[id] = n
	return nil
}

func (s *InMemoryStore) SaveProxySession(sess models.ProxySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proxySessions[sess.SessionID] = sess
	return nil
}

func (s *InMemoryStore) GetProxySessionByAdmin(adminPhone string) (*models.ProxySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.proxySessions {
		if sess.IsActive && sess.AdminPhone == adminPhone {
			out := sess
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetProxySessionByCustomer(customerPhone string) (*models.ProxySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.proxySessions {
		if sess.IsActive && sess.CustomerPhone == customerPhone {
			out := sess
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetProxySessionBySessionID(sessionID string) (*models.ProxySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.proxySessions[sessionID]
	if !ok || !sess.IsActive {
		return nil, nil
	}
	out := sess
	return &out, nil
}

func (s *InMemoryStore) EndProxySession(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.proxySessions[sessionID]
	if !ok || !sess.IsActive {
		return false, nil
	}
	sess.IsActive = false
	s.proxySessions[sessionID] = sess
	return true, nil
}

// ListNotifications returns a copy of every stored notification, in no
// particular order.
func (s *InMemoryStore) ListNotifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	return out
}

// SeedBusiness registers a business record for catalog lookups.
func (s *InMemoryStore) SeedBusiness(b models.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[b.ID] = b
}

// SeedServices replaces the service list for a business.
func (s *InMemoryStore) SeedServices(businessID string, svcs []models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[businessID] = svcs
}

// SeedCalendarSettings sets calendar settings for a business.
func (s *InMemoryStore) SeedCalendarSettings(businessID string, cs models.CalendarSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars[businessID] = cs
}

// SeedAvailability replaces the availability days for a business.
func (s *InMemoryStore) SeedAvailability(businessID string, days []models.AvailabilityDay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avail[businessID] = days
}

// SeedStaff replaces the staff list for a business.
func (s *InMemoryStore) SeedStaff(businessID string, members []models.StaffMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[businessID] = members
}

// SeedDocuments replaces the document corpus for a business.
func (s *InMemoryStore) SeedDocuments(businessID string, docs []models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[businessID] = docs
}

func (s *InMemoryStore) GetBusiness(_ context.Context, businessID string) (*models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[businessID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *InMemoryStore) GetBusinessByChannelID(_ context.Context, channelID string) (*models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.businesses {
		if b.WhatsAppChannelID == channelID {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetServices(_ context.Context, businessID string) ([]models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Service(nil), s.services[businessID]...), nil
}

func (s *InMemoryStore) GetCalendarSettings(_ context.Context, businessID string) (*models.CalendarSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.calendars[businessID]
	if !ok {
		return nil, nil
	}
	return &cs, nil
}

func (s *InMemoryStore) GetAvailability(_ context.Context, businessID, fromDate, toDate string) ([]models.AvailabilityDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AvailabilityDay
	for _, d := range s.avail[businessID] {
		if (fromDate == "" || d.Date >= fromDate) && (toDate == "" || d.Date <= toDate) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetStaff(_ context.Context, businessID string) ([]models.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.StaffMember(nil), s.staff[businessID]...), nil
}

func (s *InMemoryStore) ListDocuments(_ context.Context, businessID string) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Document(nil), s.documents[businessID]...), nil
}
