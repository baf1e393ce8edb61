// Package models defines the core data structures for Bookline.
//
// It includes types for conversation goals, flow decisions, retrieval results,
// proxy sessions and notifications, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// DecisionAction defines the navigation action the flow decision engine
// classified the user's message into.
type DecisionAction string

const (
	// ActionContinue stays on the current step (questions, chit-chat, partial answers).
	ActionContinue DecisionAction = "continue"
	// ActionAdvance moves to the next step of the active flow.
	ActionAdvance DecisionAction = "advance"
	// ActionGoBack navigates back to an earlier step to modify a chosen value.
	ActionGoBack DecisionAction = "go_back"
	// ActionSwitchTopic abandons the current goal and starts a new one.
	ActionSwitchTopic DecisionAction = "switch_topic"
	// ActionRestart resets the active flow to its first step.
	ActionRestart DecisionAction = "restart"
)

// IsValidDecisionAction checks if the given action is supported.
func IsValidDecisionAction(a DecisionAction) bool {
	switch a {
	case ActionContinue, ActionAdvance, ActionGoBack, ActionSwitchTopic, ActionRestart:
		return true
	default:
		return false
	}
}

// FallbackConfidence is the confidence assigned to the fail-safe decision
// emitted when the classifier is unavailable or returns malformed output.
const FallbackConfidence = 0.3

// ConversationDecision is the ephemeral result of classifying one user message
// against the active goal. Produced fresh each turn, never persisted.
type ConversationDecision struct {
	Action        DecisionAction    `json:"action"`
	TargetStep    string            `json:"targetStep,omitempty"`
	NewGoalType   string            `json:"newGoalType,omitempty"`
	NewGoalAction string            `json:"newGoalAction,omitempty"`
	Confidence    float64           `json:"confidence"`
	Reasoning     string            `json:"reasoning,omitempty"`
	ExtractedData map[string]string `json:"extractedData,omitempty"`
}

// FallbackDecision returns the fixed fail-safe decision. A failed
// classification must never block the conversation.
func FallbackDecision() ConversationDecision {
	return ConversationDecision{
		Action:     ActionContinue,
		Confidence: FallbackConfidence,
		Reasoning:  "classifier unavailable, defaulting to continue",
	}
}

// GoalStatus represents the lifecycle state of a goal.
type GoalStatus string

const (
	GoalStatusInProgress GoalStatus = "inProgress"
	GoalStatusCompleted  GoalStatus = "completed"
	GoalStatusCancelled  GoalStatus = "cancelled"
)

// IsTerminal reports whether the status ends the goal's lifecycle.
func (s GoalStatus) IsTerminal() bool {
	return s == GoalStatusCompleted || s == GoalStatusCancelled
}

// GoalType identifies the kind of multi-step task a goal drives.
type GoalType string

const (
	GoalTypeServiceBooking GoalType = "serviceBooking"
	GoalTypeServiceInquiry GoalType = "serviceInquiry"
)

// GoalAction qualifies what the goal does with its subject.
type GoalAction string

const (
	GoalActionCreate  GoalAction = "create"
	GoalActionInquire GoalAction = "inquire"
)

// Message is a single entry in a conversation history.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Goal is the per-conversation record of the active multi-step task.
// At most one in-progress goal exists per conversation.
type Goal struct {
	FlowKey          string            `json:"flowKey"`
	CurrentStepIndex int               `json:"currentStepIndex"`
	GoalType         GoalType          `json:"goalType"`
	GoalAction       GoalAction        `json:"goalAction"`
	GoalStatus       GoalStatus        `json:"goalStatus"`
	CollectedData    map[string]string `json:"collectedData"`
	MessageHistory   []Message         `json:"messageHistory"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// ComprehensiveContext is the read-only snapshot assembled for each turn.
// Rebuilt every turn, never persisted. All fields are optional.
type ComprehensiveContext struct {
	Customer          CustomerInfo      `json:"customer"`
	Business          BusinessInfo      `json:"business"`
	CurrentBooking    BookingSnapshot   `json:"currentBooking"`
	AvailableServices []Service         `json:"availableServices"`
	MessageHistory    []Message         `json:"messageHistory"`
	PreviousGoals     []Goal            `json:"previousGoals"`
	Preferences       map[string]string `json:"preferences"`
}

// CustomerInfo identifies the customer side of a conversation.
type CustomerInfo struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// BusinessInfo identifies the business side of a conversation.
type BusinessInfo struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	WhatsAppNumber string `json:"whatsappNumber,omitempty"`
}

// BookingSnapshot captures the booking-in-progress fields of the active goal.
type BookingSnapshot struct {
	Step    string `json:"step,omitempty"`
	Service string `json:"service,omitempty"`
	Date    string `json:"date,omitempty"`
	Time    string `json:"time,omitempty"`
	Address string `json:"address,omitempty"`
	Price   string `json:"price,omitempty"`
}

// ResultType tags where a retrieval result came from.
type ResultType string

const (
	ResultTypeBusiness     ResultType = "business"
	ResultTypeService      ResultType = "service"
	ResultTypeAvailability ResultType = "availability"
	ResultTypeDocument     ResultType = "document"
)

// VectorSearchResult is the transient output of the retrieval engine.
type VectorSearchResult struct {
	DocumentID      string     `json:"documentId"`
	Content         string     `json:"content"`
	Category        string     `json:"category"`
	SimilarityScore float64    `json:"similarityScore"`
	Source          string     `json:"source"`
	ConfidenceScore float64    `json:"confidenceScore"`
	Type            ResultType `json:"type"`
}

// EscalationReason explains why an escalation was triggered.
type EscalationReason string

const (
	EscalationReasonNone         EscalationReason = "none"
	EscalationReasonHumanRequest EscalationReason = "human_request"
	EscalationReasonAggression   EscalationReason = "aggression"
)

// EscalationAnalysis is the stateless result of analyzing one user message.
type EscalationAnalysis struct {
	Escalate bool             `json:"escalate"`
	Reason   EscalationReason `json:"reason"`
	Summary  string           `json:"summary_for_agent,omitempty"`
}

// ProxySessionDuration is how long a proxy session may stay active before it
// is lazily expired on next access.
const ProxySessionDuration = 24 * time.Hour

// ProxySession links an admin and a customer while a human agent handles the
// conversation. Jointly owned by a Notification record and the relay mapping.
type ProxySession struct {
	NotificationID    string    `json:"notificationId"`
	SessionID         string    `json:"sessionId"`
	AdminPhone        string    `json:"adminPhone"`
	CustomerPhone     string    `json:"customerPhone"`
	BusinessChannelID string    `json:"businessChannelId"`
	IsActive          bool      `json:"isActive"`
	StartedAt         time.Time `json:"startedAt"`
	TemplateMessageID string    `json:"templateMessageId,omitempty"`
}

// Expired reports whether the session has exceeded its maximum duration.
func (p *ProxySession) Expired(now time.Time) bool {
	return now.Sub(p.StartedAt) > ProxySessionDuration
}

// ProxyRouteResult reports how the proxy router handled a message.
type ProxyRouteResult struct {
	WasHandled       bool   `json:"wasHandled"`
	MessageForwarded bool   `json:"messageForwarded"`
	ProxyEnded       bool   `json:"proxyEnded"`
	Response         string `json:"response,omitempty"`
}

// NotificationStatus represents the delivery status of a notification.
type NotificationStatus string

const (
	// NotificationStatusPending is set before any delivery attempt.
	NotificationStatusPending NotificationStatus = "pending"
	// NotificationStatusSent indicates a provider accepted the message.
	NotificationStatusSent NotificationStatus = "sent"
	// NotificationStatusFailed indicates every provider was exhausted.
	NotificationStatusFailed NotificationStatus = "failed"
	// NotificationStatusProxyMode marks the notification as carrying an
	// active human-takeover session.
	NotificationStatusProxyMode NotificationStatus = "proxy_mode"
	// NotificationStatusResolved marks a proxy notification whose session ended.
	NotificationStatusResolved NotificationStatus = "resolved"
)

// NotificationType classifies what a notification is about.
type NotificationType string

const (
	NotificationTypeBooking    NotificationType = "booking"
	NotificationTypeEscalation NotificationType = "escalation"
	NotificationTypeSystem     NotificationType = "system"
)

// IsValidNotificationType checks if the given notification type is supported.
func IsValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationTypeBooking, NotificationTypeEscalation, NotificationTypeSystem:
		return true
	default:
		return false
	}
}

// Notification is the persisted audit record of one delivery to one recipient.
// Created in pending before any attempt; exactly one terminal transition.
type Notification struct {
	ID                string             `json:"id"`
	BusinessID        string             `json:"businessId"`
	ChatSessionID     string             `json:"chatSessionId,omitempty"`
	RecipientPhone    string             `json:"recipientPhone,omitempty"`
	Message           string             `json:"message"`
	Status            NotificationStatus `json:"status"`
	NotificationType  NotificationType   `json:"notificationType"`
	DeliveryMessageID string             `json:"deliveryMessageId,omitempty"`
	DeliveryMethod    string             `json:"deliveryMethod,omitempty"`
	LastError         string             `json:"lastError,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// NotificationContent is the payload handed to providers. Data carries
// template parameters for channels that require templates.
type NotificationContent struct {
	Title   string            `json:"title,omitempty"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

// NotificationRecipient is derived per dispatch from staff records; not persisted.
type NotificationRecipient struct {
	UserID           string `json:"userId"`
	Name             string `json:"name,omitempty"`
	PhoneNumber      string `json:"phoneNumber"`
	Email            string `json:"email,omitempty"`
	Role             string `json:"role"`
	IsBusinessAdmin  bool   `json:"isBusinessAdmin"`
	IsSuperAdmin     bool   `json:"isSuperAdmin"`
	PreferredChannel string `json:"preferredChannel,omitempty"`
}

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient        = errors.New("recipient cannot be empty")
	ErrEmptyMessage          = errors.New("message cannot be empty")
	ErrInvalidNotification   = errors.New("invalid notification type")
	ErrNoActiveProxySession  = errors.New("no active proxy session")
	ErrGoalNotFound          = errors.New("goal not found")
	ErrGoalAlreadyInProgress = errors.New("conversation already has an in-progress goal")
	ErrUnknownFlowKey        = errors.New("unknown flow key")
	ErrAllProvidersFailed    = errors.New("all notification providers failed")
)
