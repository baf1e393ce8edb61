package flow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/store"
)

// GoalManager owns goal lifecycle and the state transitions that flow
// decisions produce. At most one in-progress goal exists per conversation.
type GoalManager struct {
	store store.Store
	now   func() time.Time
}

// NewGoalManager creates a goal manager over the given store.
func NewGoalManager(st store.Store) *GoalManager {
	return &GoalManager{store: st, now: time.Now}
}

// Active returns the conversation's in-progress goal, or nil when the
// conversation has no goal or only terminal ones.
func (m *GoalManager) Active(conversationID string) (*models.Goal, error) {
	goal, err := m.store.GetGoal(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load goal: %w", err)
	}
	if goal == nil || goal.GoalStatus.IsTerminal() {
		return nil, nil
	}
	return goal, nil
}

// Create starts a new goal for a conversation. Returns
// models.ErrGoalAlreadyInProgress when a non-terminal goal exists and
// models.ErrUnknownFlowKey when the flow has no blueprint.
func (m *GoalManager) Create(conversationID, flowKey string, goalType models.GoalType, goalAction models.GoalAction) (*models.Goal, error) {
	if _, ok := Blueprints[flowKey]; !ok {
		return nil, fmt.Errorf("GoalManager.Create: %w: %s", models.ErrUnknownFlowKey, flowKey)
	}
	existing, err := m.Active(conversationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrGoalAlreadyInProgress
	}

	now := m.now()
	goal := models.Goal{
		FlowKey:          flowKey,
		CurrentStepIndex: 0,
		GoalType:         goalType,
		GoalAction:       goalAction,
		GoalStatus:       models.GoalStatusInProgress,
		CollectedData:    map[string]string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.SaveGoal(conversationID, goal); err != nil {
		return nil, fmt.Errorf("failed to save new goal: %w", err)
	}
	slog.Info("GoalManager.Create: goal started", "conversationID", conversationID, "flowKey", flowKey)
	return &goal, nil
}

// ApplyDecision mutates the goal per the decided action and persists it.
// The returned goal is the post-transition state; for switch_topic it is the
// freshly created goal.
func (m *GoalManager) ApplyDecision(conversationID string, goal *models.Goal, decision models.ConversationDecision) (*models.Goal, error) {
	if goal == nil {
		return nil, models.ErrGoalNotFound
	}
	steps := Blueprints[goal.FlowKey]
	if len(steps) == 0 {
		return nil, fmt.Errorf("GoalManager.ApplyDecision: %w: %s", models.ErrUnknownFlowKey, goal.FlowKey)
	}

	// Extracted data merges in on every action.
	if goal.CollectedData == nil {
		goal.CollectedData = map[string]string{}
	}
	for k, v := range decision.ExtractedData {
		goal.CollectedData[k] = v
	}

	switch decision.Action {
	case models.ActionContinue:
		// Stay on the current step.

	case models.ActionAdvance:
		goal.CurrentStepIndex++
		// Steps whose data the user already supplied are skipped.
		for goal.CurrentStepIndex < len(steps) && StepSatisfied(steps[goal.CurrentStepIndex], goal.CollectedData) {
			goal.CurrentStepIndex++
		}
		if goal.CurrentStepIndex >= len(steps) {
			goal.CurrentStepIndex = len(steps) - 1
			goal.GoalStatus = models.GoalStatusCompleted
			slog.Info("GoalManager.ApplyDecision: goal completed", "conversationID", conversationID, "flowKey", goal.FlowKey)
		}

	case models.ActionGoBack:
		target := ResolveTargetStep(goal.FlowKey, decision.TargetStep)
		if target < 0 {
			// Unresolvable target degrades to continue.
			slog.Warn("GoalManager.ApplyDecision: go_back target not in flow, staying on step",
				"targetStep", decision.TargetStep, "flowKey", goal.FlowKey)
			break
		}
		goal.CurrentStepIndex = target
		ClearDataFrom(goal.FlowKey, target, goal.CollectedData)

	case models.ActionRestart:
		goal.CurrentStepIndex = 0
		ClearDataFrom(goal.FlowKey, 0, goal.CollectedData)

	case models.ActionSwitchTopic:
		goal.GoalStatus = models.GoalStatusCancelled
		goal.UpdatedAt = m.now()
		if err := m.store.SaveGoal(conversationID, *goal); err != nil {
			return nil, fmt.Errorf("failed to cancel goal for topic switch: %w", err)
		}
		newType := models.GoalType(decision.NewGoalType)
		if newType == "" {
			newType = models.GoalTypeServiceBooking
		}
		newAction := models.GoalAction(decision.NewGoalAction)
		if newAction == "" {
			newAction = models.GoalActionCreate
		}
		// Inquiries run the FAQ flow; a booking started from the FAQ flow
		// falls back to the non-mobile blueprint.
		newFlowKey := goal.FlowKey
		if newType == models.GoalTypeServiceInquiry {
			newFlowKey = FlowCustomerFAQ
		} else if goal.FlowKey == FlowCustomerFAQ {
			newFlowKey = FlowBookingNonMobile
		}
		return m.Create(conversationID, newFlowKey, newType, newAction)

	default:
		return nil, fmt.Errorf("GoalManager.ApplyDecision: unsupported action %q", decision.Action)
	}

	goal.UpdatedAt = m.now()
	if err := m.store.SaveGoal(conversationID, *goal); err != nil {
		return nil, fmt.Errorf("failed to save goal: %w", err)
	}
	return goal, nil
}

// AppendExchange records a user message and the bot's reply on the goal's
// history and persists it. Best-effort; a failed save is logged only.
func (m *GoalManager) AppendExchange(conversationID string, goal *models.Goal, userMessage, botMessage string) {
	if goal == nil {
		return
	}
	now := m.now()
	goal.MessageHistory = append(goal.MessageHistory,
		models.Message{Role: "user", Content: userMessage, Timestamp: now},
		models.Message{Role: "assistant", Content: botMessage, Timestamp: now},
	)
	goal.UpdatedAt = now
	if err := m.store.SaveGoal(conversationID, *goal); err != nil {
		slog.Error("GoalManager.AppendExchange: failed to save history", "error", err, "conversationID", conversationID)
	}
}
