package flow

import (
	"errors"
	"testing"

	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/store"
)

func newTestManager() (*GoalManager, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	return NewGoalManager(st), st
}

func TestCreateRejectsUnknownFlow(t *testing.T) {
	m, _ := newTestManager()
	_, err := m.Create("conv1", "teleportation", models.GoalTypeServiceBooking, models.GoalActionCreate)
	if !errors.Is(err, models.ErrUnknownFlowKey) {
		t.Errorf("expected ErrUnknownFlowKey, got %v", err)
	}
}

func TestCreateRejectsSecondActiveGoal(t *testing.T) {
	m, _ := newTestManager()
	if _, err := m.Create("conv1", FlowBookingMobile, models.GoalTypeServiceBooking, models.GoalActionCreate); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := m.Create("conv1", FlowBookingMobile, models.GoalTypeServiceBooking, models.GoalActionCreate)
	if !errors.Is(err, models.ErrGoalAlreadyInProgress) {
		t.Errorf("expected ErrGoalAlreadyInProgress, got %v", err)
	}
}

func TestAdvanceCompletesAtFinalStep(t *testing.T) {
	m, _ := newTestManager()
	goal, err := m.Create("conv1", FlowCustomerFAQ, models.GoalTypeServiceInquiry, models.GoalActionInquire)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	steps := len(Blueprints[FlowCustomerFAQ])
	for i := 0; i < steps; i++ {
		goal, err = m.ApplyDecision("conv1", goal, models.ConversationDecision{Action: models.ActionAdvance, Confidence: 0.9})
		if err != nil {
			t.Fatalf("advance %d failed: %v", i, err)
		}
	}
	if goal.GoalStatus != models.GoalStatusCompleted {
		t.Errorf("expected completed goal, got %s", goal.GoalStatus)
	}
	// A completed goal no longer counts as active.
	active, err := m.Active("conv1")
	if err != nil {
		t.Fatalf("active lookup failed: %v", err)
	}
	if active != nil {
		t.Error("expected no active goal after completion")
	}
}

func TestAdvanceSkipsStepsWithCollectedData(t *testing.T) {
	m, _ := newTestManager()
	goal, err := m.Create("conv1", FlowBookingNonMobile, models.GoalTypeServiceBooking, models.GoalActionCreate)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	goal.CurrentStepIndex = StepIndex(FlowBookingNonMobile, "displayNextAvailableTimes")
	goal.CollectedData["selectedDate"] = "2026-09-04"

	goal, err = m.ApplyDecision("conv1", goal, models.ConversationDecision{Action: models.ActionAdvance, Confidence: 0.9})
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	// getDate already has its date, so the flow lands past it.
	if got := Blueprints[FlowBookingNonMobile][goal.CurrentStepIndex]; got != "displayAvailableHoursPerDay" {
		t.Errorf("expected displayAvailableHoursPerDay step, got %s", got)
	}
}

func TestGoBackClearsDownstreamData(t *testing.T) {
	m, _ := newTestManager()
	goal, err := m.Create("conv1", FlowBookingMobile, models.GoalTypeServiceBooking, models.GoalActionCreate)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	goal.CurrentStepIndex = StepIndex(FlowBookingMobile, "getTime")
	goal.CollectedData["selectedService"] = "Haircut"
	goal.CollectedData["selectedDate"] = "2026-09-04"
	goal.CollectedData["selectedTime"] = "14:00"

	goal, err = m.ApplyDecision("conv1", goal, models.ConversationDecision{
		Action:     models.ActionGoBack,
		TargetStep: "selectService",
		Confidence: 0.85,
	})
	if err != nil {
		t.Fatalf("go_back failed: %v", err)
	}
	if got := Blueprints[FlowBookingMobile][goal.CurrentStepIndex]; got != "selectService" {
		t.Errorf("expected selectService step, got %s", got)
	}
	for _, key := range []string{"selectedService", "selectedDate", "selectedTime"} {
		if _, ok := goal.CollectedData[key]; ok {
			t.Errorf("expected %s cleared after go_back", key)
		}
	}
}

func TestRestartResetsToFirstStep(t *testing.T) {
	m, _ := newTestManager()
	goal, err := m.Create("conv1", FlowBookingNonMobile, models.GoalTypeServiceBooking, models.GoalActionCreate)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	goal.CurrentStepIndex = 4
	goal.CollectedData["selectedService"] = "Massage"

	goal, err = m.ApplyDecision("conv1", goal, models.ConversationDecision{Action: models.ActionRestart, Confidence: 0.9})
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if goal.CurrentStepIndex != 0 {
		t.Errorf("expected step 0 after restart, got %d", goal.CurrentStepIndex)
	}
	if _, ok := goal.CollectedData["selectedService"]; ok {
		t.Error("expected collected data cleared after restart")
	}
}

func TestSwitchTopicCancelsAndCreates(t *testing.T) {
	m, st := newTestManager()
	goal, err := m.Create("conv1", FlowBookingMobile, models.GoalTypeServiceBooking, models.GoalActionCreate)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	goal.CurrentStepIndex = 3

	fresh, err := m.ApplyDecision("conv1", goal, models.ConversationDecision{
		Action:        models.ActionSwitchTopic,
		NewGoalType:   string(models.GoalTypeServiceInquiry),
		NewGoalAction: string(models.GoalActionInquire),
		Confidence:    0.9,
	})
	if err != nil {
		t.Fatalf("switch_topic failed: %v", err)
	}
	if fresh.CurrentStepIndex != 0 {
		t.Errorf("expected fresh goal at step 0, got %d", fresh.CurrentStepIndex)
	}
	if fresh.GoalType != models.GoalTypeServiceInquiry {
		t.Errorf("expected serviceInquiry goal, got %s", fresh.GoalType)
	}
	if fresh.FlowKey != FlowCustomerFAQ {
		t.Errorf("expected inquiry goal on %s, got %s", FlowCustomerFAQ, fresh.FlowKey)
	}

	stored, err := st.GetGoal("conv1")
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if stored.GoalStatus != models.GoalStatusInProgress {
		t.Errorf("expected stored goal in progress, got %s", stored.GoalStatus)
	}
}

func TestApplyDecisionMergesExtractedData(t *testing.T) {
	m, _ := newTestManager()
	goal, err := m.Create("conv1", FlowBookingMobile, models.GoalTypeServiceBooking, models.GoalActionCreate)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	goal, err = m.ApplyDecision("conv1", goal, models.ConversationDecision{
		Action:        models.ActionContinue,
		Confidence:    0.7,
		ExtractedData: map[string]string{"selectedService": "Haircut"},
	})
	if err != nil {
		t.Fatalf("continue failed: %v", err)
	}
	if goal.CollectedData["selectedService"] != "Haircut" {
		t.Errorf("expected extracted data merged, got %v", goal.CollectedData)
	}
}
