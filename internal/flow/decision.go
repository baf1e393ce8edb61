package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bookline/bookline/internal/genai"
	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/util"
)

// Decision model parameters. Low temperature keeps routing stable; the
// response is a single small JSON object.
const (
	DecisionTemperature = 0.3
	DecisionMaxTokens   = 300
	// DecisionHistoryWindow is how many recent messages the model sees.
	DecisionHistoryWindow = 6
)

const decisionSystemPrompt = `You are an expert conversation flow analyst for a booking system. Your task is to analyze a user's message and determine the best conversation flow action.

**PRIMARY RULE: QUESTIONS = CONTINUE, ACTIONS = SWITCH, CHANGES = GO BACK**

**CONVERSATION CONTINUITY IS CRITICAL:**
- Consider the FULL conversation history - messages are often related
- If user just greeted or started talking, questions are natural follow-ups
- Multiple related messages should flow as "continue" until explicit booking action
- Don't interpret information-seeking as wanting to "switch topics"

INTENT CLASSIFICATION:
1. **QUESTIONS (any question) -> "continue"**
   - Questions about services, prices, availability, policies, etc.
   - Even if asking about different services than current booking
   - Pattern: Contains question words or ends with "?"

2. **NAVIGATION BACK TO MODIFY CURRENT BOOKING -> "go_back"**
   - User wants to change/modify something in their current booking
   - Service changes: "change service", "different service", "pick another service"
   - Time changes: "change time", "different time", "pick another time"
   - Location changes: "change location", "different address", "change address"
   - Key pattern: user wants to MODIFY the existing booking, not start fresh
   - Target step should be specified (e.g. "selectService" for service changes)

3. **EXPLICIT NEW BOOKING ACTIONS -> "switch_topic"**
   - Clear commands to book something COMPLETELY NEW (not modify current)
   - "I want to book [service]", "Book me a [service]", "Let's book [service]"
   - Must contain ACTION words: book, schedule, appointment, reserve

4. **RESTART ENTIRE PROCESS -> "restart"**
   - "restart", "start over", "let's start fresh", "begin again"

5. **DIRECT ANSWERS -> "continue" or "advance"**
   - Answering current step question
   - Providing requested information

**CONTEXT ANALYSIS FOR GO_BACK:**
- If user is currently in service selection and says "change service" -> interpret as clarification, use "continue"
- If user has already selected a service and says "change service" -> use "go_back" with targetStep "selectService"

**CONFIDENCE SCORING:**
- High confidence (0.8+): Clear action words present or obvious navigation intent
- Medium confidence (0.5-0.7): Context suggests but not explicit
- Low confidence (0.3-0.5): Ambiguous intent

**CURRENT CONTEXT:**
- Current Goal: %s
- Current Step: %s
- Selected Service: %s
- Selected Date: %s
- Selected Time: %s

Return ONLY JSON:
{
  "action": "continue|advance|go_back|switch_topic|restart",
  "targetStep": "stepName (if go_back)",
  "newGoalType": "serviceBooking|serviceInquiry (if switch_topic)",
  "newGoalAction": "create|inquire (if switch_topic)",
  "confidence": 0.8,
  "reasoning": "Brief explanation of decision",
  "extractedData": {}
}`

// Engine decides the flow action for each inbound customer message.
type Engine struct {
	genAI genai.ClientInterface
}

// NewEngine creates a decision engine backed by the given GenAI client.
func NewEngine(genAI genai.ClientInterface) *Engine {
	return &Engine{genAI: genAI}
}

// Decide analyzes a user message against the active goal and returns the flow
// action. Any model, parse or validation failure yields the safe fallback
// decision instead of an error.
func (e *Engine) Decide(ctx context.Context, userMessage string, goal *models.Goal, history []models.Message) models.ConversationDecision {
	currentStep := "none"
	collected := map[string]string{}
	goalType := "none"
	if goal != nil {
		goalType = string(goal.GoalType)
		collected = goal.CollectedData
		if steps := Blueprints[goal.FlowKey]; goal.CurrentStepIndex >= 0 && goal.CurrentStepIndex < len(steps) {
			currentStep = steps[goal.CurrentStepIndex]
		}
	}

	systemPrompt := fmt.Sprintf(decisionSystemPrompt,
		goalType, currentStep,
		valueOrNone(collected["selectedService"]),
		valueOrNone(collected["selectedDate"]),
		valueOrNone(collected["selectedTime"]))

	userPrompt := fmt.Sprintf("CONVERSATION HISTORY:\n%s\n\nCURRENT USER MESSAGE: %q\n\nAnalyze this message and determine the appropriate conversation flow action.",
		formatHistory(history, DecisionHistoryWindow), userMessage)

	response, err := e.genAI.Generate(ctx, systemPrompt, userPrompt, DecisionTemperature, DecisionMaxTokens)
	if err != nil {
		slog.Warn("Engine.Decide: model call failed, using fallback decision", "error", err)
		return models.FallbackDecision()
	}

	decision, err := parseDecision(response)
	if err != nil {
		slog.Warn("Engine.Decide: unparseable decision, using fallback", "error", err)
		return models.FallbackDecision()
	}

	// A go_back naming a step this flow does not have degrades to continue.
	if decision.Action == models.ActionGoBack && goal != nil {
		if ResolveTargetStep(goal.FlowKey, decision.TargetStep) < 0 {
			slog.Warn("Engine.Decide: unresolvable go_back target, using fallback",
				"targetStep", decision.TargetStep, "flowKey", goal.FlowKey)
			return models.FallbackDecision()
		}
	}

	slog.Debug("Engine.Decide: decision made", "action", decision.Action,
		"confidence", decision.Confidence, "targetStep", decision.TargetStep)
	return decision
}

// parseDecision decodes and validates the model's JSON decision.
func parseDecision(response string) (models.ConversationDecision, error) {
	payload := util.StripCodeFences(response)
	// Some responses wrap the object in prose; cut to the outermost braces.
	if start := strings.Index(payload, "{"); start >= 0 {
		if end := strings.LastIndex(payload, "}"); end > start {
			payload = payload[start : end+1]
		}
	}

	var decision models.ConversationDecision
	if err := json.Unmarshal([]byte(payload), &decision); err != nil {
		return models.ConversationDecision{}, fmt.Errorf("failed to parse decision JSON: %w", err)
	}
	if !models.IsValidDecisionAction(decision.Action) {
		return models.ConversationDecision{}, fmt.Errorf("invalid decision action %q", decision.Action)
	}

	if decision.Confidence == 0 {
		decision.Confidence = 0.5
	}
	if decision.Confidence < 0 {
		decision.Confidence = 0
	}
	if decision.Confidence > 1 {
		decision.Confidence = 1
	}
	if decision.Reasoning == "" {
		decision.Reasoning = "Analysis completed"
	}
	if decision.ExtractedData == nil {
		decision.ExtractedData = map[string]string{}
	}
	return decision, nil
}

func formatHistory(history []models.Message, window int) string {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	var b strings.Builder
	for i, msg := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	return b.String()
}

func valueOrNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
