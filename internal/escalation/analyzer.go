// Package escalation detects when a conversation must be handed to a human
// and manages the proxy sessions that relay messages between an admin and a
// customer while the bot stands down.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bookline/bookline/internal/genai"
	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/util"
)

// Analyzer model parameters.
const (
	AnalyzerTemperature = 0.1
	AnalyzerMaxTokens   = 200
	// AnalyzerHistoryWindow is how many recent messages inform the analysis.
	AnalyzerHistoryWindow = 6
)

const analyzerSystemPrompt = `You are an escalation detector for a booking assistant. Analyze the user's latest message in the context of the recent conversation and decide if a human agent must take over.

Escalate with reason "human_request" when the user clearly asks for a human, agent, representative or customer service, in any language.
Examples: "I want to speak to a person", "Connect me to an agent", "Quiero hablar con una persona", "Necesito ayuda humana".
Do NOT escalate for ordinary help requests like "can you help me?" or "I need help with booking".

Escalate with reason "aggression" when the user shows sustained frustration or hostility across the recent messages, such as repeated complaints, insults or all-caps anger. A single mildly negative message is not enough.

Otherwise do not escalate.

Return ONLY JSON:
{"escalate": true/false, "reason": "human_request|aggression|none", "summary_for_agent": "one sentence for the human agent (empty if not escalating)"}`

// Analyzer decides per message whether a human handoff is required.
// Stateless; every call is a fresh single-shot analysis.
type Analyzer struct {
	genAI genai.ClientInterface
}

// NewAnalyzer creates an escalation analyzer backed by the given GenAI client.
func NewAnalyzer(genAI genai.ClientInterface) *Analyzer {
	return &Analyzer{genAI: genAI}
}

// Analyze inspects one user message plus recent history. Fails closed: any
// model or parse error yields no escalation rather than a false handoff.
func (a *Analyzer) Analyze(ctx context.Context, message string, history []models.Message) models.EscalationAnalysis {
	none := models.EscalationAnalysis{Escalate: false, Reason: models.EscalationReasonNone}

	userPrompt := fmt.Sprintf("RECENT CONVERSATION:\n%s\n\nLATEST USER MESSAGE: %q", formatHistory(history), message)
	response, err := a.genAI.Generate(ctx, analyzerSystemPrompt, userPrompt, AnalyzerTemperature, AnalyzerMaxTokens)
	if err != nil {
		slog.Warn("Analyzer.Analyze: model call failed, not escalating", "error", err)
		return none
	}

	var result models.EscalationAnalysis
	if err := json.Unmarshal([]byte(util.StripCodeFences(response)), &result); err != nil {
		slog.Warn("Analyzer.Analyze: unparseable analysis, not escalating", "error", err)
		return none
	}

	switch result.Reason {
	case models.EscalationReasonHumanRequest, models.EscalationReasonAggression:
	case models.EscalationReasonNone, "":
		result.Reason = models.EscalationReasonNone
		result.Escalate = false
	default:
		slog.Warn("Analyzer.Analyze: unknown escalation reason, not escalating", "reason", result.Reason)
		return none
	}
	if !result.Escalate {
		result.Reason = models.EscalationReasonNone
		result.Summary = ""
	}
	return result
}

func formatHistory(history []models.Message) string {
	if len(history) > AnalyzerHistoryWindow {
		history = history[len(history)-AnalyzerHistoryWindow:]
	}
	out := ""
	for _, msg := range history {
		if out != "" {
			out += "\n"
		}
		out += msg.Role + ": " + msg.Content
	}
	if out == "" {
		out = "(no prior messages)"
	}
	return out
}
