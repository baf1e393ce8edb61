package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bookline/bookline/internal/escalation"
	"github.com/bookline/bookline/internal/flow"
	"github.com/bookline/bookline/internal/genai"
	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/notify"
	"github.com/bookline/bookline/internal/rag"
	"github.com/bookline/bookline/internal/store"
)

// Response generation parameters. Higher temperature than the decision model
// so replies read naturally.
const (
	ResponseTemperature = 0.7
	ResponseMaxTokens   = 300
)

// apologyMessage is what the customer sees when the turn fails internally.
// Internal errors never leak; the goal stays on its current step.
const apologyMessage = "Sorry, something went wrong on our side. Could you say that again?"

// holdMessage is sent to the customer when their conversation escalates to a
// human agent.
const holdMessage = "Thanks for your patience. A member of our team will assist you here shortly."

const responseSystemPrompt = `You are a friendly booking assistant for %s. Reply to the customer's message naturally and concisely, in the customer's language.

Current booking progress:
- Step: %s
- Service: %s
- Date: %s
- Time: %s

%sKeep the reply short, helpful and on-topic. Never mention internal systems.`

// Processor runs the full pipeline for each inbound message. Turns within
// one conversation are serialized by a keyed mutex; different conversations
// proceed concurrently.
type Processor struct {
	router     *escalation.Router
	aggregator *flow.Aggregator
	decider    *flow.Engine
	goals      *flow.GoalManager
	analyzer   *escalation.Analyzer
	proxies    *escalation.Manager
	dispatcher *notify.Dispatcher
	knowledge  *rag.Engine
	genAI      genai.ClientInterface
	data       store.DataStore
	sender     Sender

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProcessor wires the pipeline together.
func NewProcessor(
	router *escalation.Router,
	aggregator *flow.Aggregator,
	decider *flow.Engine,
	goals *flow.GoalManager,
	analyzer *escalation.Analyzer,
	proxies *escalation.Manager,
	dispatcher *notify.Dispatcher,
	knowledge *rag.Engine,
	genAI genai.ClientInterface,
	data store.DataStore,
	sender Sender,
) *Processor {
	return &Processor{
		router:     router,
		aggregator: aggregator,
		decider:    decider,
		goals:      goals,
		analyzer:   analyzer,
		proxies:    proxies,
		dispatcher: dispatcher,
		knowledge:  knowledge,
		genAI:      genAI,
		data:       data,
		sender:     sender,
		locks:      map[string]*sync.Mutex{},
	}
}

// conversationLock returns the mutex serializing one conversation's turns.
func (p *Processor) conversationLock(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[key] = lock
	}
	return lock
}

// HandleInboundMessage processes one inbound message end to end. Proxy
// relay runs first; only unhandled messages reach the bot pipeline. The
// customer never sees an internal error.
func (p *Processor) HandleInboundMessage(ctx context.Context, msg InboundMessage) error {
	lock := p.conversationLock(msg.ChannelID + ":" + msg.From)
	lock.Lock()
	defer lock.Unlock()

	routed, err := p.router.Route(ctx, escalation.InboundProxyMessage{
		From:          msg.From,
		Text:          msg.Text,
		ButtonPayload: msg.ButtonPayload,
	}, msg.ChannelID)
	if err != nil {
		slog.Error("Processor.HandleInboundMessage: proxy routing failed", "error", err, "from", msg.From)
		return err
	}
	if routed.WasHandled {
		slog.Debug("Processor.HandleInboundMessage: handled by proxy router",
			"from", msg.From, "forwarded", routed.MessageForwarded, "proxyEnded", routed.ProxyEnded)
		return nil
	}

	business, err := p.data.GetBusinessByChannelID(ctx, msg.ChannelID)
	if err != nil || business == nil {
		slog.Error("Processor.HandleInboundMessage: unknown business channel",
			"error", err, "channelID", msg.ChannelID)
		p.apologize(ctx, msg)
		if err != nil {
			return fmt.Errorf("failed to resolve business channel: %w", err)
		}
		return fmt.Errorf("no business for channel %s", msg.ChannelID)
	}

	conversationID := business.ID + ":" + msg.From
	goal, err := p.ensureGoal(ctx, conversationID, business.ID)
	if err != nil {
		slog.Error("Processor.HandleInboundMessage: goal load failed", "error", err, "conversationID", conversationID)
		p.apologize(ctx, msg)
		return err
	}

	snapshot := p.aggregator.Build(ctx, goal, business.ID, msg.From, msg.SenderName)
	decision := p.decider.Decide(ctx, msg.Text, goal, goal.MessageHistory)
	analysis := p.analyzer.Analyze(ctx, msg.Text, goal.MessageHistory)

	if analysis.Escalate {
		return p.escalate(ctx, msg, business, goal, conversationID, analysis)
	}

	goal, err = p.goals.ApplyDecision(conversationID, goal, decision)
	if err != nil {
		slog.Error("Processor.HandleInboundMessage: decision apply failed", "error", err, "conversationID", conversationID)
		p.apologize(ctx, msg)
		return err
	}

	reply := p.composeReply(ctx, msg, business, goal, snapshot, decision)
	if err := p.sender.SendFreeform(ctx, msg.ChannelID, msg.From, reply); err != nil {
		slog.Error("Processor.HandleInboundMessage: reply send failed", "error", err, "to", msg.From)
		return fmt.Errorf("failed to send reply: %w", err)
	}
	p.goals.AppendExchange(conversationID, goal, msg.Text, reply)
	return nil
}

// ensureGoal loads the active goal, creating a default booking goal for new
// conversations. The flow depends on whether the business offers mobile
// services.
func (p *Processor) ensureGoal(ctx context.Context, conversationID, businessID string) (*models.Goal, error) {
	goal, err := p.goals.Active(conversationID)
	if err != nil {
		return nil, err
	}
	if goal != nil {
		return goal, nil
	}

	flowKey := flow.FlowBookingNonMobile
	services, err := p.data.GetServices(ctx, businessID)
	if err != nil {
		slog.Warn("Processor.ensureGoal: service lookup failed, defaulting flow", "error", err, "businessID", businessID)
	}
	for _, svc := range services {
		if svc.Mobile {
			flowKey = flow.FlowBookingMobile
			break
		}
	}
	return p.goals.Create(conversationID, flowKey, models.GoalTypeServiceBooking, models.GoalActionCreate)
}

// escalate hands the conversation to a human: proxy session, staff alert,
// hold message. Store write failures abort the handoff and apologize instead.
func (p *Processor) escalate(ctx context.Context, msg InboundMessage, business *models.Business, goal *models.Goal, conversationID string, analysis models.EscalationAnalysis) error {
	adminPhone, err := p.firstAdminPhone(ctx, business.ID)
	if err != nil || adminPhone == "" {
		slog.Error("Processor.escalate: no admin available for escalation", "error", err, "businessID", business.ID)
		p.apologize(ctx, msg)
		if err != nil {
			return err
		}
		return fmt.Errorf("no admin with a phone number for business %s", business.ID)
	}

	summary := analysis.Summary
	if summary == "" {
		summary = fmt.Sprintf("Customer %s needs help (%s).", msg.From, analysis.Reason)
	}

	if _, err := p.proxies.CreateSession(business.ID, msg.ChannelID, adminPhone, msg.From, summary); err != nil {
		slog.Error("Processor.escalate: proxy session creation failed", "error", err, "conversationID", conversationID)
		p.apologize(ctx, msg)
		return err
	}

	content := models.NotificationContent{
		Title:   "Customer needs assistance",
		Message: summary,
		Data:    map[string]string{"customerPhone": msg.From, "reason": string(analysis.Reason)},
	}
	if err := p.dispatcher.Send(ctx, models.NotificationTypeEscalation, business.ID, content, nil); err != nil {
		// The session exists and relays regardless; the alert failure is logged.
		slog.Error("Processor.escalate: escalation notification failed", "error", err, "businessID", business.ID)
	}

	if err := p.sender.SendFreeform(ctx, msg.ChannelID, msg.From, holdMessage); err != nil {
		slog.Error("Processor.escalate: hold message send failed", "error", err, "to", msg.From)
	}
	p.goals.AppendExchange(conversationID, goal, msg.Text, holdMessage)
	slog.Info("Processor.escalate: conversation escalated",
		"conversationID", conversationID, "reason", analysis.Reason, "adminPhone", adminPhone)
	return nil
}

// firstAdminPhone picks the escalation target from the staff roster.
func (p *Processor) firstAdminPhone(ctx context.Context, businessID string) (string, error) {
	staff, err := p.data.GetStaff(ctx, businessID)
	if err != nil {
		return "", fmt.Errorf("failed to load staff for escalation: %w", err)
	}
	for _, m := range staff {
		if models.IsProviderRole(m.Role) && m.PhoneNumber != "" {
			return m.PhoneNumber, nil
		}
	}
	for _, m := range staff {
		if m.Role == models.RoleSuperAdmin && m.PhoneNumber != "" {
			return m.PhoneNumber, nil
		}
	}
	return "", nil
}

// composeReply generates the customer-facing reply. Question turns pull
// retrieved business facts into the prompt; retrieval failures degrade to a
// plain contextual reply, and generation failures to the apology text.
func (p *Processor) composeReply(ctx context.Context, msg InboundMessage, business *models.Business, goal *models.Goal, snapshot models.ComprehensiveContext, decision models.ConversationDecision) string {
	knowledgeBlock := ""
	if decision.Action == models.ActionContinue {
		results, err := p.knowledge.Answer(ctx, business.ID, msg.Text)
		if err != nil {
			slog.Warn("Processor.composeReply: retrieval failed, replying without facts", "error", err)
		} else if len(results) > 0 {
			var b strings.Builder
			b.WriteString("Relevant business facts:\n")
			for _, r := range results {
				b.WriteString("- ")
				b.WriteString(r.Content)
				b.WriteString("\n")
			}
			knowledgeBlock = b.String() + "\n"
		}
	}

	systemPrompt := fmt.Sprintf(responseSystemPrompt,
		orDefault(snapshot.Business.Name, "this business"),
		orDefault(snapshot.CurrentBooking.Step, "starting"),
		orDefault(snapshot.CurrentBooking.Service, "not chosen yet"),
		orDefault(snapshot.CurrentBooking.Date, "not chosen yet"),
		orDefault(snapshot.CurrentBooking.Time, "not chosen yet"),
		knowledgeBlock)

	reply, err := p.genAI.Generate(ctx, systemPrompt, msg.Text, ResponseTemperature, ResponseMaxTokens)
	if err != nil || strings.TrimSpace(reply) == "" {
		slog.Error("Processor.composeReply: response generation failed", "error", err)
		return apologyMessage
	}
	return strings.TrimSpace(reply)
}

// apologize sends the generic apology; best-effort.
func (p *Processor) apologize(ctx context.Context, msg InboundMessage) {
	if err := p.sender.SendFreeform(ctx, msg.ChannelID, msg.From, apologyMessage); err != nil {
		slog.Error("Processor.apologize: apology send failed", "error", err, "to", msg.From)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
