package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bookline/bookline/internal/models"
)

// TakeoverButtonPayload is the interactive-button id that returns control to
// the bot, matched exactly.
const TakeoverButtonPayload = "return_control_to_bot"

// takeoverPhrases end a proxy session when an admin's message contains one,
// case-insensitively.
var takeoverPhrases = []string{
	"return control to bot",
	"return to bot",
	"back to bot",
	"end proxy",
	"stop proxy",
	"bot takeover",
}

// IsTakeoverCommand reports whether an admin message asks to hand the
// conversation back to the bot, via button payload or text phrase.
func IsTakeoverCommand(text, buttonPayload string) bool {
	if buttonPayload == TakeoverButtonPayload {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range takeoverPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ForwardSender sends freeform text on a business channel. Satisfied by the
// messaging layer's channel senders.
type ForwardSender interface {
	SendFreeform(ctx context.Context, channelID, to, text string) error
}

// InboundProxyMessage is the slice of an inbound message the router needs.
type InboundProxyMessage struct {
	From          string
	Text          string
	ButtonPayload string
}

// Router relays messages for active proxy sessions. It runs before the bot
// pipeline; a message it does not handle falls through to the bot.
type Router struct {
	manager *Manager
	sender  ForwardSender
}

// NewRouter creates a proxy message router.
func NewRouter(manager *Manager, sender ForwardSender) *Router {
	return &Router{manager: manager, sender: sender}
}

// Route inspects an inbound message against the active proxy sessions.
// Admin takeover commands end the session; other admin messages relay to the
// customer and customer messages relay to the admin. With no active session
// the result reports WasHandled=false so the bot pipeline runs normally.
func (r *Router) Route(ctx context.Context, msg InboundProxyMessage, businessChannelID string) (models.ProxyRouteResult, error) {
	session, err := r.manager.ActiveByAdmin(msg.From)
	if err != nil {
		return models.ProxyRouteResult{}, err
	}
	if session != nil {
		return r.routeAdminMessage(ctx, session, msg)
	}

	session, err = r.manager.ActiveByCustomer(msg.From)
	if err != nil {
		return models.ProxyRouteResult{}, err
	}
	if session != nil {
		return r.routeCustomerMessage(ctx, session, msg)
	}

	return models.ProxyRouteResult{WasHandled: false}, nil
}

func (r *Router) routeAdminMessage(ctx context.Context, session *models.ProxySession, msg InboundProxyMessage) (models.ProxyRouteResult, error) {
	if IsTakeoverCommand(msg.Text, msg.ButtonPayload) {
		ended, err := r.manager.EndSession(session.SessionID)
		if err != nil {
			return models.ProxyRouteResult{WasHandled: true}, err
		}
		// Confirmation is best-effort; the session is already ended.
		if ended {
			if err := r.sender.SendFreeform(ctx, session.BusinessChannelID, session.AdminPhone,
				"Control returned to the assistant. The customer will be handled automatically again."); err != nil {
				slog.Warn("Router.routeAdminMessage: end confirmation send failed", "error", err, "sessionID", session.SessionID)
			}
		}
		return models.ProxyRouteResult{WasHandled: true, ProxyEnded: ended}, nil
	}

	if err := r.sender.SendFreeform(ctx, session.BusinessChannelID, session.CustomerPhone, msg.Text); err != nil {
		slog.Error("Router.routeAdminMessage: relay to customer failed", "error", err, "sessionID", session.SessionID)
		return models.ProxyRouteResult{WasHandled: true}, fmt.Errorf("failed to relay admin message: %w", err)
	}
	return models.ProxyRouteResult{WasHandled: true, MessageForwarded: true}, nil
}

func (r *Router) routeCustomerMessage(ctx context.Context, session *models.ProxySession, msg InboundProxyMessage) (models.ProxyRouteResult, error) {
	if err := r.sender.SendFreeform(ctx, session.BusinessChannelID, session.AdminPhone, msg.Text); err != nil {
		slog.Error("Router.routeCustomerMessage: relay to admin failed", "error", err, "sessionID", session.SessionID)
		return models.ProxyRouteResult{WasHandled: true}, fmt.Errorf("failed to relay customer message: %w", err)
	}
	return models.ProxyRouteResult{WasHandled: true, MessageForwarded: true}, nil
}
