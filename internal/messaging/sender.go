// Package messaging contains the inbound message pipeline: proxy routing,
// flow decisions, escalation checks and response generation for each
// customer turn.
package messaging

import "context"

// Sender delivers outbound messages on a business channel. Implemented by
// the whatsapp client; tests use MockSender.
type Sender interface {
	// SendFreeform sends a plain text message inside an open service window.
	SendFreeform(ctx context.Context, channelID, to, text string) error
}

// InboundMessage is one normalized customer or admin message from a channel
// webhook.
type InboundMessage struct {
	ChannelID     string `json:"channelId"`
	From          string `json:"from"`
	SenderName    string `json:"senderName,omitempty"`
	Text          string `json:"text"`
	ButtonPayload string `json:"buttonPayload,omitempty"`
}
