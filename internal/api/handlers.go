package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bookline/bookline/internal/messaging"
	"github.com/bookline/bookline/internal/models"
)

// webhookMessageHandler receives a normalized inbound channel message and
// runs the conversation pipeline for it.
func (s *Server) webhookMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}

	var msg messaging.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if msg.ChannelID == "" || msg.From == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("channelId and from are required"))
		return
	}

	if err := s.processor.HandleInboundMessage(r.Context(), msg); err != nil {
		// The customer already saw a safe reply; the webhook caller only
		// needs to know the turn did not complete cleanly.
		slog.Error("Server.webhookMessageHandler: turn failed", "error", err, "from", msg.From)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to process message"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// notificationRequest is the POST /notifications payload.
type notificationRequest struct {
	Type       models.NotificationType        `json:"type"`
	BusinessID string                         `json:"businessId"`
	Content    models.NotificationContent     `json:"content"`
	Recipients []models.NotificationRecipient `json:"recipients,omitempty"`
}

// notificationsHandler dispatches a notification to business staff.
func (s *Server) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}

	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if !models.IsValidNotificationType(req.Type) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid notification type"))
		return
	}
	if req.BusinessID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("businessId is required"))
		return
	}

	if err := s.dispatcher.Send(r.Context(), req.Type, req.BusinessID, req.Content, req.Recipients); err != nil {
		slog.Error("Server.notificationsHandler: dispatch failed", "error", err, "businessID", req.BusinessID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to deliver notification"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}
