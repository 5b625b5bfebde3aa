package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type widgetMessageRequest struct {
	ConversationID string `json:"conversationId"`
	VisitorID      string `json:"visitorId"`
	Body           string `json:"body"`
}

type widgetMessageResponse struct {
	ConversationID string  `json:"conversationId"`
	Message        Message `json:"message"`
}

// handleWidgetMessage is the anonymous ingress used by the embed script
// on customer websites. It is CSRF-exempt and CORS-open; abuse control
// happens upstream at the edge.
func (s *Server) handleWidgetMessage(w http.ResponseWriter, r *http.Request) {
	chatbotID := chi.URLParam(r, "chatbotID")

	var req widgetMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "message body is required")
		return
	}

	conv, msg, ok := s.store.AppendWidgetMessage(chatbotID, req.ConversationID, req.VisitorID, req.Body)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "chatbot not found")
		return
	}

	s.log.Debug("widget message received",
		"chatbot_id", chatbotID,
		"conversation_id", conv.ID,
	)
	writeJSON(w, http.StatusCreated, widgetMessageResponse{
		ConversationID: conv.ID,
		Message:        msg,
	})
}
