package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}
	chatbotID := r.URL.Query().Get("chatbot_id")
	writeJSON(w, http.StatusOK, s.store.ListConversations(tenant, chatbotID))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}
	conv, ok := s.store.Conversation(tenant, chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}
	sub, ok := s.store.Subscription(tenant)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "no subscription on file")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
