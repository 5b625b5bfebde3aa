package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type createChatbotRequest struct {
	Name     string `json:"name"`
	Model    string `json:"model"`
	Greeting string `json:"greeting"`
}

func (s *Server) handleCreateChatbot(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var req createChatbotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "chatbot name is required")
		return
	}
	if req.Model == "" {
		req.Model = "standard"
	}

	bot := s.store.CreateChatbot(tenant, req.Name, req.Model, req.Greeting)
	s.log.Info("chatbot created", "tenant", tenant, "chatbot_id", bot.ID)
	writeJSON(w, http.StatusCreated, bot)
}

func (s *Server) handleListChatbots(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.store.ListChatbots(tenant))
}

func (s *Server) handleGetChatbot(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}
	bot, ok := s.store.Chatbot(tenant, chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, "chatbot not found")
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (s *Server) handleDeleteChatbot(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !s.store.DeleteChatbot(tenant, id) {
		writeError(w, http.StatusNotFound, CodeNotFound, "chatbot not found")
		return
	}
	s.log.Info("chatbot deleted", "tenant", tenant, "chatbot_id", id)
	w.WriteHeader(http.StatusNoContent)
}
