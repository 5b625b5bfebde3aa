// Package api implements the platform's dashboard and ingress HTTP
// surface: chatbot management, conversation viewing, the public widget
// endpoint, billing webhooks and GDPR requests.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/botfold/botfold/internal/jobs"
)

// Error codes shared by all API handlers. CSRF-specific codes live in the
// csrf package; these cover the rest of the surface.
const (
	CodeTenantRequired   = "TENANT_REQUIRED"
	CodeNotFound         = "NOT_FOUND"
	CodeBadRequest       = "BAD_REQUEST"
	CodeBadSignature     = "WEBHOOK_SIGNATURE_INVALID"
	CodeQueueUnavailable = "QUEUE_UNAVAILABLE"
)

// TenantHeader carries the authenticated tenant ID, resolved upstream by
// the auth provider integration.
const TenantHeader = "X-Tenant-ID"

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	log           *slog.Logger
	store         *Store
	queue         *jobs.Queue
	webhookSecret string
}

func NewServer(log *slog.Logger, store *Store, queue *jobs.Queue, webhookSecret string) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:           log.With("component", "api"),
		store:         store,
		queue:         queue,
		webhookSecret: webhookSecret,
	}
}

// Routes registers every handler. The router is expected to be mounted
// under /api with the CSRF middleware already applied; the widget and
// webhook subtrees must be listed in the CSRF exemptions.
func (s *Server) Routes(r chi.Router) {
	r.Route("/chatbots", func(r chi.Router) {
		r.Post("/", s.handleCreateChatbot)
		r.Get("/", s.handleListChatbots)
		r.Get("/{id}", s.handleGetChatbot)
		r.Delete("/{id}", s.handleDeleteChatbot)
	})

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", s.handleListConversations)
		r.Get("/{id}", s.handleGetConversation)
	})

	r.Get("/subscription", s.handleGetSubscription)

	// public, CSRF-exempt
	r.Post("/widget/{chatbotID}/messages", s.handleWidgetMessage)
	r.Post("/webhooks/billing", s.handleBillingWebhook)

	r.Route("/gdpr", func(r chi.Router) {
		r.Post("/export", s.handleGDPRExport)
		r.Post("/delete", s.handleGDPRDelete)
		r.Get("/jobs/{id}", s.handleGDPRJobStatus)
	})
}

// tenant resolves the caller's tenant or writes a 401 and reports false.
func (s *Server) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant := r.Header.Get(TenantHeader)
	if tenant == "" {
		writeError(w, http.StatusUnauthorized, CodeTenantRequired,
			"request is missing the "+TenantHeader+" header")
		return "", false
	}
	return tenant, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}
