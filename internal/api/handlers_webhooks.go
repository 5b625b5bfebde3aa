package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
)

// SignatureHeader carries the billing provider's hex-encoded HMAC-SHA256
// over the raw request body.
const SignatureHeader = "X-Billing-Signature"

type billingEvent struct {
	Type   string `json:"type"`
	Tenant string `json:"tenant"`
	Plan   string `json:"plan"`
	Status string `json:"status"`
}

// handleBillingWebhook receives subscription lifecycle events. The route
// is CSRF-exempt: the provider cannot obtain a token, and the signature
// check authenticates the call instead.
func (s *Server) handleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "unreadable body")
		return
	}

	if !s.verifySignature(body, r.Header.Get(SignatureHeader)) {
		s.log.Warn("billing webhook rejected", "reason", "bad_signature")
		writeError(w, http.StatusUnauthorized, CodeBadSignature,
			"webhook signature is missing or invalid")
		return
	}

	var event billingEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Tenant == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "malformed billing event")
		return
	}

	switch event.Type {
	case "subscription.created", "subscription.updated":
		s.store.UpsertSubscription(event.Tenant, event.Plan, event.Status)
	case "subscription.canceled":
		s.store.UpsertSubscription(event.Tenant, event.Plan, "canceled")
	default:
		// unknown event types are acknowledged so the provider stops
		// redelivering them
		s.log.Info("ignoring billing event", "type", event.Type)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) verifySignature(body []byte, signature string) bool {
	if s.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
