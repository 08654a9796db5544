package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/finbridge/plaid-link-go/internal/model"
)

// WebhookProcessor consumes validated webhook envelopes.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, env *model.WebhookEnvelope) error
}

type WebhookHandler struct {
	processor WebhookProcessor
}

func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Webhook handles POST /plaid/webhook. The response contract matters:
// 200 acknowledges the delivery (including unknown sessions and
// unhandled codes), 500 tells Plaid to retry with backoff.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var env model.WebhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		log.Warn().Err(err).Msg("invalid plaid webhook body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if err := env.Validate(); err != nil {
		log.Warn().Err(err).Msg("malformed plaid webhook envelope")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	log.Info().
		Str("webhookType", env.WebhookType).
		Str("webhookCode", env.WebhookCode).
		Msg("received plaid webhook")

	if err := h.processor.HandleWebhook(r.Context(), &env); err != nil {
		log.Error().Err(err).
			Str("webhookType", env.WebhookType).
			Str("webhookCode", env.WebhookCode).
			Msg("webhook processing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Webhook processing failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
