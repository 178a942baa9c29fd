// Package handlers exposes the HTTP boundary: the inbound webhook, health
// and debug endpoints. Channel payloads are normalized here; everything past
// this package speaks InboundMessage.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/palinopr/leadrouter/internal/engine"
	"github.com/palinopr/leadrouter/internal/identity"
	"github.com/palinopr/leadrouter/pkg/logging"
)

// inboundPayload is the transport-level webhook body. Providers differ in
// which identifiers they send; all of them are optional individually, the
// resolver decides whether enough survive.
type inboundPayload struct {
	ContactID      string `json:"contact_id"`
	ConversationID string `json:"conversation_id"`
	Phone          string `json:"phone"`
	Message        string `json:"message"`
	Direction      string `json:"direction"`
	Timestamp      string `json:"timestamp"`
	DeliveryID     string `json:"delivery_id"`
	Seq            int64  `json:"seq"`
}

type inboundPublisher interface {
	EnqueueInbound(ctx context.Context, jobID string, msg engine.InboundMessage) error
}

// WebhookHandler ingests inbound message webhooks.
type WebhookHandler struct {
	engine    *engine.Engine
	publisher inboundPublisher
	logger    *logging.Logger
}

// WebhookConfig wires the webhook handler. Engine is required. When a
// Publisher is present the endpoint acknowledges immediately and the worker
// pool processes asynchronously; without one, processing is inline and the
// response carries the turn outcome.
type WebhookConfig struct {
	Engine    *engine.Engine
	Publisher inboundPublisher
	Logger    *logging.Logger
}

func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Engine == nil {
		panic("handlers: webhook needs an engine")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WebhookHandler{
		engine:    cfg.Engine,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
}

// HandleInbound processes POST /webhooks/inbound.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if payload.Direction != "" && payload.Direction != "inbound" {
		// Outbound echoes arrive on the same webhook for some providers.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	msg := engine.InboundMessage{
		ContactID:      payload.ContactID,
		ConversationID: payload.ConversationID,
		Phone:          payload.Phone,
		Text:           payload.Message,
		Timestamp:      parseTimestamp(payload.Timestamp),
		DeliveryID:     payload.DeliveryID,
		Sequence:       payload.Seq,
	}

	// Identity is checked before enqueueing so unresolvable payloads are
	// flagged at the boundary instead of dying silently in a worker.
	if _, err := identity.Resolve(identity.ExternalRefs{
		ContactID:      msg.ContactID,
		Phone:          msg.Phone,
		ConversationID: msg.ConversationID,
	}); err != nil {
		var identityErr *identity.IdentityError
		if errors.As(err, &identityErr) {
			h.logger.Error("inbound flagged for manual triage",
				"delivery_id", msg.DeliveryID, "error", err)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"status":        "unresolvable",
				"manual_triage": true,
				"error":         identityErr.Error(),
			})
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if h.publisher != nil {
		jobID := uuid.NewString()
		if err := h.publisher.EnqueueInbound(r.Context(), jobID, msg); err != nil {
			h.logger.Error("failed to enqueue inbound", "error", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "queued",
			"job_id": jobID,
		})
		return
	}

	outcome, err := h.engine.HandleInbound(r.Context(), msg)
	if err != nil {
		h.logger.Error("inbound processing failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	status := "processed"
	if outcome.Duplicate {
		status = "duplicate"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"thread_key": outcome.ThreadKey,
		"tier":       outcome.Tier,
		"score":      outcome.Score,
		"reply":      outcome.Reply.Text,
		"degraded":   outcome.Degraded,
	})
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	return time.Time{}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
