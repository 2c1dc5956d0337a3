package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ecomkit/cyberpay/infra/logger"
	"github.com/ecomkit/cyberpay/infra/response"
	"github.com/ecomkit/cyberpay/order"
	"github.com/ecomkit/cyberpay/reconcile"
)

// SignatureHeader carries the processor's HMAC signature of the raw webhook
// body.
const SignatureHeader = "v-c-signature"

// WebhookService runs the inbound reconciliation path.
type WebhookService interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error
}

// WebhookHandler receives asynchronous processor notifications.
type WebhookHandler struct {
	reconciler WebhookService
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(reconciler WebhookService) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandleNotification processes one webhook delivery. A correctly signed,
// structurally valid payload always yields 200, even when its status is
// unrecognized, so the processor does not retry-storm; only signature,
// structure and record-lookup failures map to error codes.
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest, map[string]string{"status": "invalid payload"})
		return
	}

	err = h.reconciler.HandleWebhook(r.Context(), rawBody, r.Header.Get(SignatureHeader))
	switch {
	case err == nil:
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
	case errors.Is(err, reconcile.ErrSignatureMismatch):
		response.WriteJSON(w, http.StatusUnauthorized, map[string]string{"status": "signature mismatch"})
	case errors.Is(err, reconcile.ErrBadPayload):
		response.WriteJSON(w, http.StatusBadRequest, map[string]string{"status": "invalid payload"})
	case errors.Is(err, order.ErrNotFound):
		response.WriteJSON(w, http.StatusNotFound, map[string]string{"status": "transaction not found"})
	default:
		logger.Error("Webhook processing failed", err, logger.LogContext{Operation: "webhook"})
		response.WriteJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
	}
}

// HandleHealth answers the processor's reachability probe issued before it
// activates webhook delivery.
func (h *WebhookHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
