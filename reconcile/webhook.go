// Package reconcile keeps local transaction state and the processor in
// agreement. Inbound, it verifies and interprets webhook notifications and
// fires the matching state transitions. Outbound, it turns administrative
// state changes into capture/void/refund calls and reverts the local state
// when the processor does not confirm them.
package reconcile

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/ecomkit/cyberpay/gateway"
	"github.com/ecomkit/cyberpay/infra/logger"
	"github.com/ecomkit/cyberpay/order"
)

var (
	// ErrSignatureMismatch rejects a webhook whose signature header does not
	// match the HMAC of the raw body. Maps to 401 at the boundary.
	ErrSignatureMismatch = errors.New("reconcile: webhook signature mismatch")
	// ErrBadPayload rejects a structurally invalid webhook body. Maps to 400.
	ErrBadPayload = errors.New("reconcile: malformed webhook payload")
)

// WebhookEvent is the interpreted notification. Ephemeral; nothing persists
// it beyond the reconciliation step.
type WebhookEvent struct {
	TransactionID string
	Status        string
	RawPayload    []byte
}

// VerifyWebhookSignature checks base64(HMAC-SHA256(rawBody, secret)) against
// the signature header in constant time.
func VerifyWebhookSignature(rawBody []byte, signatureHeader, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

// ParseWebhookEvent extracts data.id and data.status from the raw payload.
func ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	var payload struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, ErrBadPayload
	}
	if payload.Data.ID == "" || payload.Data.Status == "" {
		return nil, ErrBadPayload
	}
	return &WebhookEvent{
		TransactionID: payload.Data.ID,
		Status:        payload.Data.Status,
		RawPayload:    rawBody,
	}, nil
}

// webhookActions maps processor notification statuses to local transition
// actions. Statuses outside this table are logged and ignored.
var webhookActions = map[string]order.Action{
	gateway.StatusAuthorized:              order.ActionPay,
	gateway.StatusDeclined:                order.ActionDecline,
	gateway.StatusAuthorizedPendingReview: order.ActionPendingReview,
	gateway.StatusPendingReview:           order.ActionPreReview,
}

// Reconciler drives both reconciliation directions.
type Reconciler struct {
	gateway       *gateway.Client
	store         order.Store
	webhookSecret string
	audit         AuditTrail
}

// NewReconciler builds a reconciler over the gateway client and the host
// application's transaction store.
func NewReconciler(client *gateway.Client, store order.Store, webhookSecret string) *Reconciler {
	return &Reconciler{
		gateway:       client,
		store:         store,
		webhookSecret: webhookSecret,
	}
}

// WithAuditTrail installs the audit trail the administrative gateway calls
// are indexed to.
func (r *Reconciler) WithAuditTrail(trail AuditTrail) *Reconciler {
	r.audit = trail
	return r
}

// HandleWebhook runs the inbound reconciliation path. Signature and payload
// failures and a missing local record surface as typed errors for the HTTP
// boundary; an unrecognized status or a failed transition does not, so the
// processor sees success and does not redeliver.
func (r *Reconciler) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error {
	if !VerifyWebhookSignature(rawBody, signatureHeader, r.webhookSecret) {
		return ErrSignatureMismatch
	}
	event, err := ParseWebhookEvent(rawBody)
	if err != nil {
		return err
	}

	record, err := r.store.GetByProcessorTransactionID(ctx, event.TransactionID)
	if err != nil {
		return err
	}

	action, ok := webhookActions[event.Status]
	if !ok {
		logger.Info("Ignoring webhook with unrecognized status", logger.LogContext{
			OrderID:   record.ID,
			Operation: "webhook",
			Fields:    map[string]any{"status": event.Status, "transaction_id": event.TransactionID},
		})
		return nil
	}

	target, err := record.State.Apply(action)
	if err != nil {
		logger.Error("Webhook transition could not be resolved", err, logger.LogContext{
			OrderID:   record.ID,
			Operation: "webhook",
		})
		return nil
	}
	if target == record.State {
		// Duplicate delivery; the record is already where this event points.
		return nil
	}

	if err := r.store.UpdateState(ctx, record.ID, target); err != nil {
		logger.Error("Webhook transition failed", err, logger.LogContext{
			OrderID:   record.ID,
			Operation: "webhook",
			Fields:    map[string]any{"target_state": string(target)},
		})
		return nil
	}

	details := record.Details
	details.Status = event.Status
	if err := r.store.UpdateDetails(ctx, record.ID, details); err != nil {
		logger.Error("Webhook details update failed", err, logger.LogContext{
			OrderID:   record.ID,
			Operation: "webhook",
		})
	}
	return nil
}
