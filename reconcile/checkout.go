package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ecomkit/cyberpay/gateway"
	"github.com/ecomkit/cyberpay/infra/logger"
	"github.com/ecomkit/cyberpay/order"
)

// Checkout runs the checkout-time payment flow: assemble the gateway
// request, authorize (and optionally capture), and keep the local
// transaction record in step with the outcome.
type Checkout struct {
	gateway     *gateway.Client
	store       order.Store
	autoCapture bool
	audit       AuditTrail
}

// NewCheckout builds the checkout flow. With autoCapture set, payments run
// the authorize-and-capture saga; otherwise funds are only reserved and a
// later administrative transition captures them.
func NewCheckout(client *gateway.Client, store order.Store, autoCapture bool) *Checkout {
	return &Checkout{
		gateway:     client,
		store:       store,
		autoCapture: autoCapture,
	}
}

// WithAuditTrail installs the audit trail every gateway call outcome is
// indexed to.
func (c *Checkout) WithAuditTrail(trail AuditTrail) *Checkout {
	c.audit = trail
	return c
}

// successStatuses are authorize/capture outcomes that complete checkout.
var successStatuses = map[string]bool{
	gateway.StatusAuthorized:  true,
	gateway.StatusPending:     true,
	gateway.StatusTransmitted: true,
}

// reviewStates maps review outcomes to the local state they park the
// transaction in before a classified error is surfaced.
var reviewStates = map[string]order.State{
	gateway.StatusAuthorizedPendingReview: order.StatePendingReview,
	gateway.StatusPendingReview:           order.StatePreReview,
}

// Pay processes a checkout payment for the given order. The transaction
// record is created in state open when it does not exist yet, annotated with
// the processor transaction id on success, and moved to authorized or paid
// depending on the capture mode. Failures come back as classified gateway
// errors where the processor produced a response, or as the original
// transport error otherwise.
func (c *Checkout) Pay(ctx context.Context, orderID string, request gateway.AuthorizationRequest) (*order.TransactionRecord, error) {
	if err := request.Validate(); err != nil {
		return nil, gateway.NewBadRequestError(orderID, "MISSING_FIELD", err.Error())
	}
	if request.Card != nil {
		if err := gateway.ValidateCard(orderID, *request.Card, time.Now()); err != nil {
			return nil, err
		}
	}

	record, err := c.ensureRecord(ctx, orderID, request.Order)
	if err != nil {
		return nil, err
	}

	operation := "authorize"
	if c.autoCapture {
		operation = "sale"
	}
	started := time.Now()

	var resp *gateway.Response
	if c.autoCapture {
		resp, err = c.gateway.AuthorizeAndCapture(ctx, request)
	} else {
		resp, err = c.gateway.Authorize(ctx, request)
	}
	if err != nil {
		dispatchAudit(c.audit, transactionLog(operation, record, resp, err, started))
		c.markState(ctx, record, order.StateFailed)
		logger.Error("Checkout payment failed", err, logger.LogContext{
			OrderID:   orderID,
			Operation: "checkout",
		})
		return record, err
	}

	c.annotate(ctx, record, resp)

	status := resp.Status()
	switch {
	case successStatuses[status]:
		target := order.StateAuthorized
		if c.autoCapture {
			target = order.StatePaid
		}
		dispatchAudit(c.audit, transactionLog(operation, record, resp, nil, started))
		c.markState(ctx, record, target)
		return record, nil
	default:
		target, ok := reviewStates[status]
		if !ok {
			target = order.StateFailed
		}
		classified := gateway.Classify(orderID, resp)
		dispatchAudit(c.audit, transactionLog(operation, record, resp, classified, started))
		c.markState(ctx, record, target)
		return record, classified
	}
}

// ensureRecord loads the order transaction or creates it in state open.
func (c *Checkout) ensureRecord(ctx context.Context, orderID string, o gateway.Order) (*order.TransactionRecord, error) {
	record, err := c.store.Get(ctx, orderID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, order.ErrNotFound) {
		return nil, err
	}
	record = &order.TransactionRecord{
		ID:       orderID,
		State:    order.StateOpen,
		Amount:   o.Amount,
		Currency: o.Currency,
	}
	if err := c.store.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// annotate writes the processor transaction id and outcome into the payment
// details blob. Ran on every response that carries an id, success or not, so
// webhook reconciliation can find the record later.
func (c *Checkout) annotate(ctx context.Context, record *order.TransactionRecord, resp *gateway.Response) {
	if resp.ID() == "" {
		return
	}
	details := record.Details
	details.TransactionID = resp.ID()
	if details.UniqID == "" {
		details.UniqID = uuid.NewString()
	}
	details.Amount = record.Amount
	details.Status = resp.Status()
	if err := c.store.UpdateDetails(ctx, record.ID, details); err != nil {
		logger.Error("Failed to annotate transaction details", err, logger.LogContext{
			OrderID:   record.ID,
			Operation: "checkout",
		})
		return
	}
	record.Details = details
}

func (c *Checkout) markState(ctx context.Context, record *order.TransactionRecord, state order.State) {
	if record.State == state {
		return
	}
	if err := c.store.UpdateState(ctx, record.ID, state); err != nil {
		logger.Error("Failed to update transaction state", err, logger.LogContext{
			OrderID:   record.ID,
			Operation: "checkout",
			Fields:    map[string]any{"target_state": string(state)},
		})
		return
	}
	record.State = state
}
