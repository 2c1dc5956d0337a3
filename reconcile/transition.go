package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/ecomkit/cyberpay/gateway"
	"github.com/ecomkit/cyberpay/infra/logger"
	"github.com/ecomkit/cyberpay/order"
)

// remoteOp is the gateway call an administrative transition corresponds to.
type remoteOp int

const (
	opCapture remoteOp = iota
	opVoid
	opRefund
)

func (op remoteOp) String() string {
	switch op {
	case opCapture:
		return "capture"
	case opVoid:
		return "void"
	case opRefund:
		return "refund"
	}
	return "unknown"
}

type transitionKey struct {
	from order.State
	to   order.State
}

// adminTransitions binds administrative state changes to remote operations.
// A pair outside this table is not an allowed transition.
var adminTransitions = map[transitionKey]remoteOp{
	{order.StateAuthorized, order.StatePaid}:              opCapture,
	{order.StatePendingReview, order.StatePaidAuthorized}: opCapture,
	{order.StatePreReview, order.StateAuthorized}:         opCapture,
	{order.StateAuthorized, order.StateCancelled}:         opVoid,
	{order.StatePaid, order.StateCancelled}:               opVoid,
	{order.StatePaid, order.StateRefunded}:                opRefund,
}

// ApplyTransition moves a transaction to the target state and issues the
// corresponding remote call. The local state moves first; if the processor
// does not confirm with a success status code the local state is reverted to
// where it was, so it never points at a state the processor never saw.
// Amount applies to refunds only; a value below the transaction total makes
// the refund partial and the final state refunded_partially.
func (r *Reconciler) ApplyTransition(ctx context.Context, orderID string, target order.State, amount float64) error {
	record, err := r.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if record.Details.TransactionID == "" {
		return fmt.Errorf("reconcile: transaction %s has no processor transaction id", orderID)
	}

	op, ok := adminTransitions[transitionKey{record.State, target}]
	if !ok {
		return fmt.Errorf("reconcile: transition %s -> %s is not allowed", record.State, target)
	}

	refundAmount := record.Amount
	if op == opRefund && amount > 0 && amount < record.Amount {
		refundAmount = amount
		target = order.StateRefundedPartially
	}

	prior := record.State
	if err := r.store.UpdateState(ctx, orderID, target); err != nil {
		return err
	}

	started := time.Now()
	resp, err := r.remoteCall(ctx, op, record, refundAmount)
	dispatchAudit(r.audit, transactionLog(op.String(), record, resp, err, started))
	if err != nil || !resp.Success() {
		if revertErr := r.store.UpdateState(ctx, orderID, prior); revertErr != nil {
			logger.Error("Failed to revert local state after remote failure", revertErr, logger.LogContext{
				OrderID:   orderID,
				Operation: op.String(),
			})
		}
		if err != nil {
			return gateway.NewGenericAPIError(orderID, err.Error())
		}
		return gateway.Classify(orderID, resp)
	}

	details := record.Details
	details.Status = resp.Status()
	details.Amount = record.Amount
	if target == order.StateRefundedPartially {
		details.Amount = record.Amount - refundAmount
	}
	if err := r.store.UpdateDetails(ctx, orderID, details); err != nil {
		logger.Error("Failed to annotate transaction details", err, logger.LogContext{
			OrderID:   orderID,
			Operation: op.String(),
		})
	}

	logger.Info("Administrative transition confirmed by processor", logger.LogContext{
		OrderID:   orderID,
		Operation: op.String(),
		Fields:    map[string]any{"state": string(target)},
	})
	return nil
}

func (r *Reconciler) remoteCall(ctx context.Context, op remoteOp, record *order.TransactionRecord, refundAmount float64) (*gateway.Response, error) {
	transactionID := record.Details.TransactionID
	switch op {
	case opCapture:
		request := gateway.AuthorizationRequest{
			ClientReferenceCode: record.ID,
			Order: gateway.Order{
				Amount:   record.Amount,
				Currency: record.Currency,
			},
		}
		return r.gateway.Capture(ctx, request, transactionID)
	case opVoid:
		return r.gateway.Void(ctx, transactionID, record.ID)
	case opRefund:
		return r.gateway.Refund(ctx, transactionID, gateway.RefundRequest{
			ClientReferenceCode: record.ID,
			Amount:              refundAmount,
			Currency:            record.Currency,
		})
	}
	return nil, fmt.Errorf("reconcile: unknown remote operation %d", op)
}
