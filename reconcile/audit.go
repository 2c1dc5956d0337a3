package reconcile

import (
	"context"
	"time"

	"github.com/ecomkit/cyberpay/gateway"
	"github.com/ecomkit/cyberpay/infra/logger"
	"github.com/ecomkit/cyberpay/infra/opensearch"
	"github.com/ecomkit/cyberpay/order"
)

// AuditTrail receives one document per gateway call outcome. Indexing is
// best-effort; a nil trail disables auditing.
type AuditTrail interface {
	LogTransaction(ctx context.Context, entry opensearch.TransactionLog) error
}

// transactionLog assembles the audit document for one gateway call. Error
// text is sanitized because processor messages can echo payload fragments.
func transactionLog(operation string, record *order.TransactionRecord, resp *gateway.Response, err error, started time.Time) opensearch.TransactionLog {
	entry := opensearch.TransactionLog{
		Timestamp:        time.Now().UTC(),
		OrderID:          record.ID,
		Operation:        operation,
		Amount:           record.Amount,
		Currency:         record.Currency,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
	}
	if resp != nil {
		entry.TransactionID = resp.ID()
		entry.Status = resp.Status()
		entry.StatusCode = resp.StatusCode
		entry.ReasonCode = resp.ReasonCode()
	}
	if err != nil {
		entry.Error = opensearch.SanitizeForLog(err.Error())
	}
	return entry
}

// dispatchAudit ships the document without blocking the payment path.
func dispatchAudit(trail AuditTrail, entry opensearch.TransactionLog) {
	if trail == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trail.LogTransaction(ctx, entry); err != nil {
			logger.Warn("Failed to index audit document", logger.LogContext{
				OrderID:   entry.OrderID,
				Operation: entry.Operation,
			})
		}
	}()
}
