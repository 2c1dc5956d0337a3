package reconcile

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ecomkit/cyberpay/gateway"
	"github.com/ecomkit/cyberpay/infra/opensearch"
	"github.com/ecomkit/cyberpay/order"
)

type captureTrail struct {
	entries chan opensearch.TransactionLog
}

func newCaptureTrail() *captureTrail {
	return &captureTrail{entries: make(chan opensearch.TransactionLog, 16)}
}

func (c *captureTrail) LogTransaction(ctx context.Context, entry opensearch.TransactionLog) error {
	c.entries <- entry
	return nil
}

func (c *captureTrail) next(t *testing.T) opensearch.TransactionLog {
	t.Helper()
	select {
	case entry := <-c.entries:
		return entry
	case <-time.After(2 * time.Second):
		t.Fatal("no audit document was indexed")
		return opensearch.TransactionLog{}
	}
}

func TestCheckoutPay_IndexesAuditDocument(t *testing.T) {
	stub := newProcessorStub()
	stub.respond("/pts/v2/payments/", http.StatusCreated, `{"id":"pay_1","status":"AUTHORIZED"}`)
	trail := newCaptureTrail()
	checkout := NewCheckout(newTestGateway(t, stub), newMemStore(), false).WithAuditTrail(trail)

	if _, err := checkout.Pay(context.Background(), "order-1", checkoutRequest()); err != nil {
		t.Fatalf("Pay() error = %v", err)
	}

	entry := trail.next(t)
	if entry.Operation != "authorize" {
		t.Errorf("operation = %s, want authorize", entry.Operation)
	}
	if entry.OrderID != "order-1" || entry.TransactionID != "pay_1" {
		t.Errorf("unexpected identifiers: %+v", entry)
	}
	if entry.Status != gateway.StatusAuthorized || entry.StatusCode != http.StatusCreated {
		t.Errorf("unexpected outcome fields: %+v", entry)
	}
	if entry.Amount != 100 || entry.Currency != "USD" {
		t.Errorf("unexpected order fields: %+v", entry)
	}
	if entry.Error != "" {
		t.Errorf("error recorded for a successful call: %s", entry.Error)
	}
}

func TestCheckoutPay_AuditSanitizesErrorText(t *testing.T) {
	stub := newProcessorStub()
	stub.respond("/pts/v2/payments/", http.StatusCreated,
		`{"id":"pay_1","status":"DECLINED","errorInformation":{"reason":"PROCESSOR_DECLINED","message":"rejected payload {\"cardNumber\":\"4111111111111111\"}"}}`)
	trail := newCaptureTrail()
	checkout := NewCheckout(newTestGateway(t, stub), newMemStore(), false).WithAuditTrail(trail)

	if _, err := checkout.Pay(context.Background(), "order-1", checkoutRequest()); err == nil {
		t.Fatal("expected the decline to surface")
	}

	entry := trail.next(t)
	if entry.Error == "" {
		t.Fatal("declined call indexed without its error")
	}
	if strings.Contains(entry.Error, "4111111111111111") {
		t.Errorf("card number leaked into the audit document: %s", entry.Error)
	}
	if !strings.Contains(entry.Error, `"cardNumber":"***"`) {
		t.Errorf("error text was not masked: %s", entry.Error)
	}
	if entry.ReasonCode != "PROCESSOR_DECLINED" {
		t.Errorf("ReasonCode = %s, want PROCESSOR_DECLINED", entry.ReasonCode)
	}
}

func TestApplyTransition_IndexesAuditDocument(t *testing.T) {
	stub := newProcessorStub()
	stub.respond("/pts/v2/payments/pay_1/captures", http.StatusCreated, `{"id":"cap_1","status":"PENDING"}`)
	trail := newCaptureTrail()
	store := newMemStore(authorizedRecord())
	reconciler := NewReconciler(newTestGateway(t, stub), store, testWebhookSecret).WithAuditTrail(trail)

	if err := reconciler.ApplyTransition(context.Background(), "order-1", order.StatePaid, 0); err != nil {
		t.Fatalf("ApplyTransition() error = %v", err)
	}

	entry := trail.next(t)
	if entry.Operation != "capture" {
		t.Errorf("operation = %s, want capture", entry.Operation)
	}
	if entry.TransactionID != "cap_1" || entry.Status != gateway.StatusPending {
		t.Errorf("unexpected outcome fields: %+v", entry)
	}
}

func TestApplyTransition_AuditRecordsTransportFailure(t *testing.T) {
	stub := newProcessorStub()
	stub.abort("/pts/v2/payments/pay_1/voids")
	trail := newCaptureTrail()
	store := newMemStore(authorizedRecord())
	reconciler := NewReconciler(newTestGateway(t, stub), store, testWebhookSecret).WithAuditTrail(trail)

	if err := reconciler.ApplyTransition(context.Background(), "order-1", order.StateCancelled, 0); err == nil {
		t.Fatal("expected the transport failure to surface")
	}

	entry := trail.next(t)
	if entry.Operation != "void" {
		t.Errorf("operation = %s, want void", entry.Operation)
	}
	if !strings.Contains(entry.Error, "request failed") {
		t.Errorf("transport failure not recorded: %q", entry.Error)
	}
}

func TestCheckoutPay_NilTrailIsSilent(t *testing.T) {
	stub := newProcessorStub()
	stub.respond("/pts/v2/payments/", http.StatusCreated, `{"id":"pay_1","status":"AUTHORIZED"}`)
	checkout := NewCheckout(newTestGateway(t, stub), newMemStore(), false)

	// No trail installed; the payment path must not care.
	if _, err := checkout.Pay(context.Background(), "order-1", checkoutRequest()); err != nil {
		t.Fatalf("Pay() error = %v", err)
	}
}
