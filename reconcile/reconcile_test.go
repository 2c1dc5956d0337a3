package reconcile

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ecomkit/cyberpay/gateway"
	"github.com/ecomkit/cyberpay/order"
)

const testWebhookSecret = "webhook-secret"

// memStore is an in-memory order.Store for exercising reconciliation without
// a database. Records are cloned on the way in and out so tests observe only
// what went through the interface.
type memStore struct {
	mu      sync.Mutex
	records map[string]order.TransactionRecord
}

func newMemStore(records ...order.TransactionRecord) *memStore {
	s := &memStore{records: map[string]order.TransactionRecord{}}
	for _, record := range records {
		s.records[record.ID] = record
	}
	return s
}

func (s *memStore) Get(ctx context.Context, id string) (*order.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	clone := record
	return &clone, nil
}

func (s *memStore) GetByProcessorTransactionID(ctx context.Context, transactionID string) (*order.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.Details.TransactionID == transactionID {
			clone := record
			return &clone, nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *memStore) Create(ctx context.Context, record *order.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; ok {
		return order.ErrNotFound
	}
	s.records[record.ID] = *record
	return nil
}

func (s *memStore) UpdateState(ctx context.Context, id string, state order.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return order.ErrNotFound
	}
	record.State = state
	s.records[id] = record
	return nil
}

func (s *memStore) UpdateDetails(ctx context.Context, id string, details order.PaymentDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return order.ErrNotFound
	}
	record.Details = details
	s.records[id] = record
	return nil
}

func (s *memStore) state(t *testing.T, id string) order.State {
	t.Helper()
	record, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("record %s missing: %v", id, err)
	}
	return record.State
}

func (s *memStore) details(t *testing.T, id string) order.PaymentDetails {
	t.Helper()
	record, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("record %s missing: %v", id, err)
	}
	return record.Details
}

// processorStub scripts processor endpoints by path; unscripted paths answer
// 404 and a call counter tracks what the flow actually touched.
type processorStub struct {
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]http.HandlerFunc
}

func newProcessorStub() *processorStub {
	return &processorStub{calls: map[string]int{}, handlers: map[string]http.HandlerFunc{}}
}

func (p *processorStub) respond(path string, status int, body string) {
	p.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (p *processorStub) abort(path string) {
	p.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}
}

func (p *processorStub) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

func (p *processorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.calls[r.URL.Path]++
	handler := p.handlers[r.URL.Path]
	p.mu.Unlock()
	if handler == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("{}"))
		return
	}
	handler(w, r)
}

func newTestGateway(t *testing.T, stub *processorStub) *gateway.Client {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)
	client, err := gateway.NewClient(gateway.Config{
		OrganizationID: "merchant_org",
		AccessKey:      "access-key-1",
		SecretKey:      base64.StdEncoding.EncodeToString([]byte("shared-secret")),
		BaseURL:        server.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
