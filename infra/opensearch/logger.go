package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// TransactionLog is the audit-trail document written for every gateway call.
type TransactionLog struct {
	Timestamp        time.Time `json:"timestamp"`
	RequestID        string    `json:"request_id"`
	OrderID          string    `json:"order_id,omitempty"`
	Operation        string    `json:"operation"`
	TransactionID    string    `json:"transaction_id,omitempty"`
	Status           string    `json:"status,omitempty"`
	StatusCode       int       `json:"status_code,omitempty"`
	Amount           float64   `json:"amount,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	ReasonCode       string    `json:"reason_code,omitempty"`
	Error            string    `json:"error,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms,omitempty"`
}

// Logger indexes audit and system log documents.
type Logger struct {
	client *Client
}

// NewLogger creates a logger over the given client.
func NewLogger(client *Client) *Logger {
	return &Logger{client: client}
}

// LogTransaction indexes one gateway call outcome.
func (l *Logger) LogTransaction(ctx context.Context, entry TransactionLog) error {
	if !l.client.IsEnabled() {
		return nil
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = uuid.New().String()
	}
	return l.index(ctx, IndexTransactions, entry)
}

// LogSystemEvent indexes a structured service log entry. Satisfies the
// logger package's EventSink.
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	if !l.client.IsEnabled() {
		return nil
	}
	return l.index(ctx, IndexSystemLogs, entry)
}

func (l *Logger) index(ctx context.Context, index string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal log document: %w", err)
	}
	req := opensearchapi.IndexRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index log document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}
	return nil
}

var sensitivePatterns = func() []*regexp.Regexp {
	fields := []string{
		"number", "cardNumber", "cvv", "securityCode", "transientTokenJwt",
		"secretKey", "accessKey", "signature", "authorization",
	}
	patterns := make([]*regexp.Regexp, 0, len(fields))
	for _, field := range fields {
		patterns = append(patterns, regexp.MustCompile(fmt.Sprintf(`"%s"\s*:\s*"[^"]*"`, field)))
	}
	return patterns
}()

// SanitizeForLog masks card data and credentials in a serialized payload
// before it is written anywhere.
func SanitizeForLog(data string) string {
	for _, pattern := range sensitivePatterns {
		data = pattern.ReplaceAllStringFunc(data, func(match string) string {
			idx := 0
			for i := range match {
				if match[i] == ':' {
					idx = i
					break
				}
			}
			return match[:idx] + `:"***"`
		})
	}
	return data
}
