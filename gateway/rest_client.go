package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Response is a processor response decoded into a generic tree. No schema is
// assumed beyond the status/id/errorInformation fields the accessors read.
type Response struct {
	StatusCode int
	Body       map[string]any
	Raw        []byte
}

// Status returns the processor status field, or "" when absent.
func (r *Response) Status() string {
	if r == nil {
		return ""
	}
	s, _ := r.Body["status"].(string)
	return s
}

// ID returns the processor resource id, or "" when absent.
func (r *Response) ID() string {
	if r == nil {
		return ""
	}
	id, _ := r.Body["id"].(string)
	return id
}

// Success reports whether the HTTP status is in the 2xx range.
func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// errorInformation returns the processor error block, which may be absent.
func (r *Response) errorInformation() map[string]any {
	if r == nil {
		return nil
	}
	info, _ := r.Body["errorInformation"].(map[string]any)
	return info
}

// ReasonCode returns errorInformation.reason, or "" when absent.
func (r *Response) ReasonCode() string {
	reason, _ := r.errorInformation()["reason"].(string)
	return reason
}

// ErrorMessage returns errorInformation.message, or "" when absent.
func (r *Response) ErrorMessage() string {
	message, _ := r.errorInformation()["message"].(string)
	return message
}

// restClient issues signed JSON requests against the configured CyberSource
// environment. It carries no retry, backoff or circuit-breaking logic;
// transport failures propagate to the caller.
type restClient struct {
	baseURL        string
	host           string
	organizationID string
	accessKey      string
	secretKey      string
	scheme         Scheme
	client         *http.Client
	now            func() time.Time
}

func newRestClient(cfg Config) *restClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &restClient{
		baseURL:        cfg.baseURL(),
		host:           cfg.host(),
		organizationID: cfg.OrganizationID,
		accessKey:      cfg.AccessKey,
		secretKey:      cfg.SecretKey,
		scheme:         cfg.scheme(),
		client:         &http.Client{Timeout: timeout},
		now:            time.Now,
	}
}

// Get issues a signed GET request.
func (c *restClient) Get(ctx context.Context, path string) (*Response, error) {
	return c.send(ctx, http.MethodGet, path, nil)
}

// Post serializes body to JSON and issues a signed POST request. A body that
// cannot be serialized is a local error; no network call is made.
func (c *restClient) Post(ctx context.Context, path string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to serialize request body: %w", err)
	}
	return c.send(ctx, http.MethodPost, path, payload)
}

func (c *restClient) send(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	// A fresh signing context per call keeps the timestamp consistent across
	// every header of this request.
	signer, err := NewSigner(c.scheme, NewSigningContext(c.host, c.organizationID, c.accessKey, c.secretKey, c.now()))
	if err != nil {
		return nil, err
	}
	signed, err := signer.SignedHeaders(method, path, payload)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to create request: %w", err)
	}
	for key, value := range signed.Map() {
		req.Header.Set(key, value)
	}
	// net/http takes Host from the header struct field, not the header map.
	req.Host = signed.Host

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to read response body: %w", err)
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Body:       map[string]any{},
		Raw:        raw,
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &response.Body); err != nil {
			return response, fmt.Errorf("gateway: failed to decode response body: %w", err)
		}
	}
	return response, nil
}
