package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	apiSandboxURL    = "https://apitest.cybersource.com"
	apiProductionURL = "https://api.cybersource.com"

	endpointPayments             = "/pts/v2/payments/"
	endpointCaptures             = "/pts/v2/payments/%s/captures"
	endpointReversals            = "/pts/v2/payments/%s/reversals"
	endpointRefunds              = "/pts/v2/payments/%s/refunds"
	endpointVoids                = "/pts/v2/payments/%s/voids"
	endpointInstrumentIdentifier = "/tms/v1/instrumentidentifiers"
	endpointCustomers            = "/tms/v2/customers"
	endpointPaymentInstruments   = "/tms/v1/paymentinstruments"
)

// Processor status values this core inspects. Everything else is passed
// through untouched.
const (
	StatusAuthorized              = "AUTHORIZED"
	StatusPending                 = "PENDING"
	StatusTransmitted             = "TRANSMITTED"
	StatusDeclined                = "DECLINED"
	StatusInvalidRequest          = "INVALID_REQUEST"
	StatusBadRequest              = "BAD_REQUEST"
	StatusRiskDeclined            = "AUTHORIZED_RISK_DECLINED"
	StatusAuthorizedPendingReview = "AUTHORIZED_PENDING_REVIEW"
	StatusPendingReview           = "PENDING_REVIEW"
)

// Config holds the credentials and environment selection for one gateway
// client. It is built once per environment and treated as immutable.
type Config struct {
	Production     bool
	OrganizationID string
	AccessKey      string
	SecretKey      string

	// BaseURL overrides the environment URL when set. Used by tests.
	BaseURL string
	// AuthScheme defaults to the HTTP signature scheme.
	AuthScheme Scheme
	Timeout    time.Duration
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	if c.Production {
		return apiProductionURL
	}
	return apiSandboxURL
}

func (c Config) host() string {
	u, err := url.Parse(c.baseURL())
	if err != nil {
		return ""
	}
	return u.Host
}

func (c Config) scheme() Scheme {
	if c.AuthScheme == "" {
		return SchemeHTTPSignature
	}
	return c.AuthScheme
}

// Client exposes the CyberSource payment operations this integration uses.
type Client struct {
	rest *restClient
}

// NewClient validates the configuration and builds a gateway client. An
// unsupported auth scheme is rejected here rather than on first call.
func NewClient(cfg Config) (*Client, error) {
	if cfg.OrganizationID == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("gateway: organizationId, accessKey and secretKey are required")
	}
	if _, err := NewSigner(cfg.scheme(), SigningContext{}); err != nil {
		return nil, err
	}
	return &Client{rest: newRestClient(cfg)}, nil
}

// Authorize reserves funds for the given request and returns the processor
// response verbatim, including decline and review statuses.
func (c *Client) Authorize(ctx context.Context, request AuthorizationRequest) (*Response, error) {
	payload, err := BuildAuthorizationPayload(request)
	if err != nil {
		return nil, err
	}
	return c.rest.Post(ctx, endpointPayments, payload)
}

// Capture converts a prior authorization into a funds transfer.
func (c *Client) Capture(ctx context.Context, request AuthorizationRequest, transactionID string) (*Response, error) {
	return c.rest.Post(ctx, fmt.Sprintf(endpointCaptures, transactionID), BuildCapturePayload(request))
}

// AuthorizeAndCapture authorizes and, iff the authorization came back with
// status AUTHORIZED and an id, captures it. When the capture fails the
// authorization is reversed once as a compensating action and the original
// capture error is returned; the reversal outcome never masks it. A
// non-AUTHORIZED authorization is returned raw without attempting capture.
func (c *Client) AuthorizeAndCapture(ctx context.Context, request AuthorizationRequest) (*Response, error) {
	auth, err := c.Authorize(ctx, request)
	if err != nil {
		return nil, err
	}
	if auth.Status() != StatusAuthorized || auth.ID() == "" {
		return auth, nil
	}

	capture, err := c.Capture(ctx, request, auth.ID())
	if err == nil && capture.Success() {
		return capture, nil
	}
	captureErr := err
	if captureErr == nil {
		captureErr = Classify(request.ClientReferenceCode, capture)
	}

	if _, reverseErr := c.Reverse(ctx, request, auth.ID()); reverseErr != nil {
		return nil, fmt.Errorf("%w (authorization reversal also failed: %v)", captureErr, reverseErr)
	}
	return nil, captureErr
}

// Refund returns captured funds for a settled payment.
func (c *Client) Refund(ctx context.Context, transactionID string, request RefundRequest) (*Response, error) {
	return c.rest.Post(ctx, fmt.Sprintf(endpointRefunds, transactionID), BuildRefundPayload(request))
}

// Void cancels a transaction before settlement.
func (c *Client) Void(ctx context.Context, transactionID, clientReferenceCode string) (*Response, error) {
	payload := map[string]any{
		"clientReferenceInformation": BuildClientReference(clientReferenceCode),
	}
	return c.rest.Post(ctx, fmt.Sprintf(endpointVoids, transactionID), payload)
}

// Reverse cancels an uncaptured authorization. It is issued only as the
// capture-failure compensator.
func (c *Client) Reverse(ctx context.Context, request AuthorizationRequest, transactionID string) (*Response, error) {
	return c.rest.Post(ctx, fmt.Sprintf(endpointReversals, transactionID), BuildReversalPayload(request))
}

// GenerateInstrumentIdentifier stores a card number with the processor and
// returns the created instrument identifier id for the caller to persist.
// The number is checked locally first; a malformed one never leaves the
// service.
func (c *Client) GenerateInstrumentIdentifier(ctx context.Context, cardNumber string) (string, error) {
	if !ValidateCardNumber(cardNumber) {
		return "", NewBadRequestError("", "INVALID_CARD_NUMBER", "Card number failed format validation")
	}
	payload := map[string]any{
		"card": map[string]any{"number": cardNumber},
	}
	return c.createResource(ctx, endpointInstrumentIdentifier, payload)
}

// CreateCustomer creates a processor-side customer profile and returns its id.
func (c *Client) CreateCustomer(ctx context.Context, request CustomerRequest) (string, error) {
	return c.createResource(ctx, endpointCustomers, BuildCustomerPayload(request))
}

// CreatePaymentInstrument links a stored card to a customer profile and
// returns the payment instrument id.
func (c *Client) CreatePaymentInstrument(ctx context.Context, request PaymentInstrumentRequest) (string, error) {
	return c.createResource(ctx, endpointPaymentInstruments, BuildPaymentInstrumentPayload(request))
}

func (c *Client) createResource(ctx context.Context, path string, payload map[string]any) (string, error) {
	resp, err := c.rest.Post(ctx, path, payload)
	if err != nil {
		return "", err
	}
	if !resp.Success() || resp.ID() == "" {
		return "", Classify("", resp)
	}
	return resp.ID(), nil
}
