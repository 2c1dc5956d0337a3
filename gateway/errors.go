package gateway

import (
	"fmt"
	"net/http"
)

// ErrorKind tags the taxonomy entry a failed gateway call maps to.
type ErrorKind string

const (
	KindBadRequest     ErrorKind = "bad_request"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindDeclined       ErrorKind = "declined"
	KindRiskDeclined   ErrorKind = "risk_declined"
	KindPendingReview  ErrorKind = "pending_review"
	KindRejected       ErrorKind = "rejected"
	KindGenericAPI     ErrorKind = "generic_api"
)

// reasonGeneralDecline is the reason code the placeholder predicates attach.
const reasonGeneralDecline = "GENERAL_DECLINE"

// genericAPIMessage is logged but never shown to shoppers.
const genericAPIMessage = "The payment gateway returned an unexpected response"

// Error is a classified gateway failure. Exactly one is produced per failed
// call.
type Error struct {
	Kind               ErrorKind
	OrderTransactionID string
	ReasonCode         string
	Message            string
	HTTPStatus         int
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s (reason=%s): %s", e.Kind, e.ReasonCode, e.Message)
}

// NewBadRequestError builds a BadRequest error. Local card validation
// failures funnel through this so callers branch on a single taxonomy.
func NewBadRequestError(orderTransactionID, reasonCode, message string) *Error {
	return &Error{
		Kind:               KindBadRequest,
		OrderTransactionID: orderTransactionID,
		ReasonCode:         reasonCode,
		Message:            message,
		HTTPStatus:         http.StatusBadRequest,
	}
}

// NewGenericAPIError builds the default error for transport failures and
// unmatched responses.
func NewGenericAPIError(orderTransactionID, reasonCode string) *Error {
	return &Error{
		Kind:               KindGenericAPI,
		OrderTransactionID: orderTransactionID,
		ReasonCode:         reasonCode,
		Message:            genericAPIMessage,
		HTTPStatus:         http.StatusInternalServerError,
	}
}

// classificationRule pairs a response predicate with the error it raises.
type classificationRule struct {
	matches func(resp *Response) bool
	build   func(orderTransactionID string, resp *Response) *Error
}

func statusIs(status string) func(*Response) bool {
	return func(resp *Response) bool { return resp.Status() == status }
}

func declineError(kind ErrorKind, fallbackReason string) func(string, *Response) *Error {
	return func(orderTransactionID string, resp *Response) *Error {
		reason := resp.ReasonCode()
		if reason == "" {
			reason = fallbackReason
		}
		message := resp.ErrorMessage()
		if message == "" {
			message = "The payment was not accepted by the processor"
		}
		return &Error{
			Kind:               kind,
			OrderTransactionID: orderTransactionID,
			ReasonCode:         reason,
			Message:            message,
			HTTPStatus:         http.StatusBadRequest,
		}
	}
}

// Classifier evaluates an ordered rule list and raises the first match. The
// order is significant: an earlier, broader rule shadows every later one.
type Classifier struct {
	rules []classificationRule
}

// DefaultClassifier carries the registration order the integration has always
// used: PendingReview -> Rejected -> InvalidRequest -> Declined ->
// RiskDeclined -> BadRequest -> GenericApi fallback. The PendingReview and
// Rejected predicates are unconditional, so in practice PendingReview wins
// for every classified response; the ordering is preserved deliberately and
// characterized in tests rather than "fixed".
var DefaultClassifier = &Classifier{rules: []classificationRule{
	{
		matches: func(*Response) bool { return true },
		build:   declineError(KindPendingReview, reasonGeneralDecline),
	},
	{
		matches: func(*Response) bool { return true },
		build:   declineError(KindRejected, reasonGeneralDecline),
	},
	{
		matches: statusIs(StatusInvalidRequest),
		build: func(orderTransactionID string, resp *Response) *Error {
			err := NewBadRequestError(orderTransactionID, resp.ReasonCode(), resp.ErrorMessage())
			err.Kind = KindInvalidRequest
			return err
		},
	},
	{
		matches: statusIs(StatusDeclined),
		build:   declineError(KindDeclined, StatusDeclined),
	},
	{
		matches: statusIs(StatusRiskDeclined),
		build:   declineError(KindRiskDeclined, StatusRiskDeclined),
	},
	{
		matches: statusIs(StatusBadRequest),
		build: func(orderTransactionID string, resp *Response) *Error {
			return NewBadRequestError(orderTransactionID, resp.ReasonCode(), resp.ErrorMessage())
		},
	},
}}

// Classify raises exactly one typed error for the response using the rule
// list, falling back to a generic API error when nothing matches.
func (c *Classifier) Classify(orderTransactionID string, resp *Response) *Error {
	for _, rule := range c.rules {
		if rule.matches(resp) {
			return rule.build(orderTransactionID, resp)
		}
	}
	return NewGenericAPIError(orderTransactionID, resp.ReasonCode())
}

// Classify runs the default classifier.
func Classify(orderTransactionID string, resp *Response) *Error {
	return DefaultClassifier.Classify(orderTransactionID, resp)
}
