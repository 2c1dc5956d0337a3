// Package order holds the merchant-side transaction model this integration
// reconciles against the processor: the transaction record, the payment
// details blob the gateway annotates, and the state machine webhook and
// administrative transitions drive.
package order

import (
	"context"
	"errors"
)

// State is a local order-transaction state.
type State string

const (
	StateOpen              State = "open"
	StateAuthorized        State = "authorized"
	StatePreReview         State = "pre_review"
	StatePendingReview     State = "pending_review"
	StatePaid              State = "paid"
	StatePaidAuthorized    State = "paid_authorized"
	StateCancelled         State = "cancelled"
	StateRefunded          State = "refunded"
	StateRefundedPartially State = "refunded_partially"
	StateFailed            State = "failed"
)

// Action is a state-machine transition trigger fired by webhook
// reconciliation.
type Action string

const (
	ActionPay           Action = "pay"
	ActionDecline       Action = "decline"
	ActionPendingReview Action = "pending_review"
	ActionPreReview     Action = "pre_review"
)

var actionTargets = map[Action]State{
	ActionPay:           StatePaid,
	ActionDecline:       StateFailed,
	ActionPendingReview: StatePendingReview,
	ActionPreReview:     StatePreReview,
}

var ErrUnknownAction = errors.New("order: unknown transition action")

// Apply resolves an action against the current state. Triggering an action
// whose target is the current state is a no-op, not an error; duplicate
// webhook deliveries must not double-transition.
func (s State) Apply(action Action) (State, error) {
	target, ok := actionTargets[action]
	if !ok {
		return s, ErrUnknownAction
	}
	return target, nil
}

// DetailsKey is the sub-structure of the externally owned transaction record
// this core reads and writes. Everything else on the record belongs to the
// host application.
const DetailsKey = "cybersource_payment_details"

// PaymentDetails is the gateway annotation stored under DetailsKey.
type PaymentDetails struct {
	TransactionID string  `json:"transaction_id"`
	UniqID        string  `json:"uniqid,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Status        string  `json:"status,omitempty"`
}

// TransactionRecord is the local view of an order transaction. Created by
// the first successful authorize/capture, updated on every later gateway
// call and webhook, never deleted by this core.
type TransactionRecord struct {
	ID       string
	State    State
	Amount   float64
	Currency string
	Details  PaymentDetails
}

// ErrNotFound is returned when no transaction matches a lookup.
var ErrNotFound = errors.New("order: transaction not found")

// Store is the narrow surface this core needs from the host application's
// transaction persistence. Concurrency control is the store's concern.
type Store interface {
	Get(ctx context.Context, id string) (*TransactionRecord, error)
	// GetByProcessorTransactionID finds the record whose stored payment
	// details carry the given processor transaction id.
	GetByProcessorTransactionID(ctx context.Context, transactionID string) (*TransactionRecord, error)
	Create(ctx context.Context, record *TransactionRecord) error
	UpdateState(ctx context.Context, id string, state State) error
	UpdateDetails(ctx context.Context, id string, details PaymentDetails) error
}
