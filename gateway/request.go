package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Card is a tokenized card: the transient token produced by the processor's
// capture context flow plus the expiry the shopper entered.
type Card struct {
	Token       string
	ExpiryMonth string
	ExpiryYear  string
}

// BillTo carries the billing address. Empty fields are omitted from the
// payload entirely; the processor rejects empty strings.
type BillTo struct {
	FirstName  string
	LastName   string
	Street     string
	City       string
	StateCode  string // short code in "COUNTRY-STATE" form, e.g. "US-CA"
	PostalCode string
	Country    string // ISO 3166-1 alpha-2
	Email      string
}

// LineItem is one order line. Taxes holds the calculated tax amounts per
// applied rate.
type LineItem struct {
	Name      string
	Quantity  int
	UnitPrice float64
	Taxes     []float64
}

// Order is the priced order an authorization or capture refers to.
type Order struct {
	Amount    float64
	Currency  string
	BillTo    *BillTo
	LineItems []LineItem
}

// AuthorizationRequest aggregates everything an authorize call needs.
// Exactly one of Card and PaymentInstrumentID must be set.
type AuthorizationRequest struct {
	ClientReferenceCode string
	Order               Order
	Card                *Card
	PaymentInstrumentID string
}

// Validate enforces the card-or-instrument invariant.
func (r AuthorizationRequest) Validate() error {
	hasCard := r.Card != nil
	hasInstrument := r.PaymentInstrumentID != ""
	if hasCard == hasInstrument {
		return errors.New("gateway: exactly one of card and payment instrument must be provided")
	}
	return nil
}

// RefundRequest describes a full or partial refund against a settled payment.
type RefundRequest struct {
	ClientReferenceCode string
	Amount              float64
	Currency            string
}

// CustomerRequest describes a processor-side customer profile to create.
type CustomerRequest struct {
	Code  string
	Email string
}

// PaymentInstrumentRequest links a stored instrument identifier to card
// metadata and a billing address.
type PaymentInstrumentRequest struct {
	InstrumentIdentifierID string
	ExpiryMonth            string
	ExpiryYear             string
	BillTo                 *BillTo
}

// reversalReason is the fixed human-readable reason attached to the
// compensating authorization reversal.
const reversalReason = "Capture failed, reversing authorization"

func formatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// BuildCard maps a tokenized card to the processor payload shape. The
// expiration month is left-padded to two digits.
func BuildCard(card Card) map[string]any {
	month := card.ExpiryMonth
	if len(month) == 1 {
		month = "0" + month
	}
	return map[string]any{
		"tokenInformation": map[string]any{
			"transientTokenJwt": card.Token,
		},
		"paymentInformation": map[string]any{
			"card": map[string]any{
				"expirationMonth": month,
				"expirationYear":  card.ExpiryYear,
			},
		},
	}
}

// BuildPaymentInstrument maps a stored payment instrument reference.
func BuildPaymentInstrument(instrumentID string) map[string]any {
	return map[string]any{
		"paymentInformation": map[string]any{
			"paymentInstrument": map[string]any{
				"id": instrumentID,
			},
		},
	}
}

// BuildBillTo maps a billing address, dropping empty fields. The
// administrative area is the state part of the "COUNTRY-STATE" short code.
func BuildBillTo(billTo BillTo) map[string]any {
	fields := map[string]string{
		"firstName":          billTo.FirstName,
		"lastName":           billTo.LastName,
		"address1":           billTo.Street,
		"locality":           billTo.City,
		"administrativeArea": stateFromShortCode(billTo.StateCode),
		"postalCode":         billTo.PostalCode,
		"country":            billTo.Country,
		"email":              billTo.Email,
	}
	payload := map[string]any{}
	for key, value := range fields {
		if value != "" {
			payload[key] = value
		}
	}
	return payload
}

func stateFromShortCode(shortCode string) string {
	_, state, found := strings.Cut(shortCode, "-")
	if !found {
		return ""
	}
	return state
}

// BuildLineItems numbers order lines starting at 1. A line with several
// calculated taxes contributes only the final one as its taxAmount; the loop
// keeps the last value rather than summing them. Known quirk, kept as-is.
func BuildLineItems(items []LineItem) []map[string]any {
	lines := make([]map[string]any, 0, len(items))
	for i, item := range items {
		line := map[string]any{
			"number":      i + 1,
			"productName": item.Name,
			"quantity":    item.Quantity,
			"unitPrice":   formatAmount(item.UnitPrice),
		}
		for _, tax := range item.Taxes {
			line["taxAmount"] = formatAmount(tax)
		}
		lines = append(lines, line)
	}
	return lines
}

// BuildOrderFull maps the complete order shape used by authorizations.
func BuildOrderFull(order Order) map[string]any {
	payload := map[string]any{
		"amountDetails": map[string]any{
			"totalAmount": formatAmount(order.Amount),
			"currency":    order.Currency,
		},
	}
	if order.BillTo != nil {
		payload["billTo"] = BuildBillTo(*order.BillTo)
	}
	if len(order.LineItems) > 0 {
		payload["lineItems"] = BuildLineItems(order.LineItems)
	}
	return payload
}

// BuildOrderCaptureOnly maps the reduced shape captures use: amount,
// currency and line items, no billing address.
func BuildOrderCaptureOnly(order Order) map[string]any {
	payload := map[string]any{
		"amountDetails": map[string]any{
			"totalAmount": formatAmount(order.Amount),
			"currency":    order.Currency,
		},
	}
	if len(order.LineItems) > 0 {
		payload["lineItems"] = BuildLineItems(order.LineItems)
	}
	return payload
}

// BuildOrderReversalOnly maps the minimal reversal shape: the amount and a
// fixed reason.
func BuildOrderReversalOnly(order Order) map[string]any {
	return map[string]any{
		"amountDetails": map[string]any{
			"totalAmount": formatAmount(order.Amount),
		},
		"reason": reversalReason,
	}
}

// BuildClientReference maps the merchant correlation code, defaulting to "0"
// when the order has no natural identifier.
func BuildClientReference(code string) map[string]any {
	if code == "" {
		code = "0"
	}
	return map[string]any{"code": code}
}

// BuildAuthorizationPayload assembles the full authorize payload from the
// aggregate request.
func BuildAuthorizationPayload(request AuthorizationRequest) (map[string]any, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"clientReferenceInformation": BuildClientReference(request.ClientReferenceCode),
		"orderInformation":           BuildOrderFull(request.Order),
	}
	if request.Card != nil {
		mergePayload(payload, BuildCard(*request.Card))
	} else {
		mergePayload(payload, BuildPaymentInstrument(request.PaymentInstrumentID))
	}
	return payload, nil
}

// BuildCapturePayload assembles the capture payload for a prior authorization.
func BuildCapturePayload(request AuthorizationRequest) map[string]any {
	return map[string]any{
		"clientReferenceInformation": BuildClientReference(request.ClientReferenceCode),
		"orderInformation":           BuildOrderCaptureOnly(request.Order),
	}
}

// BuildReversalPayload assembles the compensating reversal payload.
func BuildReversalPayload(request AuthorizationRequest) map[string]any {
	return map[string]any{
		"clientReferenceInformation": BuildClientReference(request.ClientReferenceCode),
		"reversalInformation":        BuildOrderReversalOnly(request.Order),
	}
}

// BuildRefundPayload assembles a refund payload.
func BuildRefundPayload(request RefundRequest) map[string]any {
	return map[string]any{
		"clientReferenceInformation": BuildClientReference(request.ClientReferenceCode),
		"orderInformation": map[string]any{
			"amountDetails": map[string]any{
				"totalAmount": formatAmount(request.Amount),
				"currency":    request.Currency,
			},
		},
	}
}

// BuildCustomerPayload assembles a customer profile payload.
func BuildCustomerPayload(request CustomerRequest) map[string]any {
	payload := map[string]any{
		"clientReferenceInformation": BuildClientReference(request.Code),
	}
	if request.Email != "" {
		payload["buyerInformation"] = map[string]any{"email": request.Email}
	}
	return payload
}

// BuildPaymentInstrumentPayload assembles a payment instrument payload
// referencing a stored instrument identifier.
func BuildPaymentInstrumentPayload(request PaymentInstrumentRequest) map[string]any {
	month := request.ExpiryMonth
	if len(month) == 1 {
		month = "0" + month
	}
	payload := map[string]any{
		"card": map[string]any{
			"expirationMonth": month,
			"expirationYear":  request.ExpiryYear,
		},
		"instrumentIdentifier": map[string]any{
			"id": request.InstrumentIdentifierID,
		},
	}
	if request.BillTo != nil {
		payload["billTo"] = BuildBillTo(*request.BillTo)
	}
	return payload
}

// mergePayload folds src's top-level keys into dst, merging one level of
// nested maps so card and instrument fragments can share paymentInformation.
func mergePayload(dst, src map[string]any) {
	for key, value := range src {
		nested, ok := value.(map[string]any)
		if !ok {
			dst[key] = value
			continue
		}
		existing, ok := dst[key].(map[string]any)
		if !ok {
			dst[key] = nested
			continue
		}
		for k, v := range nested {
			existing[k] = v
		}
	}
}
