package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ecomkit/cyberpay/gateway"
	"github.com/ecomkit/cyberpay/infra/response"
	"github.com/ecomkit/cyberpay/order"
)

const requestTimeout = 30 * time.Second

// CheckoutService runs the checkout payment flow.
type CheckoutService interface {
	Pay(ctx context.Context, orderID string, request gateway.AuthorizationRequest) (*order.TransactionRecord, error)
}

// TransitionService applies administrative state transitions.
type TransitionService interface {
	ApplyTransition(ctx context.Context, orderID string, target order.State, amount float64) error
}

// PaymentHandler handles the payment and administrative HTTP surface.
type PaymentHandler struct {
	checkout    CheckoutService
	transitions TransitionService
	store       order.Store
	validate    *validator.Validate
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(checkout CheckoutService, transitions TransitionService, store order.Store, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		checkout:    checkout,
		transitions: transitions,
		store:       store,
		validate:    validate,
	}
}

type cardRequest struct {
	Token       string `json:"token" validate:"required"`
	ExpiryMonth string `json:"expiryMonth" validate:"required"`
	ExpiryYear  string `json:"expiryYear" validate:"required"`
}

type billToRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	StateCode  string `json:"stateCode"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Email      string `json:"email" validate:"omitempty,email"`
}

type lineItemRequest struct {
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unitPrice"`
	Taxes     []float64 `json:"taxes,omitempty"`
}

type paymentRequest struct {
	OrderID             string            `json:"orderId" validate:"required"`
	Amount              float64           `json:"amount" validate:"required,gt=0"`
	Currency            string            `json:"currency" validate:"required,len=3"`
	ClientReferenceCode string            `json:"clientReferenceCode"`
	Card                *cardRequest      `json:"card"`
	PaymentInstrumentID string            `json:"paymentInstrumentId"`
	BillTo              *billToRequest    `json:"billTo"`
	LineItems           []lineItemRequest `json:"lineItems"`
}

type amountRequest struct {
	Amount float64 `json:"amount" validate:"omitempty,gt=0"`
}

// ProcessPayment handles the checkout payment call.
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	record, err := h.checkout.Pay(ctx, req.OrderID, toAuthorizationRequest(req))
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "Payment processed", recordPayload(record))
}

// GetTransaction returns the local view of an order transaction.
func (h *PaymentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Transaction not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to load transaction", err)
		return
	}
	response.Success(w, http.StatusOK, "Transaction retrieved", recordPayload(record))
}

// CapturePayment captures a prior authorization (administrative).
func (h *PaymentHandler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, order.StatePaid, 0)
}

// VoidPayment cancels a transaction before settlement (administrative).
func (h *PaymentHandler) VoidPayment(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, order.StateCancelled, 0)
}

// RefundPayment refunds a settled payment, fully or partially
// (administrative).
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid request format", err)
			return
		}
		if err := h.validate.Struct(req); err != nil {
			response.Error(w, http.StatusBadRequest, "Validation error", err)
			return
		}
	}
	h.applyTransition(w, r, order.StateRefunded, req.Amount)
}

func (h *PaymentHandler) applyTransition(w http.ResponseWriter, r *http.Request, target order.State, amount float64) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	orderID := chi.URLParam(r, "orderID")
	if err := h.transitions.ApplyTransition(ctx, orderID, target, amount); err != nil {
		writeGatewayError(w, err)
		return
	}
	record, err := h.store.Get(ctx, orderID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load transaction", err)
		return
	}
	response.Success(w, http.StatusOK, "Transition applied", recordPayload(record))
}

// writeGatewayError maps classified gateway errors onto their HTTP status
// and everything else onto a 500.
func writeGatewayError(w http.ResponseWriter, err error) {
	var gatewayErr *gateway.Error
	if errors.As(err, &gatewayErr) {
		response.WriteJSON(w, gatewayErr.HTTPStatus, response.Response{
			Code:    gatewayErr.HTTPStatus,
			Success: false,
			Message: gatewayErr.Message,
			Error:   string(gatewayErr.Kind),
			Data: map[string]string{
				"reasonCode":         gatewayErr.ReasonCode,
				"orderTransactionId": gatewayErr.OrderTransactionID,
			},
		})
		return
	}
	if errors.Is(err, order.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}
	response.Error(w, http.StatusInternalServerError, "Payment operation failed", err)
}

func toAuthorizationRequest(req paymentRequest) gateway.AuthorizationRequest {
	request := gateway.AuthorizationRequest{
		ClientReferenceCode: req.ClientReferenceCode,
		PaymentInstrumentID: req.PaymentInstrumentID,
		Order: gateway.Order{
			Amount:   req.Amount,
			Currency: req.Currency,
		},
	}
	if request.ClientReferenceCode == "" {
		request.ClientReferenceCode = req.OrderID
	}
	if req.Card != nil {
		request.Card = &gateway.Card{
			Token:       req.Card.Token,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
		}
	}
	if req.BillTo != nil {
		request.Order.BillTo = &gateway.BillTo{
			FirstName:  req.BillTo.FirstName,
			LastName:   req.BillTo.LastName,
			Street:     req.BillTo.Street,
			City:       req.BillTo.City,
			StateCode:  req.BillTo.StateCode,
			PostalCode: req.BillTo.PostalCode,
			Country:    req.BillTo.Country,
			Email:      req.BillTo.Email,
		}
	}
	for _, item := range req.LineItems {
		request.Order.LineItems = append(request.Order.LineItems, gateway.LineItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Taxes:     item.Taxes,
		})
	}
	return request
}

func recordPayload(record *order.TransactionRecord) map[string]any {
	return map[string]any{
		"orderId":  record.ID,
		"state":    string(record.State),
		"amount":   record.Amount,
		"currency": record.Currency,
		order.DetailsKey: map[string]any{
			"transaction_id": record.Details.TransactionID,
			"uniqid":         record.Details.UniqID,
			"amount":         record.Details.Amount,
			"status":         record.Details.Status,
		},
	}
}
