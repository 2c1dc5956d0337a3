package gateway

import (
	"testing"
)

func TestAuthorizationRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		request AuthorizationRequest
		wantErr bool
	}{
		{
			name:    "Card only",
			request: AuthorizationRequest{Card: &Card{Token: "tok"}},
			wantErr: false,
		},
		{
			name:    "Instrument only",
			request: AuthorizationRequest{PaymentInstrumentID: "pi_1"},
			wantErr: false,
		},
		{
			name:    "Both card and instrument",
			request: AuthorizationRequest{Card: &Card{Token: "tok"}, PaymentInstrumentID: "pi_1"},
			wantErr: true,
		},
		{
			name:    "Neither card nor instrument",
			request: AuthorizationRequest{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildCard_MonthPadding(t *testing.T) {
	payload := BuildCard(Card{Token: "tok", ExpiryMonth: "9", ExpiryYear: "2030"})
	card := payload["paymentInformation"].(map[string]any)["card"].(map[string]any)
	if card["expirationMonth"] != "09" {
		t.Errorf("expirationMonth = %v, want 09", card["expirationMonth"])
	}
	if card["expirationYear"] != "2030" {
		t.Errorf("expirationYear = %v, want 2030", card["expirationYear"])
	}
	token := payload["tokenInformation"].(map[string]any)
	if token["transientTokenJwt"] != "tok" {
		t.Errorf("transientTokenJwt = %v, want tok", token["transientTokenJwt"])
	}
}

func TestBuildBillTo_OmitsEmptyFields(t *testing.T) {
	payload := BuildBillTo(BillTo{
		FirstName: "Jane",
		LastName:  "Doe",
		City:      "Portland",
		StateCode: "US-OR",
		Country:   "US",
	})

	for _, absent := range []string{"address1", "postalCode", "email"} {
		if _, ok := payload[absent]; ok {
			t.Errorf("empty field %s was not omitted", absent)
		}
	}
	if payload["administrativeArea"] != "OR" {
		t.Errorf("administrativeArea = %v, want OR", payload["administrativeArea"])
	}
	if payload["locality"] != "Portland" {
		t.Errorf("locality = %v, want Portland", payload["locality"])
	}
}

func TestStateFromShortCode(t *testing.T) {
	tests := []struct {
		shortCode string
		want      string
	}{
		{shortCode: "US-CA", want: "CA"},
		{shortCode: "TR-34", want: "34"},
		{shortCode: "US", want: ""},
		{shortCode: "", want: ""},
	}

	for _, tt := range tests {
		if got := stateFromShortCode(tt.shortCode); got != tt.want {
			t.Errorf("stateFromShortCode(%q) = %q, want %q", tt.shortCode, got, tt.want)
		}
	}
}

func TestBuildLineItems(t *testing.T) {
	lines := BuildLineItems([]LineItem{
		{Name: "Widget", Quantity: 2, UnitPrice: 9.5, Taxes: []float64{1.0, 2.5}},
		{Name: "Gadget", Quantity: 1, UnitPrice: 20},
	})

	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if lines[0]["number"] != 1 || lines[1]["number"] != 2 {
		t.Errorf("line numbering is not 1-based: %v, %v", lines[0]["number"], lines[1]["number"])
	}
	if lines[0]["unitPrice"] != "9.50" {
		t.Errorf("unitPrice = %v, want 9.50", lines[0]["unitPrice"])
	}
	// Several taxes on one line keep only the last value. Longstanding
	// behavior the processor payload depends on; do not change to a sum.
	if lines[0]["taxAmount"] != "2.50" {
		t.Errorf("taxAmount = %v, want the last tax 2.50", lines[0]["taxAmount"])
	}
	if _, ok := lines[1]["taxAmount"]; ok {
		t.Error("a line without taxes carries a taxAmount")
	}
}

func TestBuildClientReference(t *testing.T) {
	if got := BuildClientReference("order-7"); got["code"] != "order-7" {
		t.Errorf("code = %v, want order-7", got["code"])
	}
	if got := BuildClientReference(""); got["code"] != "0" {
		t.Errorf(`empty code = %v, want the "0" default`, got["code"])
	}
}

func TestBuildReversalPayload(t *testing.T) {
	payload := BuildReversalPayload(AuthorizationRequest{
		ClientReferenceCode: "order-7",
		Order:               Order{Amount: 100.5, Currency: "USD"},
	})

	reversal := payload["reversalInformation"].(map[string]any)
	if reversal["reason"] != reversalReason {
		t.Errorf("reason = %v, want %q", reversal["reason"], reversalReason)
	}
	amount := reversal["amountDetails"].(map[string]any)
	if amount["totalAmount"] != "100.50" {
		t.Errorf("totalAmount = %v, want 100.50", amount["totalAmount"])
	}
	if _, ok := amount["currency"]; ok {
		t.Error("reversal amountDetails must not carry a currency")
	}
}

func TestBuildAuthorizationPayload(t *testing.T) {
	request := testAuthRequest()
	request.Order.BillTo = &BillTo{FirstName: "Jane", Country: "US"}

	payload, err := BuildAuthorizationPayload(request)
	if err != nil {
		t.Fatalf("BuildAuthorizationPayload() error = %v", err)
	}
	if _, ok := payload["tokenInformation"]; !ok {
		t.Error("card token fragment missing")
	}
	orderInfo := payload["orderInformation"].(map[string]any)
	if _, ok := orderInfo["billTo"]; !ok {
		t.Error("billTo missing from the order information")
	}

	request.Card = nil
	request.PaymentInstrumentID = "pi_1"
	payload, err = BuildAuthorizationPayload(request)
	if err != nil {
		t.Fatalf("BuildAuthorizationPayload() error = %v", err)
	}
	instrument := payload["paymentInformation"].(map[string]any)["paymentInstrument"].(map[string]any)
	if instrument["id"] != "pi_1" {
		t.Errorf("paymentInstrument.id = %v, want pi_1", instrument["id"])
	}
}

func TestBuildAuthorizationPayload_Invalid(t *testing.T) {
	if _, err := BuildAuthorizationPayload(AuthorizationRequest{}); err == nil {
		t.Error("expected validation error for a request with no payment method")
	}
}

func TestMergePayload(t *testing.T) {
	dst := map[string]any{
		"paymentInformation": map[string]any{"card": map[string]any{"expirationMonth": "09"}},
	}
	mergePayload(dst, map[string]any{
		"paymentInformation": map[string]any{"paymentInstrument": map[string]any{"id": "pi_1"}},
		"tokenInformation":   map[string]any{"transientTokenJwt": "tok"},
	})

	info := dst["paymentInformation"].(map[string]any)
	if _, ok := info["card"]; !ok {
		t.Error("merge dropped the existing card fragment")
	}
	if _, ok := info["paymentInstrument"]; !ok {
		t.Error("merge did not fold in the instrument fragment")
	}
	if _, ok := dst["tokenInformation"]; !ok {
		t.Error("merge did not copy the new top-level key")
	}
}
