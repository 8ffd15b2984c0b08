package validator

import "testing"

type withdrawalRequest struct {
	WalletID string `json:"wallet_id" validate:"required,uuid"`
	Amount   string `json:"amount" validate:"required,amount"`
	Currency string `json:"currency" validate:"omitempty,currency"`
	Code     string `json:"code" validate:"omitempty,len=6,numeric"`
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	req := withdrawalRequest{
		WalletID: "4c8f1f5e-2f7a-4a8e-9d3b-3f1f0e6f3a11",
		Amount:   "120.50",
		Currency: "kzt",
		Code:     "042917",
	}
	if errs := Validate(req); errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidateReportsFieldsByJSONName(t *testing.T) {
	errs := Validate(withdrawalRequest{Amount: "1.001", Currency: "BTC", Code: "12ab56"})
	for _, field := range []string{"wallet_id", "amount", "currency", "code"} {
		if _, ok := errs[field]; !ok {
			t.Fatalf("expected error for %s, got %v", field, errs)
		}
	}
}
