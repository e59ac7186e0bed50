package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

type samplePayload struct {
	SKU   string `json:"sku" validate:"required,max=100"`
	Qty   int    `json:"qty" validate:"gt=0"`
	Notes string `json:"notes" validate:"max=10"`
}

func TestDecodeAndValidateAcceptsValidPayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/",
		bytes.NewBufferString(`{"sku":"A","qty":3}`))

	var payload samplePayload
	if err := DecodeAndValidate(req, &payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.SKU != "A" || payload.Qty != 3 {
		t.Errorf("payload not decoded: %+v", payload)
	}
}

func TestDecodeAndValidateRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/",
		bytes.NewBufferString(`{"sku":`))

	var payload samplePayload
	if err := DecodeAndValidate(req, &payload); err == nil {
		t.Error("expected a decode error")
	}
}

func TestFormatValidationErrors(t *testing.T) {
	err := ValidateRequest(samplePayload{Qty: 0, Notes: "this is far too long"})
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	formatted := FormatValidationErrors(err)
	if len(formatted) != 3 {
		t.Fatalf("expected 3 field errors, got %d: %v", len(formatted), formatted)
	}

	byField := make(map[string]string)
	for _, fe := range formatted {
		byField[fe.Field] = fe.Message
	}
	if byField["SKU"] != "this field is required" {
		t.Errorf("unexpected message for SKU: %q", byField["SKU"])
	}
	if byField["Qty"] != "must be greater than 0" {
		t.Errorf("unexpected message for Qty: %q", byField["Qty"])
	}
	if byField["Notes"] != "must be at most 10 characters" {
		t.Errorf("unexpected message for Notes: %q", byField["Notes"])
	}
}

func TestFormatValidationErrorsIgnoresOtherErrors(t *testing.T) {
	if formatted := FormatValidationErrors(http.ErrBodyNotAllowed); formatted != nil {
		t.Errorf("expected nil for non-validator errors, got %v", formatted)
	}
}
