package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pricebook/internal/domain"

	"go.uber.org/zap"
)

func TestRespondWithErrorShape(t *testing.T) {
	w := httptest.NewRecorder()

	RespondWithError(w, http.StatusNotFound, "product not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if resp.Error.Message != "product not found" {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}
	if resp.Error.Timestamp == "" {
		t.Error("expected a timestamp")
	}
}

func TestRespondWithCatalogErrorStatusMapping(t *testing.T) {
	tests := []struct {
		code   domain.ErrorCode
		status int
	}{
		{domain.CodeSKUNotFound, http.StatusNotFound},
		{domain.CodeInvalidQuantity, http.StatusBadRequest},
		{domain.CodeInvalidPriceList, http.StatusBadRequest},
		{domain.CodePriceListExpired, http.StatusBadRequest},
		{domain.CodeSKUInactive, http.StatusUnprocessableEntity},
		{domain.CodeNotABundle, http.StatusUnprocessableEntity},
		{domain.CodeCircularComponent, http.StatusConflict},
		{domain.CodeSelfReference, http.StatusConflict},
		{domain.CodeDepthExceeded, http.StatusConflict},
		{domain.CodeCycleDetected, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondWithCatalogError(w, domain.NewCatalogError(tt.code, "SKU-1"))

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("body is not valid JSON: %v", err)
			}
			if resp.Error.Code != string(tt.code) {
				t.Errorf("expected code %s in body, got %s", tt.code, resp.Error.Code)
			}
			if resp.Error.SKU != "SKU-1" {
				t.Errorf("expected sku echo, got %q", resp.Error.SKU)
			}
		})
	}
}

func TestErrorHandlingMiddlewareRecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after panic, got %d", w.Code)
	}
}

func TestRespondWithJSON(t *testing.T) {
	w := httptest.NewRecorder()

	RespondWithJSON(w, http.StatusCreated, map[string]string{"sku": "A"})

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if body["sku"] != "A" {
		t.Errorf("unexpected body %v", body)
	}
}
