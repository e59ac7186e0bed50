package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable catalog error code. Callers branch
// on codes, never on message text.
type ErrorCode string

const (
	CodeSKUNotFound       ErrorCode = "SKU_NOT_FOUND"
	CodeSKUInactive       ErrorCode = "SKU_INACTIVE"
	CodeNotABundle        ErrorCode = "NOT_A_BUNDLE"
	CodeInvalidPriceList  ErrorCode = "INVALID_PRICE_LIST"
	CodePriceListExpired  ErrorCode = "PRICE_LIST_EXPIRED"
	CodeInvalidQuantity   ErrorCode = "INVALID_QUANTITY"
	CodeCircularComponent ErrorCode = "CIRCULAR_COMPONENT"
	CodeCycleDetected     ErrorCode = "CYCLE_DETECTED"
	CodeSelfReference     ErrorCode = "SELF_REFERENCE"
	CodeDepthExceeded     ErrorCode = "DEPTH_EXCEEDED"
)

var defaultMessages = map[ErrorCode]string{
	CodeSKUNotFound:       "SKU not found",
	CodeSKUInactive:       "SKU is inactive",
	CodeNotABundle:        "SKU is not a bundle",
	CodeInvalidPriceList:  "invalid price list",
	CodePriceListExpired:  "price list expired",
	CodeInvalidQuantity:   "invalid quantity",
	CodeCircularComponent: "circular component reference detected",
	CodeCycleDetected:     "circular reference detected",
	CodeSelfReference:     "entity cannot reference itself",
	CodeDepthExceeded:     "maximum depth exceeded",
}

// CatalogError is the structured error for all catalog operations.
type CatalogError struct {
	Code    ErrorCode
	SKU     string
	Message string
}

func (e *CatalogError) Error() string {
	if e.SKU != "" {
		return fmt.Sprintf("%s: %s (sku=%s)", e.Code, e.Message, e.SKU)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCatalogError builds a CatalogError with the default message for code.
func NewCatalogError(code ErrorCode, sku string) *CatalogError {
	return &CatalogError{Code: code, SKU: sku, Message: defaultMessages[code]}
}

// IsCode reports whether err is a CatalogError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// ErrCodeOf extracts the code from err, or "" if err is not a CatalogError.
func ErrCodeOf(err error) ErrorCode {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
