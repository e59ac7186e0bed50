package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"pricebook/internal/domain"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	SKU       string                 `json:"sku,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithDetail(w, statusCode, ErrorDetail{
		Code:    http.StatusText(statusCode),
		Message: message,
	})
}

// RespondWithCatalogError maps a catalog error code to an HTTP status and
// echoes the code and offending SKU so callers can branch without string
// matching.
func RespondWithCatalogError(w http.ResponseWriter, err *domain.CatalogError) {
	respondWithDetail(w, catalogErrorStatus(err.Code), ErrorDetail{
		Code:    string(err.Code),
		Message: err.Message,
		SKU:     err.SKU,
	})
}

func catalogErrorStatus(code domain.ErrorCode) int {
	switch code {
	case domain.CodeSKUNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidQuantity, domain.CodeInvalidPriceList, domain.CodePriceListExpired:
		return http.StatusBadRequest
	case domain.CodeSKUInactive, domain.CodeNotABundle:
		return http.StatusUnprocessableEntity
	case domain.CodeCircularComponent, domain.CodeCycleDetected,
		domain.CodeSelfReference, domain.CodeDepthExceeded:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondWithDetail(w http.ResponseWriter, statusCode int, detail ErrorDetail) {
	detail.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	respondWithDetail(w, http.StatusBadRequest, ErrorDetail{
		Code:    http.StatusText(http.StatusBadRequest),
		Message: "validation failed",
		Details: map[string]interface{}{"validation_errors": errors},
	})
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
