package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "certchain/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// ErrorResponse is the JSON body of every error reply. Retry marks failures
// the caller may repeat as an explicit user action.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Retry       bool   `json:"retry,omitempty"`
}

// WriteError centralizes domain error translation to HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), ErrorResponse{
			Error:       DomainCodeToHTTPCode(domainErr.Code),
			Description: domainErr.Message,
			Retry:       Retryable(domainErr.Code),
		})
		return
	}

	// Unexpected errors never leak their text.
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeNetworkMismatch, dErrors.CodeRenderUnavailable:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeLedgerRejected, dErrors.CodeQueryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the error string of
// the JSON response.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation:
		return "validation_error"
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeUnavailable:
		return "ledger_unavailable"
	case dErrors.CodeLedgerRejected:
		return "transaction_rejected"
	case dErrors.CodeNetworkMismatch:
		return "network_changed"
	case dErrors.CodeQueryFailed:
		return "query_failed"
	case dErrors.CodeRenderUnavailable:
		return "render_unavailable"
	default:
		return "internal_error"
	}
}

// Retryable reports whether the client should offer an explicit retry.
// Nothing is retried server side.
func Retryable(code dErrors.Code) bool {
	switch code {
	case dErrors.CodeUnavailable, dErrors.CodeLedgerRejected, dErrors.CodeQueryFailed, dErrors.CodeNetworkMismatch:
		return true
	default:
		return false
	}
}
