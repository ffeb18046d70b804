package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certchain/pkg/domain-errors"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type lookupRequest struct {
	CertificateID string `json:"certificate_id"`
}

func (r *lookupRequest) Normalize() {
	r.CertificateID = strings.TrimSpace(r.CertificateID)
}

func (r *lookupRequest) Validate() error {
	if r.CertificateID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "certificate_id is required")
	}
	return nil
}

type plainRequest struct {
	Name string `json:"name"`
}

func (r *plainRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestDecodeJSON(t *testing.T) {
	t.Run("normalizes then validates", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(`{"certificate_id":"  CERT-12345 "}`))
		w := httptest.NewRecorder()

		req, ok := DecodeJSON[lookupRequest](w, r, quiet)
		require.True(t, ok)
		assert.Equal(t, "CERT-12345", req.CertificateID)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(`{invalid`))
		w := httptest.NewRecorder()

		req, ok := DecodeJSON[lookupRequest](w, r, quiet)
		assert.False(t, ok)
		assert.Nil(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeError(t, w).Error)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(`{"certificate_id":"CERT-1","extra":true}`))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[lookupRequest](w, r, quiet)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("domain validation error keeps its code", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(`{"certificate_id":"   "}`))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[lookupRequest](w, r, quiet)
		assert.False(t, ok)
		resp := decodeError(t, w)
		assert.Equal(t, "bad_request", resp.Error)
		assert.Equal(t, "certificate_id is required", resp.Description)
	})

	t.Run("plain validation error becomes validation_error", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[plainRequest](w, r, quiet)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decodeError(t, w).Error)
	})
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
		retry  bool
	}{
		{dErrors.New(dErrors.CodeValidation, "missing required fields: name"), http.StatusBadRequest, "validation_error", false},
		{dErrors.New(dErrors.CodeNotFound, "issuance session not found"), http.StatusNotFound, "not_found", false},
		{dErrors.New(dErrors.CodeConflict, "locked"), http.StatusConflict, "conflict", false},
		{dErrors.New(dErrors.CodeUnavailable, "provider not detected"), http.StatusServiceUnavailable, "ledger_unavailable", true},
		{dErrors.New(dErrors.CodeLedgerRejected, "User denied transaction signature"), http.StatusBadGateway, "transaction_rejected", true},
		{dErrors.New(dErrors.CodeNetworkMismatch, "network changed"), http.StatusConflict, "network_changed", true},
		{dErrors.New(dErrors.CodeQueryFailed, "execution reverted"), http.StatusBadGateway, "query_failed", true},
		{dErrors.New(dErrors.CodeRenderUnavailable, "not mounted"), http.StatusConflict, "render_unavailable", false},
		{errors.New("dial tcp: secret detail"), http.StatusInternalServerError, "internal_error", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.retry, resp.Retry)
			assert.NotContains(t, resp.Description, "secret")
		})
	}
}
