// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package restutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestWrapHandlerFunc(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"bad request", BadRequest(cause), http.StatusBadRequest, "boom"},
		{"forbidden", Forbidden(cause), http.StatusForbidden, "boom"},
		{"conflict", Conflict(cause), http.StatusConflict, "boom"},
		{"wrapped", pkgerrors.WithMessage(HTTPError(cause, http.StatusBadGateway), "refresh"), http.StatusBadGateway, "boom"},
		{"no cause", HTTPError(nil, http.StatusNoContent), http.StatusNoContent, ""},
		{"plain", cause, http.StatusInternalServerError, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := WrapHandlerFunc(func(http.ResponseWriter, *http.Request) error { return tt.err })
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(rec.Body.String()))
		})
	}
}

func TestHTTPErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Forbidden(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "boom", err.Error())
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.NoError(t, WriteJSON(rec, map[string]int{"a": 1}))
	assert.Equal(t, JSONContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, strings.TrimSpace(rec.Body.String()))
}
