package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handsomefox/reelshelf/internal/collection"
)

func TestAdaptMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"Plain", errors.New("disk on fire"), http.StatusInternalServerError, "internal error"},
		{"Wrapped", fmt.Errorf("encode: %w", errors.New("broken pipe")), http.StatusInternalServerError, "internal error"},
		{"Status", badRequest("bad id"), http.StatusBadRequest, "bad id"},
		{"Domain", fmt.Errorf("remove: %w", collection.ErrNotFound), http.StatusNotFound, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Adapt(func(http.ResponseWriter, *http.Request) error { return tt.err })
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body.Error)
			assert.NotContains(t, rec.Body.String(), "disk on fire")
		})
	}
}

func TestAdaptPassesThroughSuccess(t *testing.T) {
	h := Adapt(func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
