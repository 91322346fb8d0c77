package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	domainerrors "github.com/picsapp/picsapp-server/internal/errors"
	"github.com/picsapp/picsapp-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestJSON_WritesRawBody(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"status": "ok"}, slog.New(slog.DiscardHandler))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAccepted(t *testing.T) {
	w := httptest.NewRecorder()

	Accepted(w, map[string]string{"status": "queued"}, nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"queued"}`, w.Body.String())
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()

	NoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "picture is required", nil) }, http.StatusBadRequest, "VALIDATION"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "no such file", nil) }, http.StatusNotFound, "NOT_FOUND"},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "boom", nil) }, http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
		})
	}
}

func TestHandleError_DomainError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, fmt.Errorf("upload: %w", domainerrors.PayloadTooLarge(10)), nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", body.Code)
	assert.NotNil(t, body.Details)
}

func TestHandleError_StoreError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, fmt.Errorf("like: %w", store.ErrItemNotFound), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "item not found", body.Message)
}

func TestHandleError_UnknownErrorIsHidden(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	w := httptest.NewRecorder()

	HandleError(w, errors.New("open /secret/path: permission denied"), logger)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "internal server error", body.Message)
	assert.NotContains(t, w.Body.String(), "/secret/path")
	assert.Contains(t, logs.String(), "permission denied")
}
