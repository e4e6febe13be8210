package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/agentdesk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// envelope 用于解码带类型的响应
type envelope[T any] struct {
	Success   bool       `json:"success"`
	Data      T          `json:"data"`
	Error     *ErrorInfo `json:"error"`
	RequestID string     `json:"request_id"`
}

func decodeEnvelope[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env), w.Body.String())
	return env
}

func jsonDecode(w *httptest.ResponseRecorder, dst any) error {
	return json.NewDecoder(w.Body).Decode(dst)
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, []int{1, 2, 3})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, "[1,2,3]", w.Body.String())
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req-1")
	WriteSuccess(w, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[map[string]string](t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "value", env.Data["key"])
	assert.Nil(t, env.Error)
	assert.Equal(t, "req-1", env.RequestID)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        *types.Error
		wantStatus int
	}{
		{"explicit status", types.NewError(types.ErrInvalidRequest, "bad").WithHTTPStatus(http.StatusTeapot), http.StatusTeapot},
		{"invalid request", types.NewError(types.ErrInvalidRequest, "bad"), http.StatusBadRequest},
		{"config invalid", types.NewConfigError("routing target %q", "X"), http.StatusBadRequest},
		{"agent not found", types.NewError(types.ErrAgentNotFound, "missing"), http.StatusNotFound},
		{"agent exists", types.NewError(types.ErrAgentExists, "dup"), http.StatusConflict},
		{"agent limit", types.NewError(types.ErrAgentLimit, "full"), http.StatusUnprocessableEntity},
		{"agent protected", types.NewError(types.ErrAgentProtected, "triage"), http.StatusForbidden},
		{"unauthorized", types.NewError(types.ErrUnauthorized, "no"), http.StatusUnauthorized},
		{"rate limit", types.NewError(types.ErrRateLimit, "slow"), http.StatusTooManyRequests},
		{"session closed", types.NewError(types.ErrSessionClosed, "closed"), http.StatusServiceUnavailable},
		{"timeout", types.NewError(types.ErrUpstreamTimeout, "late"), http.StatusGatewayTimeout},
		{"persistence", types.NewError(types.ErrPersistence, "disk"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decodeEnvelope[any](t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(tt.err.Code), env.Error.Code)
			assert.Equal(t, tt.err.Message, env.Error.Message)
		})
	}
}

func TestWriteFailure(t *testing.T) {
	t.Run("typed error is unwrapped", func(t *testing.T) {
		w := httptest.NewRecorder()
		wrapped := errors.Join(errors.New("context"), types.NewError(types.ErrAgentNotFound, "agent \"X\" not found"))
		WriteFailure(w, wrapped, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		env := decodeEnvelope[any](t, w)
		assert.Equal(t, string(types.ErrAgentNotFound), env.Error.Code)
	})

	t.Run("plain error hides details", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteFailure(w, errors.New("dial tcp 10.0.0.1: refused"), nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		env := decodeEnvelope[any](t, w)
		assert.Equal(t, "internal error", env.Error.Message)
		assert.NotContains(t, w.Body.String(), "10.0.0.1")
	})
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Message string `json:"message"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"message":"hi"}`, false},
		{"malformed", `{"message":`, true},
		{"unknown field", `{"message":"hi","extra":1}`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.body == "" {
				r.Body = http.NoBody
			}
			var dst payload
			err := DecodeJSONBody(w, r, &dst, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "hi", dst.Message)
		})
	}
}

func TestDecodeJSONBody_TooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	big := `{"message":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))

	var dst map[string]string
	assert.Error(t, DecodeJSONBody(w, r, &dst, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"Application/JSON", true},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.Header.Set("Content-Type", tt.contentType)

			assert.Equal(t, tt.want, ValidateContentType(w, r, nil))
			if !tt.want {
				assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)
	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusCreated, rw.StatusCode)
	assert.Equal(t, int64(5), rw.Bytes)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	_, _ = rw.Write([]byte("x"))
	assert.True(t, rw.Written)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
}
