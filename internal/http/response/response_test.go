package response

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/librarycatalog/catalog-server/internal/errors"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Body {
	t.Helper()
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	return body
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"status": "ok"}, discard())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGraphQLError(t *testing.T) {
	w := httptest.NewRecorder()
	GraphQLError(w, http.StatusUnauthorized, "invalid or expired token", "UNAUTHENTICATED", discard())

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t,
		`{"errors":[{"message":"invalid or expired token","extensions":{"code":"UNAUTHENTICATED"}}]}`,
		w.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowed(w, "GET, POST", discard())

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
	assert.Equal(t, CodeMethodNotAllowed, decode(t, w).Errors[0].Extensions["code"])
}

func TestTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequests(w, "slow down", discard())

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, CodeRateLimited, decode(t, w).Errors[0].Extensions["code"])
}

func TestHandleError(t *testing.T) {
	t.Run("domain error keeps code and status", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := fmt.Errorf("verify: %w", domainerrors.Unauthenticated("invalid or expired token"))
		HandleError(w, err, discard())

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		body := decode(t, w)
		assert.Equal(t, "invalid or expired token", body.Errors[0].Message)
		assert.Equal(t, "UNAUTHENTICATED", body.Errors[0].Extensions["code"])
	})

	t.Run("unknown error is hidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleError(w, domainerrors.New("connection refused 10.0.0.3:27017"), discard())

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, "internal server error", body.Errors[0].Message)
		assert.Equal(t, "INTERNAL", body.Errors[0].Extensions["code"])
	})
}
