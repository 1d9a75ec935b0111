package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(t *testing.T, max int) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimit(ctx, RateLimitConfig{Max: max, Window: time.Minute})(okHandler())
}

func hit(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/cart/quote", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRateLimit_QuotaThenRejection(t *testing.T) {
	handler := limitedHandler(t, 3)

	for i := range 3 {
		w := hit(handler, "203.0.113.7:40000")
		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := hit(handler, "203.0.113.7:40000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// The rejection body matches the API's error envelope.
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(http.StatusTooManyRequests), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_ClientsCountedSeparately(t *testing.T) {
	handler := limitedHandler(t, 1)

	assert.Equal(t, http.StatusOK, hit(handler, "10.1.0.1:1111").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "10.1.0.2:2222").Code)

	// Second request from the first client, different source port: still the
	// same client, still over quota.
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.1.0.1:9999").Code)
}

func TestRateLimit_HeadersOnEveryResponse(t *testing.T) {
	handler := limitedHandler(t, 10)

	w := hit(handler, "192.0.2.1:5000")
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_ProxiedClientIP(t *testing.T) {
	handler := limitedHandler(t, 1)

	// Behind a proxy the first X-Forwarded-For hop identifies the client,
	// not the proxy's RemoteAddr.
	req := httptest.NewRequest(http.MethodGet, "/api/product", nil)
	req.RemoteAddr = "10.0.0.250:3000"
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.250")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/api/product", nil)
	req2.RemoteAddr = "10.0.0.251:4000" // different proxy, same client
	req2.Header.Set("X-Forwarded-For", "198.51.100.9")
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}
