package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	redisclient "github.com/angelmondragon/pos-backend/pkg/redis"
)

func newRedis(t *testing.T) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// post builds a request as chi would see it after routing to pattern.
func post(pattern, body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, pattern, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

type countingHandler struct {
	calls  int
	status int
	body   string
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.calls++
	if h.body != "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(h.status)
	_, _ = w.Write([]byte(h.body))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestReplayWindowByRoute(t *testing.T) {
	cases := map[string]struct {
		method, pattern string
		want            time.Duration
	}{
		"checkout":       {http.MethodPost, "/api/v1/cart/checkout", saleReplayWindow},
		"direct sale":    {http.MethodPost, "/api/v1/sales", saleReplayWindow},
		"create product": {http.MethodPost, "/api/v1/products", catalogReplayWindow},
		"add cart item":  {http.MethodPost, "/api/v1/cart/items", catalogReplayWindow},
		"list sales":     {http.MethodGet, "/api/v1/sales", 0},
		"login":          {http.MethodPost, "/api/v1/auth/login", 0},
	}
	for name, tc := range cases {
		got, ok := replayWindow(tc.method, tc.pattern)
		require.Equal(t, tc.want != 0, ok, name)
		require.Equal(t, tc.want, got, name)
	}
}

func TestIdempotencyLeavesUnguardedRoutesAlone(t *testing.T) {
	client, mr := newRedis(t)
	h := &countingHandler{status: http.StatusNoContent}

	rec := httptest.NewRecorder()
	Idempotency(client, nil)(h).ServeHTTP(rec, post("/api/v1/auth/logout", "", ""))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, mr.Keys())
}

func TestIdempotencyKeyHeaderRequired(t *testing.T) {
	client, _ := newRedis(t)
	h := &countingHandler{status: http.StatusCreated}

	rec := httptest.NewRecorder()
	Idempotency(client, nil)(h).ServeHTTP(rec, post("/api/v1/sales", `{}`, ""))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, h.calls)
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	client, mr := newRedis(t)
	h := &countingHandler{status: http.StatusCreated, body: `{"saleId":"s-1"}`}
	mw := Idempotency(client, nil)(h)

	first := httptest.NewRecorder()
	mw.ServeHTTP(first, post("/api/v1/cart/checkout", `{"tender":"20.00"}`, "tap-1"))
	require.Equal(t, http.StatusCreated, first.Code)
	require.Empty(t, first.Header().Get(IdempotencyReplayedHeader))

	key := client.IdempotencyKey("|POST|/api/v1/cart/checkout", "tap-1")
	require.Equal(t, saleReplayWindow, mr.TTL(key))

	second := httptest.NewRecorder()
	mw.ServeHTTP(second, post("/api/v1/cart/checkout", `{"tender":"20.00"}`, "tap-1"))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get(IdempotencyReplayedHeader))
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.JSONEq(t, `{"saleId":"s-1"}`, second.Body.String())
	require.Equal(t, 1, h.calls)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	client, mr := newRedis(t)
	h := &countingHandler{status: http.StatusServiceUnavailable}
	mw := Idempotency(client, nil)(h)

	for range 2 {
		mw.ServeHTTP(httptest.NewRecorder(), post("/api/v1/cart/checkout", `{}`, "retry-me"))
	}
	require.Equal(t, 2, h.calls)
	require.Empty(t, mr.Keys())
}

func TestIdempotencyStoresClientErrors(t *testing.T) {
	client, _ := newRedis(t)
	h := &countingHandler{status: http.StatusConflict, body: `{"error":{"code":"INSUFFICIENT_STOCK"}}`}
	mw := Idempotency(client, nil)(h)

	for range 2 {
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, post("/api/v1/cart/checkout", `{}`, "short"))
		require.Equal(t, http.StatusConflict, rec.Code)
	}
	require.Equal(t, 1, h.calls)
}

func TestIdempotencyKeysAreScopedPerOperator(t *testing.T) {
	client, _ := newRedis(t)
	h := &countingHandler{status: http.StatusCreated}
	mw := Idempotency(client, nil)(h)

	for _, user := range []string{"cashier-a", "cashier-b"} {
		req := post("/api/v1/sales", `{}`, "same-key")
		mw.ServeHTTP(httptest.NewRecorder(), req.WithContext(WithUserID(req.Context(), user)))
	}
	require.Equal(t, 2, h.calls)
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	client, _ := newRedis(t)
	h := &countingHandler{status: http.StatusOK}
	mw := Idempotency(client, nil)(h)

	mw.ServeHTTP(httptest.NewRecorder(), post("/api/v1/sales", `{"total":"10.00"}`, "xyz"))
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, post("/api/v1/sales", `{"total":"99.00"}`, "xyz"))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
	require.Equal(t, 1, h.calls)
}

func TestIdempotencyRejectsDuplicateWhileFirstIsRunning(t *testing.T) {
	client, _ := newRedis(t)
	var mw http.Handler
	var dupCode, calls int
	mw = Idempotency(client, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, post("/api/v1/cart/checkout", `{"tender":"20.00"}`, "tap"))
			dupCode = rec.Code
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, post("/api/v1/cart/checkout", `{"tender":"20.00"}`, "tap"))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, http.StatusConflict, dupCode)
	require.Equal(t, 1, calls)
}
