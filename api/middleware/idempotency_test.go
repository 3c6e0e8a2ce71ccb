package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) ReleaseLock(_ context.Context, key, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[key] != token {
		return false, nil
	}
	delete(f.data, key)
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

const paymentsPath = "/api/v1/orders/3f1c/payments"

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func paymentRequest(key, body string) *http.Request {
	req := requestWithPattern(http.MethodPost, paymentsPath, "/api/v1/orders/{id}/payments", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func decodeErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"order payment", http.MethodPost, "/api/v1/orders/{id}/payments", criticalIdempotencyTTL, true},
		{"bill payment", http.MethodPost, "/api/v1/bills/123/payments", criticalIdempotencyTTL, true},
		{"manual transaction", http.MethodPost, "/api/v1/transactions", criticalIdempotencyTTL, true},
		{"order status", http.MethodPost, "/api/v1/orders/{id}/status", defaultIdempotencyTTL, true},
		{"bill status", http.MethodPost, "/api/v1/bills/abc/status", defaultIdempotencyTTL, true},
		{"create order", http.MethodPost, "/api/v1/orders", defaultIdempotencyTTL, true},
		{"item edit", http.MethodPut, "/api/v1/orders/{id}/items", 0, false},
		{"reads", http.MethodGet, "/api/v1/transactions", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestRoutePatternFallsBackToPathWhileRouting(t *testing.T) {
	req := requestWithPattern(http.MethodPost, paymentsPath, "/api/*", nil)
	if got := routePattern(req); got != paymentsPath {
		t.Fatalf("expected raw path, got %s", got)
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("", `{"amount":"10"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("abc", `{"amount":"10"}`))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, paymentRequest("abc", `{"amount":"10"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get(replayedHeader) != "true" {
		t.Fatalf("expected replay to be flagged")
	}
	if resp.Header().Get(replayedHeader) != "" {
		t.Fatalf("first response must not be flagged as a replay")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	for key := range store.data {
		if strings.HasSuffix(key, ":lock") {
			t.Fatalf("lock %s should be released after completion", key)
		}
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), paymentRequest("xyz", `{"amount":"10"}`))

	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("xyz", `{"amount":"11"}`))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp.Body.Bytes()); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, code)
	}
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
	})

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		mw(handler).ServeHTTP(first, paymentRequest("dup", `{"amount":"10"}`))
	}()
	<-entered

	second := httptest.NewRecorder()
	mw(handler).ServeHTTP(second, paymentRequest("dup", `{"amount":"10"}`))
	close(release)
	<-done

	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 for in-flight duplicate got %d", second.Code)
	}
	if code := decodeErrorCode(t, second.Body.Bytes()); code != string(pkgerrors.CodeInFlight) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeInFlight, code)
	}
	if first.Code != http.StatusCreated {
		t.Fatalf("first request should complete, got %d", first.Code)
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDoesNotStoreServerFaults(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), paymentRequest("retry", `{"amount":"10"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("retry", `{"amount":"10"}`))

	if resp.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("expected retry to reach handler, status=%d calls=%d", resp.Code, calls)
	}
}

func TestIdempotencyMiddlewareReplaysPartialWrite(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	mw(handler).ServeHTTP(httptest.NewRecorder(), paymentRequest("partial", `{"amount":"10"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, paymentRequest("partial", `{"amount":"10"}`))

	if resp.Code != http.StatusBadGateway || calls != 1 {
		t.Fatalf("partial write must replay, status=%d calls=%d", resp.Code, calls)
	}
}
