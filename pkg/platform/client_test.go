package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adpilot-hq/adpilot/pkg/config"
	"adpilot-hq/adpilot/pkg/ledger"
)

func testRequest() *ChangeRequest {
	return &ChangeRequest{
		AccountID: "acc-1",
		EntityID:  "cmp-1",
		Lever:     ledger.LeverBudget,
		NewValue:  105,
	}
}

func newTestClient(serverURL string) *HTTPClient {
	return NewHTTPClient(&config.PlatformConfig{
		Endpoint: serverURL,
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
	})
}

func TestApplySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/acc-1/changes" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		w.Write([]byte(`{"success": true, "old_value": 100, "new_value": 105}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Apply(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.OldValue != 100 || result.NewValue != 105 {
		t.Errorf("result = %+v", result)
	}
}

func TestApplyClassifiesServerErrorsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Apply(context.Background(), testRequest())
	if !IsTransient(err) {
		t.Errorf("502 error classified as %T, want transient", err)
	}
}

func TestApplyParsesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Apply(context.Background(), testRequest())
	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("429 error classified as %T, want transient", err)
	}
	if te.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", te.RetryAfter)
	}
}

func TestApplyClassifiesClientErrorsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "unknown entity"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Apply(context.Background(), testRequest())
	var pe *PermanentError
	if !errors.As(err, &pe) {
		t.Fatalf("400 error classified as %T, want permanent", err)
	}
	if pe.Reason != "unknown entity" {
		t.Errorf("reason = %q, want the server's error detail", pe.Reason)
	}
	if IsTransient(err) {
		t.Error("permanent error also classified transient")
	}
}

func TestApplyRejectedChangeIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Apply(context.Background(), testRequest())
	if !IsPermanent(err) {
		t.Errorf("rejected change classified as %T, want permanent", err)
	}
}

func TestApplyNetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	_, err := newTestClient(server.URL).Apply(context.Background(), testRequest())
	if !IsTransient(err) {
		t.Errorf("connection failure classified as %T, want transient", err)
	}
}

func TestMockClientScripts(t *testing.T) {
	mock := NewMockClient()
	mock.SetOldValue("cmp-1", 100)
	mock.ScriptError("cmp-1", NewTransientError(errors.New("rate limited"), 0))

	ctx := context.Background()

	_, err := mock.Apply(ctx, testRequest())
	if !IsTransient(err) {
		t.Fatalf("first call error = %v, want scripted transient", err)
	}

	result, err := mock.Apply(ctx, testRequest())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if result.OldValue != 100 || result.NewValue != 105 {
		t.Errorf("result = %+v", result)
	}
	if mock.CallCount("cmp-1") != 2 {
		t.Errorf("call count = %d, want 2", mock.CallCount("cmp-1"))
	}
}

func TestRateLimitedClientHonorsCancellation(t *testing.T) {
	// Burst 1 at a very slow refill: the second call must wait, and a
	// cancelled context must abort that wait.
	limited := NewRateLimitedClient(NewMockClient(), 0.001, 1)

	ctx := context.Background()
	if _, err := limited.Apply(ctx, testRequest()); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := limited.Apply(cancelled, testRequest()); err == nil {
		t.Error("second Apply succeeded despite exhausted limiter and cancelled context")
	}
}

func TestRateLimitersArePerAccount(t *testing.T) {
	limited := NewRateLimitedClient(NewMockClient(), 0.001, 1)

	ctx := context.Background()
	if _, err := limited.Apply(ctx, testRequest()); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	other := testRequest()
	other.AccountID = "acc-2"
	if _, err := limited.Apply(ctx, other); err != nil {
		t.Errorf("other account throttled by acc-1's limiter: %v", err)
	}
}
