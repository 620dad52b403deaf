package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQuotaExhausted(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"plain failure", 500, "internal error", false},
		{"http 429", 429, "", true},
		{"daily limit text", 200, "Daily limit reached for this account", true},
		{"exceeded text", 400, "message allowance exceeded", true},
		{"quota text", 403, "Quota used up", true},
		{"ok body", 200, "accepted", false},
	}

	for _, tc := range cases {
		if got := quotaExhausted(tc.status, tc.body); got != tc.want {
			t.Errorf("%s: quotaExhausted(%d, %q) = %v, want %v", tc.name, tc.status, tc.body, got, tc.want)
		}
	}
}

func TestCloudAPI_Availability(t *testing.T) {
	t.Parallel()

	if NewCloudAPI("", "").Available() {
		t.Fatal("expected unavailable without api key")
	}
	if !NewCloudAPI("key", "").Available() {
		t.Fatal("expected available with api key")
	}
}

func TestCloudAPI_Send_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		q := r.URL.Query()
		if q.Get("apikey") != "secret" {
			t.Errorf("apikey = %q", q.Get("apikey"))
		}
		if q.Get("recipients") != "573001234567" {
			t.Errorf("recipients = %q, want digits only", q.Get("recipients"))
		}
		if q.Get("message") != "LOC" {
			t.Errorf("message = %q", q.Get("message"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"error": 0},
		})
	}))
	t.Cleanup(srv.Close)

	g := NewCloudAPI("secret", srv.URL)
	res := g.Send(context.Background(), "+573001234567", "LOC")

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Method != "cloudapi" {
		t.Fatalf("method = %q", res.Method)
	}
}

func TestCloudAPI_Send_ProviderError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"error": 12, "error-text": "invalid recipient"},
		})
	}))
	t.Cleanup(srv.Close)

	g := NewCloudAPI("secret", srv.URL)
	res := g.Send(context.Background(), "+573001234567", "LOC")

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.FatalToFleet {
		t.Fatal("plain provider error must not be fleet fatal")
	}
}

func TestCloudAPI_Send_QuotaIsFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"error": 9, "error-text": "daily limit exceeded"},
		})
	}))
	t.Cleanup(srv.Close)

	g := NewCloudAPI("secret", srv.URL)
	res := g.Send(context.Background(), "+573001234567", "LOC")

	if res.Success || !res.FatalToFleet {
		t.Fatalf("expected fatal failure, got %+v", res)
	}
	if res.Reason != ReasonQuota {
		t.Fatalf("reason = %q, want %q", res.Reason, ReasonQuota)
	}
}

func TestMessagingService_Send_SuccessOn201(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "AccessKey live_key" {
			t.Errorf("Authorization = %q", got)
		}

		var body struct {
			Originator string   `json:"originator"`
			Recipients []string `json:"recipients"`
			Body       string   `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if len(body.Recipients) != 1 || body.Recipients[0] != "+573001234567" {
			t.Errorf("recipients = %v, want +E.164", body.Recipients)
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "msg-123"})
	}))
	t.Cleanup(srv.Close)

	g := NewMessagingService("live_key", "FleetTracker", srv.URL)
	res := g.Send(context.Background(), "+573001234567", "LOC")

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.ProviderRef != "msg-123" {
		t.Fatalf("provider ref = %q", res.ProviderRef)
	}
}

func TestMessagingService_Send_Non201IsNonFatalFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"code": 2, "description": "authentication failed"}},
		})
	}))
	t.Cleanup(srv.Close)

	g := NewMessagingService("bad_key", "", srv.URL)
	res := g.Send(context.Background(), "+573001234567", "LOC")

	if res.Success || res.FatalToFleet {
		t.Fatalf("expected non-fatal failure, got %+v", res)
	}
}

func TestBatch_Send(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plan-1/batches" {
			t.Errorf("path = %q, want plan-scoped batches endpoint", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "batch-9"})
	}))
	t.Cleanup(srv.Close)

	g := NewBatch("plan-1", "tok", "447418631073", srv.URL)
	if !g.Available() {
		t.Fatal("expected available with plan id and token")
	}

	res := g.Send(context.Background(), "+573001234567", "LOC")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestBatch_AvailabilityNeedsBothCredentials(t *testing.T) {
	t.Parallel()

	if NewBatch("plan", "", "", "").Available() {
		t.Fatal("expected unavailable without token")
	}
	if NewBatch("", "tok", "", "").Available() {
		t.Fatal("expected unavailable without plan id")
	}
}

func TestBatch_QuotaStatusIsFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	g := NewBatch("plan-1", "tok", "", srv.URL)
	res := g.Send(context.Background(), "+573001234567", "LOC")

	if !res.FatalToFleet {
		t.Fatalf("expected HTTP 429 to be fleet fatal, got %+v", res)
	}
}
