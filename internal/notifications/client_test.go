package notifications

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fastClient(baseURL, topic string, enabled bool) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: time.Second},
		baseURL:    baseURL,
		topic:      topic,
		enabled:    enabled && topic != "",
		maxRetries: 2,
		baseDelay:  time.Millisecond,
		maxDelay:   5 * time.Millisecond,
	}
}

func TestSendNotificationSuccess(t *testing.T) {
	var requests atomic.Int32
	var mu sync.Mutex
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		mu.Unlock()
	}))
	defer server.Close()

	client := fastClient(server.URL, "count-alerts", true)
	if err := client.SendNotification(context.Background(), "hello"); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("expected 1 request, got %d", requests.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/count-alerts" {
		t.Errorf("path = %q, want /count-alerts", gotPath)
	}
	if gotBody != "hello" {
		t.Errorf("body = %q, want hello", gotBody)
	}
}

func TestSendNotificationDisabled(t *testing.T) {
	client := NewClient("http://example.invalid", "topic", false)
	if err := client.SendNotification(context.Background(), "ignored"); err != nil {
		t.Fatalf("disabled client returned error: %v", err)
	}

	// Enabled flag without a topic still means silent
	client = NewClient("http://example.invalid", "", true)
	if err := client.SendNotification(context.Background(), "ignored"); err != nil {
		t.Fatalf("topicless client returned error: %v", err)
	}
}

func TestSendNotificationRetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}))
	defer server.Close()

	client := fastClient(server.URL, "count-alerts", true)
	if err := client.SendNotification(context.Background(), "eventually"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if requests.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", requests.Load())
	}
}

func TestSendNotificationClientErrorNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := fastClient(server.URL, "count-alerts", true)
	err := client.SendNotification(context.Background(), "rejected")
	notifErr, ok := err.(*NotificationError)
	if !ok || notifErr.Type != "client" {
		t.Fatalf("expected client error, got %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("client errors should not be retried, got %d requests", requests.Load())
	}
}

func TestSendNotificationExhaustsRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := fastClient(server.URL, "count-alerts", true)
	err := client.SendNotification(context.Background(), "never")
	notifErr, ok := err.(*NotificationError)
	if !ok || notifErr.Type != "max_retries_exceeded" {
		t.Fatalf("expected max_retries_exceeded, got %v", err)
	}
	if requests.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", requests.Load())
	}
}

func TestNotifyDegradedRun(t *testing.T) {
	var mu sync.Mutex
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = string(body)
		mu.Unlock()
	}))
	defer server.Close()

	client := fastClient(server.URL, "count-alerts", true)
	client.NotifyDegradedRun(context.Background(), "2024-03-06", []string{"RENT", "WAN_CHAI_SELL"}, 4)

	want := "Rent/sell count 2024-03-06: 2 of 4 queries degraded to 0 (RENT, WAN_CHAI_SELL)"
	mu.Lock()
	defer mu.Unlock()
	if gotBody != want {
		t.Errorf("message = %q, want %q", gotBody, want)
	}
}

func TestNotifyDegradedRunSkipsCleanRun(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	client := fastClient(server.URL, "count-alerts", true)
	client.NotifyDegradedRun(context.Background(), "2024-03-06", nil, 4)

	if requests.Load() != 0 {
		t.Errorf("clean run should not notify, got %d requests", requests.Load())
	}
}

func TestFormatRecordError(t *testing.T) {
	got := formatRecordError("2024-03-06", "Error: failed to read recorded rows")
	if !strings.Contains(got, "2024-03-06") || !strings.Contains(got, "Error: failed to read recorded rows") {
		t.Errorf("unexpected message %q", got)
	}
}

func TestNotificationErrorIsRetryable(t *testing.T) {
	cases := []struct {
		errType string
		status  int
		want    bool
	}{
		{"network", 0, true},
		{"server", 503, true},
		{"rate_limit", 429, true},
		{"auth", 401, false},
		{"client", 400, false},
		{"unknown", 502, true},
		{"unknown", 404, false},
	}

	for _, tc := range cases {
		err := &NotificationError{Type: tc.errType, StatusCode: tc.status}
		if err.IsRetryable() != tc.want {
			t.Errorf("IsRetryable(%s/%d) = %v, want %v", tc.errType, tc.status, err.IsRetryable(), tc.want)
		}
	}
}
