package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/jholhewres/lineclaw/pkg/lineclaw/activity"
	"github.com/jholhewres/lineclaw/pkg/lineclaw/line"
)

const testSecret = "test-channel-secret"

type dispatchRecorder struct {
	mu     sync.Mutex
	events []line.Event
	calls  int
}

func (d *dispatchRecorder) HandleEvents(ctx context.Context, events []line.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.events = append(d.events, events...)
}

func (d *dispatchRecorder) received() (int, []line.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]line.Event, len(d.events))
	copy(out, d.events)
	return d.calls, out
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newTestServer(t *testing.T) (*httptest.Server, *dispatchRecorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	recorder := &dispatchRecorder{}
	s := New(Config{}, testSecret, recorder, activity.NewLog("", activity.DefaultRetention, logger), logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, recorder
}

func postWebhook(t *testing.T, url string, body []byte, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/callback", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Line-Signature", signature)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServerAcceptsSignedDelivery(t *testing.T) {
	t.Parallel()

	srv, recorder := newTestServer(t)
	body := []byte(`{
		"destination": "U0",
		"events": [{
			"type": "message",
			"source": {"type": "user", "userId": "U1"},
			"replyToken": "rt-1",
			"message": {"id": "m-1", "type": "text", "text": "hello"}
		}]
	}`)

	resp := postWebhook(t, srv.URL, body, sign(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	calls, events := recorder.received()
	if calls != 1 || len(events) != 1 {
		t.Fatalf("expected one dispatched delivery with one event, got %d calls, %d events", calls, len(events))
	}
	if events[0].Message == nil || events[0].Message.Text != "hello" {
		t.Errorf("unexpected dispatched event: %+v", events[0])
	}
}

func TestServerRejectsInvalidSignature(t *testing.T) {
	t.Parallel()

	srv, recorder := newTestServer(t)
	body := []byte(`{"events":[]}`)

	tests := []struct {
		name      string
		signature string
	}{
		{name: "missing header", signature: ""},
		{name: "wrong key", signature: sign([]byte("different body"))},
		{name: "garbage", signature: "zzz-not-base64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postWebhook(t, srv.URL, body, tt.signature)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}

	if calls, _ := recorder.received(); calls != 0 {
		t.Errorf("rejected deliveries must not dispatch, got %d calls", calls)
	}
}

func TestServerRejectsTamperedBody(t *testing.T) {
	t.Parallel()

	srv, recorder := newTestServer(t)
	signed := []byte(`{"events":[]}`)
	tampered := []byte(`{"events":[{"type":"message"}]}`)

	resp := postWebhook(t, srv.URL, tampered, sign(signed))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for tampered body, got %d", resp.StatusCode)
	}
	if calls, _ := recorder.received(); calls != 0 {
		t.Error("tampered delivery must not dispatch")
	}
}

func TestServerRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	srv, recorder := newTestServer(t)
	body := []byte(`{"events":`)

	resp := postWebhook(t, srv.URL, body, sign(body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
	if calls, _ := recorder.received(); calls != 0 {
		t.Error("malformed delivery must not dispatch")
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/callback")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestServerHealth(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected security headers, got %q", got)
	}

	var health struct {
		Status          string `json:"status"`
		UptimeSeconds   *int   `json:"uptime_seconds"`
		ActivityEntries *int   `json:"activity_entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health payload: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("expected status ok, got %q", health.Status)
	}
	if health.UptimeSeconds == nil || health.ActivityEntries == nil {
		t.Error("expected uptime and activity counters in the health payload")
	}
}
