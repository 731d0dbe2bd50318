package debug

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Flgjfvevdk/pilot-together/internal/config"
	"github.com/Flgjfvevdk/pilot-together/internal/journal"
	"github.com/Flgjfvevdk/pilot-together/internal/render"
	"github.com/Flgjfvevdk/pilot-together/internal/session"
)

// blockingDialer never connects, which keeps a session in Connecting
type blockingDialer struct{}

func (blockingDialer) Dial(ctx context.Context, url string) (session.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestRouter(t *testing.T, j *journal.Journal) *httptest.Server {
	t.Helper()
	c := session.New(session.Config{URL: "ws://example.invalid/ws"}, session.Deps{Dialer: blockingDialer{}})
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	for c.State() != session.Connecting {
		time.Sleep(time.Millisecond)
	}

	ts := httptest.NewServer(NewRouter(RouterConfig{
		Session:        c,
		Renderer:       render.New(render.Config{Width: 160, Height: 120}),
		Journal:        j,
		DisableLogging: true,
	}))
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-c.Done()
	})
	return ts
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Read body failed: %v", err)
	}
	return resp, body
}

// TestHealthAndMetrics tests the plain endpoints
func TestHealthAndMetrics(t *testing.T) {
	ts := newTestRouter(t, nil)

	resp, body := get(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("Expected 200 OK, got %d %q", resp.StatusCode, body)
	}

	resp, body = get(t, ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "client_connection_state") {
		t.Error("Expected client metrics in /metrics output")
	}

	resp, _ = get(t, ts.URL+"/debug/pprof/")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected pprof index, got %d", resp.StatusCode)
	}
}

// TestStateEndpoints tests the session views
func TestStateEndpoints(t *testing.T) {
	ts := newTestRouter(t, nil)

	resp, body := get(t, ts.URL+"/debug/state")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}
	var state StateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("Bad state body: %v", err)
	}
	if state.Status.State != session.Connecting {
		t.Errorf("Expected connecting, got %v", state.Status.State)
	}
	if state.Weapons.Slots != 4 || state.Weapons.Selected != 1 {
		t.Errorf("Expected 4 slots with weapon 1, got %+v", state.Weapons)
	}

	_, body = get(t, ts.URL+"/debug/status")
	if !strings.Contains(string(body), `"state":"connecting"`) {
		t.Errorf("Expected connecting status, got %s", body)
	}

	resp, body = get(t, ts.URL+"/debug/scene")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Errorf("Bad scene body: %v", err)
	}

	resp, _ = get(t, ts.URL+"/debug/roster")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

// TestFrameEndpoint tests PNG rendering of the session
func TestFrameEndpoint(t *testing.T) {
	ts := newTestRouter(t, nil)

	resp, err := http.Get(ts.URL + "/debug/frame.png")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 120 {
		t.Errorf("Expected 160x120, got %v", b)
	}
}

// TestProtocolEndpoint tests the schema document
func TestProtocolEndpoint(t *testing.T) {
	ts := newTestRouter(t, nil)

	_, body := get(t, ts.URL+"/debug/protocol")
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("Bad schema document: %v", err)
	}
	if _, ok := doc["rotate_shoot"]; !ok {
		t.Error("Expected rotate_shoot in schema document")
	}
}

// TestJournalEndpoint tests recent journal records and limits
func TestJournalEndpoint(t *testing.T) {
	resp, _ := get(t, newTestRouter(t, nil).URL+"/debug/journal")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without journal, got %d", resp.StatusCode)
	}

	j := journal.New()
	j.StartWriter(nil)
	defer j.Stop()
	j.Record(journal.Outbound, "key_down", []byte(`{"event":"key_down","data":{"key":"up"}}`))
	j.Record(journal.Outbound, "key_up", []byte(`{"event":"key_up","data":{"key":"up"}}`))
	ts := newTestRouter(t, j)

	_, body := get(t, ts.URL+"/debug/journal?n=1")
	var got JournalResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("Bad journal body: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0].Event != "key_up" {
		t.Errorf("Expected the latest record only, got %+v", got.Records)
	}
	if got.Stats.Total != 2 {
		t.Errorf("Expected 2 total, got %d", got.Stats.Total)
	}

	resp, _ = get(t, ts.URL+"/debug/journal?n=zero")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

// TestListenAddr tests that the debug server stays on loopback
func TestListenAddr(t *testing.T) {
	t.Setenv("ALLOW_DEBUG_EXTERNAL", "")

	tests := []struct {
		in, want string
	}{
		{"127.0.0.1:6060", "127.0.0.1:6060"},
		{"localhost:7000", "localhost:7000"},
		{"0.0.0.0:6060", "127.0.0.1:6060"},
		{":9000", "127.0.0.1:9000"},
		{"garbage", config.DefaultDebug().ListenAddr},
	}
	for _, tt := range tests {
		if got := ListenAddr(tt.in); got != tt.want {
			t.Errorf("ListenAddr(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}

	t.Setenv("ALLOW_DEBUG_EXTERNAL", "true")
	if got := ListenAddr("0.0.0.0:6060"); got != "0.0.0.0:6060" {
		t.Errorf("Expected external bind when allowed, got %q", got)
	}
}

// TestBasicAuth tests the optional credentials check
func TestBasicAuth(t *testing.T) {
	h := basicAuthMiddleware("admin", "secret", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", rec.Code)
	}

	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with credentials, got %d", rec.Code)
	}
}

// TestFrameTimeout tests that a frame read given up on a stalled session is
// not filled in once the session catches up
func TestFrameTimeout(t *testing.T) {
	c := session.New(session.Config{URL: "ws://example.invalid/ws"}, session.Deps{Dialer: blockingDialer{}})
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	defer func() {
		cancel()
		<-c.Done()
	}()

	stalled := make(chan struct{})
	release := make(chan struct{})
	go c.Do(ctx, func(session.View) {
		close(stalled)
		<-release
	})
	<-stalled

	short, stop := context.WithTimeout(ctx, 20*time.Millisecond)
	defer stop()
	f, err := Frame(short, c)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	if f.Status != "" || f.Entries != nil {
		t.Errorf("Expected empty frame on timeout, got %+v", f)
	}

	close(release)
	f, err = Frame(ctx, c)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if f.Status != session.TextConnecting {
		t.Errorf("Expected %q once the session is free, got %q", session.TextConnecting, f.Status)
	}
}
