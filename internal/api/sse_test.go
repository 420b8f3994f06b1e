package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pv/assetcache/internal/storage"
)

func TestEventHubNewEventHub(t *testing.T) {
	hub := NewEventHub()
	if hub == nil {
		t.Fatal("NewEventHub returned nil")
	}
	if hub.clients == nil {
		t.Error("clients map is nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestEventHubAddRemoveClient(t *testing.T) {
	hub := NewEventHub()

	client1 := hub.AddClient("")
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}

	client2 := hub.AddClient("css")
	if client2.kind != "css" {
		t.Errorf("expected kind=css, got %s", client2.kind)
	}
	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}

	hub.RemoveClient(client1)
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after removal, got %d", hub.ClientCount())
	}

	// повторное удаление не паникует
	hub.RemoveClient(client1)

	hub.RemoveClient(client2)
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after removal, got %d", hub.ClientCount())
	}
}

func TestEventHubBroadcastFiltersByKind(t *testing.T) {
	hub := NewEventHub()

	all := hub.AddClient("")
	jsOnly := hub.AddClient("js")
	cssOnly := hub.AddClient("css")
	defer hub.RemoveClient(all)
	defer hub.RemoveClient(jsOnly)
	defer hub.RemoveClient(cssOnly)

	hub.BroadcastBuild(storage.Record{Kind: "js", State: "persisted"})

	select {
	case ev := <-all.events:
		if ev.Type != "build" || ev.Kind != "js" {
			t.Errorf("unexpected event: %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			t.Error("timestamp should be set")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client without filter did not receive event")
	}

	select {
	case <-jsOnly.events:
	case <-time.After(100 * time.Millisecond):
		t.Error("js client did not receive event")
	}

	select {
	case ev := <-cssOnly.events:
		t.Errorf("css client should not receive js event, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventHubDropsWhenBufferFull(t *testing.T) {
	hub := NewEventHub()
	client := hub.AddClient("")
	defer hub.RemoveClient(client)

	for i := 0; i < cap(client.events)+5; i++ {
		hub.Broadcast(StreamEvent{Type: "build", Kind: "js"})
	}
	if len(client.events) != cap(client.events) {
		t.Errorf("expected full buffer, got %d/%d", len(client.events), cap(client.events))
	}
}

func TestEventHubConcurrentAccess(t *testing.T) {
	hub := NewEventHub()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := hub.AddClient("")
			time.Sleep(5 * time.Millisecond)
			hub.RemoveClient(client)
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.BroadcastBuild(storage.Record{Kind: "css"})
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func newTestServer(env *testEnv) *httptest.Server {
	return httptest.NewServer(env.server)
}

// readSSEEvent читает одно SSE событие (event + data) из потока
func readSSEEvent(t *testing.T, r *bufio.Reader) (string, StreamEvent) {
	t.Helper()
	var name string
	var ev StreamEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read SSE stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				t.Fatalf("bad SSE data %q: %v", line, err)
			}
		case line == "" && name != "":
			return name, ev
		}
	}
}

func TestHandleSSEStream(t *testing.T) {
	env := setupTestEnv(t, "production")
	ts := newTestServer(env)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events?kind=js", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("SSE request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected Content-Type=text/event-stream, got %s", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected Cache-Control=no-cache, got %s", cc)
	}

	reader := bufio.NewReader(resp.Body)
	name, ev := readSSEEvent(t, reader)
	if name != "connected" {
		t.Fatalf("expected connected event, got %q", name)
	}
	data, _ := ev.Data.(map[string]interface{})
	if data["environment"] != "production" || data["minify"] != true {
		t.Errorf("unexpected connected payload: %v", ev.Data)
	}

	// css событие отфильтровано, js доходит
	env.postBundle(t, `{"kind":"css","files":["/css/x.css"]}`)
	env.postBundle(t, `{"kind":"js","files":["/js/a.js"]}`)

	name, ev = readSSEEvent(t, reader)
	if name != "build" || ev.Kind != "js" {
		t.Fatalf("expected js build event, got %q %+v", name, ev)
	}
	rec, _ := ev.Data.(map[string]interface{})
	if rec["state"] != "persisted" {
		t.Errorf("unexpected build payload: %v", ev.Data)
	}
}

func TestHandleSSEDisconnect(t *testing.T) {
	env := setupTestEnv(t, "production")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest("GET", "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.handlers.HandleSSE(w, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleSSE did not complete after context cancellation")
	}

	if env.handlers.GetEventHub().ClientCount() != 0 {
		t.Error("client should be removed after disconnect")
	}
	if !strings.Contains(w.Body.String(), "event: connected") {
		t.Error("response should contain 'event: connected'")
	}
}
