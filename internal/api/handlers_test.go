package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pv/assetcache/internal/assets"
	"github.com/pv/assetcache/internal/config"
	"github.com/pv/assetcache/internal/journal"
	"github.com/pv/assetcache/internal/minify"
	"github.com/pv/assetcache/internal/storage"
)

// fakeBackend считает вызовы и может возвращать ошибку
type fakeBackend struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (b *fakeBackend) Minify(source string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return strings.TrimSpace(source), nil
}

type testEnv struct {
	root     string
	handlers *Handlers
	server   *Server
	store    storage.Storage
	js       *fakeBackend
	css      *fakeBackend
}

func setupTestEnv(t *testing.T, env string) *testEnv {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"js/a.js":   "var a = 1;",
		"js/b.js":   "var b = 2;",
		"css/x.css": "a { color: red; }",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultMinify()
	cfg.PublicPath = root
	cfg.HashSalt = "s1"
	cfg.DisableMTime = true

	js, css := &fakeBackend{}, &fakeBackend{}
	a, err := assets.New(cfg, env, assets.WithBackends(js, css))
	if err != nil {
		t.Fatalf("assets.New failed: %v", err)
	}

	store := storage.NewMemoryStorage()
	t.Cleanup(func() { store.Close() })

	h := NewHandlers(a, store, root)
	a.Subscribe(assets.ObserverFunc(h.OnBuild))

	return &testEnv{root: root, handlers: h, server: NewServer(h), store: store, js: js, css: css}
}

func (e *testEnv) postBundle(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/bundles", strings.NewReader(body))
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func decodeBundle(t *testing.T, w *httptest.ResponseRecorder) BundleResponse {
	t.Helper()
	var resp BundleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestBuildBundleJS(t *testing.T) {
	env := setupTestEnv(t, "production")

	w := env.postBundle(t, `{"kind":"js","files":["/js/a.js","/js/b.js"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeBundle(t, w)
	if !resp.Minified || resp.State != "persisted" || resp.Hit {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !strings.HasSuffix(resp.Filename, ".js") || len(resp.Filename) != 32+3 {
		t.Errorf("unexpected filename %q", resp.Filename)
	}
	wantMarkup := `<script src="/js/builds/` + resp.Filename + `"></script>` + "\n"
	if resp.Markup != wantMarkup {
		t.Errorf("markup = %q, want %q", resp.Markup, wantMarkup)
	}
	if resp.URL != "/js/builds/"+resp.Filename {
		t.Errorf("url = %q", resp.URL)
	}
	if len(resp.Files) != 2 || resp.Files[0] != "/js/a.js" {
		t.Errorf("files = %v", resp.Files)
	}

	// повторная сборка - попадание в кэш
	again := decodeBundle(t, env.postBundle(t, `{"kind":"javascript","files":["/js/a.js","/js/b.js"]}`))
	if !again.Hit || again.State != "hit" || again.Filename != resp.Filename {
		t.Errorf("expected cache hit, got %+v", again)
	}
	if env.js.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", env.js.calls)
	}
}

func TestBuildBundleRenderOptions(t *testing.T) {
	env := setupTestEnv(t, "production")

	w := env.postBundle(t, `{
		"kind": "css",
		"files": ["css/x.css"],
		"mode": "tag",
		"fullUrl": true,
		"attributes": [{"name": "media", "value": "print"}, {"name": "data-x", "value": "a&b"}, {"name": "nonce", "value": null}]
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBundle(t, w)

	want := `<link href="http://example.com/css/builds/` + resp.Filename + `" rel="stylesheet" media="print" data-x="a&amp;b">` + "\n"
	if resp.Markup != want {
		t.Errorf("markup = %q, want %q", resp.Markup, want)
	}

	urlOnly := decodeBundle(t, env.postBundle(t, `{"kind":"css","files":["css/x.css"],"mode":"url"}`))
	if urlOnly.Markup != "/css/builds/"+resp.Filename {
		t.Errorf("url mode markup = %q", urlOnly.Markup)
	}

	raw := decodeBundle(t, env.postBundle(t, `{"kind":"css","files":["css/x.css"],"mode":"raw"}`))
	if raw.Markup != `<link href="/css/x.css" rel="stylesheet">`+"\n" {
		t.Errorf("raw mode markup = %q", raw.Markup)
	}
}

func TestBuildBundleIgnoredEnvironment(t *testing.T) {
	env := setupTestEnv(t, "local")

	w := env.postBundle(t, `{"kind":"js","files":["/js/a.js","/js/b.js"],"attributes":[{"name":"defer","value":true}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBundle(t, w)
	if resp.Minified || resp.State != assets.StateBypassed || resp.Filename != "" || resp.URL != "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	want := `<script src="/js/a.js" defer></script>` + "\n" + `<script src="/js/b.js" defer></script>` + "\n"
	if resp.Markup != want {
		t.Errorf("markup = %q, want %q", resp.Markup, want)
	}
	if env.js.calls != 0 {
		t.Errorf("backend must not be called, got %d", env.js.calls)
	}
}

func TestBuildBundleErrors(t *testing.T) {
	env := setupTestEnv(t, "production")

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{"kind":`, http.StatusBadRequest},
		{"unknown kind", `{"kind":"html","files":["/a.html"]}`, http.StatusBadRequest},
		{"no files", `{"kind":"js","files":[]}`, http.StatusBadRequest},
		{"bad mode", `{"kind":"js","files":["/js/a.js"],"mode":"inline"}`, http.StatusBadRequest},
		{"missing file", `{"kind":"js","files":["/js/a.js","/js/missing.js"]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postBundle(t, tt.body)
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			var resp map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp["error"] == "" {
				t.Errorf("expected error body, got %q", w.Body.String())
			}
		})
	}

	if _, err := os.Stat(filepath.Join(env.root, "js", "builds")); !os.IsNotExist(err) {
		t.Errorf("failed builds must not create artifacts, stat err = %v", err)
	}
}

func TestBuildBundleMinificationError(t *testing.T) {
	env := setupTestEnv(t, "production")
	env.js.err = errors.New("Unexpected end of file")

	w := env.postBundle(t, `{"kind":"js","files":["/js/a.js"]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d: %s", w.Code, w.Body.String())
	}

	records, _ := env.store.Latest(1)
	if len(records) != 1 || records[0].State != "failed" || records[0].Error == "" {
		t.Errorf("failure should be recorded: %+v", records)
	}
}

func TestBuildErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("wrap: %w", minify.ErrMissingSourceFile), http.StatusBadRequest},
		{minify.ErrMinification, http.StatusUnprocessableEntity},
		{minify.ErrPersist, http.StatusInternalServerError},
		{minify.ErrDirectoryUnavailable, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := buildErrorStatus(tt.err); got != tt.status {
			t.Errorf("buildErrorStatus(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}

func TestGetBuilds(t *testing.T) {
	env := setupTestEnv(t, "production")

	env.postBundle(t, `{"kind":"js","files":["/js/a.js"]}`)
	env.postBundle(t, `{"kind":"js","files":["/js/a.js"]}`)
	env.postBundle(t, `{"kind":"css","files":["/css/x.css"]}`)

	req := httptest.NewRequest("GET", "/api/builds?limit=2", nil)
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Builds []storage.Record `json:"builds"`
		Count  int              `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Count != 2 || len(resp.Builds) != 2 {
		t.Fatalf("expected 2 builds, got %d", resp.Count)
	}
	if resp.Builds[0].Kind != "css" || resp.Builds[0].State != "persisted" {
		t.Errorf("newest build should be css, got %+v", resp.Builds[0])
	}
	if !resp.Builds[1].Hit {
		t.Errorf("second js build should be a hit: %+v", resp.Builds[1])
	}
}

func TestGetStatus(t *testing.T) {
	env := setupTestEnv(t, "staging")

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["environment"] != "staging" || resp["minify"] != true || resp["journal"] != false {
		t.Errorf("unexpected status: %v", resp)
	}
}

type fakeJournal struct {
	mu        sync.Mutex
	params    journal.QueryParams
	events    []journal.BuildEvent
	err       error
	rejectAll bool
}

func (f *fakeJournal) Query(ctx context.Context, params journal.QueryParams) (*journal.EventsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &journal.EventsResponse{Events: f.events, Total: len(f.events), Limit: params.Limit}, nil
}

func (f *fakeJournal) Enqueue(ev journal.BuildEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectAll {
		return false
	}
	f.events = append(f.events, ev)
	return true
}

func TestGetJournalEventsNotConfigured(t *testing.T) {
	env := setupTestEnv(t, "production")

	req := httptest.NewRequest("GET", "/api/journal", nil)
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestJournalWiring(t *testing.T) {
	env := setupTestEnv(t, "production")
	fj := &fakeJournal{}
	env.handlers.SetJournal(fj, fj)

	env.postBundle(t, `{"kind":"js","files":["/js/a.js","/js/b.js"]}`)

	req := httptest.NewRequest("GET", "/api/journal?kind=js&state=persisted&limit=5000&offset=3&from=1700000000", nil)
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if fj.params.Kind != "js" || fj.params.State != "persisted" {
		t.Errorf("filters not passed: %+v", fj.params)
	}
	if fj.params.Limit != 1000 || fj.params.Offset != 3 {
		t.Errorf("pagination: limit=%d offset=%d", fj.params.Limit, fj.params.Offset)
	}
	if fj.params.From.Unix() != 1700000000 {
		t.Errorf("from = %v", fj.params.From)
	}

	var resp journal.EventsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Fatalf("expected 1 journal event, got %d", len(resp.Events))
	}
	ev := resp.Events[0]
	if ev.Kind != "js" || ev.State != "persisted" || len(ev.Files) != 2 || ev.Environment != "production" {
		t.Errorf("unexpected journal event: %+v", ev)
	}

	fj.err = errors.New("connection refused")
	w = httptest.NewRecorder()
	env.server.ServeHTTP(w, httptest.NewRequest("GET", "/api/journal", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500 on journal error, got %d", w.Code)
	}
}

func TestOnBuildJournalFull(t *testing.T) {
	env := setupTestEnv(t, "production")
	fj := &fakeJournal{rejectAll: true}
	env.handlers.SetJournal(nil, fj)

	w := env.postBundle(t, `{"kind":"js","files":["/js/a.js"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("a full journal queue must not fail the build, got %d", w.Code)
	}
	records, _ := env.store.Latest(10)
	if len(records) != 1 {
		t.Errorf("expected build to be stored, got %d records", len(records))
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		unix int64
	}{
		{"2024-01-01T12:00:00Z", true, 1704110400},
		{"1704110400", true, 1704110400},
		{"1704110400000", true, 1704110400},
		{"yesterday", false, 0},
	}
	for _, tt := range tests {
		got, ok := parseTime(tt.in)
		if ok != tt.ok {
			t.Errorf("parseTime(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got.Unix() != tt.unix {
			t.Errorf("parseTime(%q) = %d, want %d", tt.in, got.Unix(), tt.unix)
		}
	}
}

func TestRequestRoot(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "assets.local:8282"
	if got := requestRoot(req); got != "http://assets.local:8282" {
		t.Errorf("requestRoot = %q", got)
	}

	req.Header.Set("X-Forwarded-Proto", "https, http")
	if got := requestRoot(req); got != "https://assets.local:8282" {
		t.Errorf("requestRoot behind proxy = %q", got)
	}
}

func TestBuildBundleRepeatedFiles(t *testing.T) {
	env := setupTestEnv(t, "production")
	files := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		files = append(files, "/js/a.js")
	}
	body, _ := json.Marshal(BundleRequest{Kind: "js", Files: files})

	req := httptest.NewRequest("POST", "/api/bundles", bytes.NewReader(body))
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}
