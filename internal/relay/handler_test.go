package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"grammarrelay/internal/analysis"
	"grammarrelay/internal/sse"
	"grammarrelay/internal/upstream"
)

const sampleText = "The quick brown fox jumps over the lazy dog everyday."

type fakeUpstream struct {
	calls  atomic.Int32
	err    error
	body   func() io.Reader
	prompt string
}

func (f *fakeUpstream) Stream(_ context.Context, prompt string) (*http.Response, error) {
	f.calls.Add(1)
	f.prompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(f.body())}, nil
}

func noCredential() *fakeUpstream {
	return &fakeUpstream{err: &upstream.Error{Kind: upstream.KindCredential, Err: upstream.ErrNoCredential}}
}

func bodyOf(s string) func() io.Reader {
	return func() io.Reader { return strings.NewReader(s) }
}

func newTestHandler(up Upstream) *Handler {
	return NewHandler(up, Options{MinWords: 5, MaxWords: 500, HeartbeatInterval: time.Hour}, nil)
}

func analyze(t *testing.T, h http.Handler, text string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/analyze?text="+url.QueryEscape(text), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func wireEvents(t *testing.T, body string) []sse.Event {
	t.Helper()
	var out []sse.Event
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		if ev, ok := sse.ParseWireLine(sc.Bytes()); ok {
			out = append(out, ev)
		}
	}
	return out
}

func contentOf(events []sse.Event) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Type == sse.EventContent {
			b.WriteString(ev.Text)
		}
	}
	return b.String()
}

func assertWellFormed(t *testing.T, events []sse.Event) sse.Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("expected events")
	}
	for i, ev := range events[:len(events)-1] {
		if ev.Terminal() {
			t.Fatalf("terminal event at %d before end: %#v", i, ev)
		}
	}
	last := events[len(events)-1]
	if !last.Terminal() {
		t.Fatalf("stream did not terminate: %#v", last)
	}
	return last
}

func TestRejectsShortTextBeforeUpstream(t *testing.T) {
	up := noCredential()
	rec := analyze(t, newTestHandler(up), "Hi")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "between 5 and 500") || !strings.Contains(body, "got 1") {
		t.Fatalf("unexpected body: %s", body)
	}
	if up.calls.Load() != 0 {
		t.Fatal("upstream must not be called for rejected input")
	}
}

func TestRejectsLongText(t *testing.T) {
	up := noCredential()
	rec := analyze(t, newTestHandler(up), strings.Repeat("word ", 501))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "got 501") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if up.calls.Load() != 0 {
		t.Fatal("upstream must not be called for rejected input")
	}
}

func TestMissingText(t *testing.T) {
	rec := analyze(t, newTestHandler(noCredential()), "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "missing text") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestRejectsOtherMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/analyze?text=x", nil)
	rec := httptest.NewRecorder()
	CORS(newTestHandler(noCredential())).ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header on 405")
	}
}

func TestPreflight(t *testing.T) {
	up := noCredential()
	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	rec := httptest.NewRecorder()
	CORS(newTestHandler(up)).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("unexpected preflight response %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("expected allow-methods header")
	}
}

func TestFallbackWithoutCredentialEndsInDone(t *testing.T) {
	rec := analyze(t, newTestHandler(noCredential()), sampleText)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "no-cache") || !strings.Contains(cc, "no-transform") {
		t.Fatalf("unexpected cache control %q", cc)
	}
	events := wireEvents(t, rec.Body.String())
	if last := assertWellFormed(t, events); last.Type != sse.EventDone {
		t.Fatalf("fallback must end in done, got %#v", last)
	}
	if got, want := contentOf(events), analysis.MockAnalysis(sampleText); got != want {
		t.Fatalf("unexpected simulated content:\n%s", got)
	}
	for _, ev := range events[:len(events)-1] {
		if len([]rune(ev.Text)) != 1 {
			t.Fatalf("simulated content must be single characters, got %q", ev.Text)
		}
	}
	if !strings.Contains(contentOf(events), "Sentence: The quick brown fox jumps over the lazy dog everyday\n") {
		t.Fatal("expected first sentence echoed")
	}
}

func TestRelaysUpstreamContent(t *testing.T) {
	up := &fakeUpstream{body: bodyOf("data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\ndata: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\ndata: [DONE]\n\n")}
	rec := analyze(t, newTestHandler(up), sampleText)
	events := wireEvents(t, rec.Body.String())
	if last := assertWellFormed(t, events); last.Type != sse.EventDone {
		t.Fatalf("expected done, got %#v", last)
	}
	if contentOf(events) != "Hello there" {
		t.Fatalf("unexpected content %q", contentOf(events))
	}
	if !strings.HasSuffix(up.prompt, sampleText) {
		t.Fatal("prompt should embed the source text")
	}
}

func TestUpstreamErrorAfterContentIsRelayedInline(t *testing.T) {
	up := &fakeUpstream{body: bodyOf("data: {\"choices\":[{\"delta\":{\"content\":\"Part\"}}]}\n\ndata: {\"error\":{\"message\":\"overloaded\"}}\n\n")}
	rec := analyze(t, newTestHandler(up), sampleText)
	events := wireEvents(t, rec.Body.String())
	last := assertWellFormed(t, events)
	if last.Type != sse.EventError || last.Message != "overloaded" {
		t.Fatalf("expected inline error, got %#v", last)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status cannot change after streaming began, got %d", rec.Code)
	}
}

func TestUpstreamErrorBeforeContentFallsBack(t *testing.T) {
	up := &fakeUpstream{body: bodyOf("data: {\"error\":{\"message\":\"overloaded\"}}\n\n")}
	rec := analyze(t, newTestHandler(up), sampleText)
	events := wireEvents(t, rec.Body.String())
	if last := assertWellFormed(t, events); last.Type != sse.EventDone {
		t.Fatalf("expected fallback done, got %#v", last)
	}
	if contentOf(events) != analysis.MockAnalysis(sampleText) {
		t.Fatal("expected simulated analysis")
	}
}

func TestUpstreamTransportErrorFallsBack(t *testing.T) {
	up := &fakeUpstream{err: &upstream.Error{Kind: upstream.KindTransport, Err: errors.New("dial tcp: refused")}}
	rec := analyze(t, newTestHandler(up), sampleText)
	events := wireEvents(t, rec.Body.String())
	if last := assertWellFormed(t, events); last.Type != sse.EventDone {
		t.Fatalf("expected fallback done, got %#v", last)
	}
}

func TestHeartbeatDoesNotCorruptFrames(t *testing.T) {
	pr, pw := io.Pipe()
	up := &fakeUpstream{body: func() io.Reader { return pr }}
	go func() {
		_, _ = io.WriteString(pw, "data: {\"choices\":[{\"delta\":{\"content\":\"slow\"}}]}\n\n")
		time.Sleep(80 * time.Millisecond)
		_, _ = io.WriteString(pw, "data: [DONE]\n\n")
		_ = pw.Close()
	}()
	h := NewHandler(up, Options{MinWords: 5, MaxWords: 500, HeartbeatInterval: 10 * time.Millisecond}, nil)
	rec := analyze(t, h, sampleText)

	body := rec.Body.String()
	if !strings.Contains(body, ": ping\n\n") {
		t.Fatalf("expected heartbeat frames in %q", body)
	}
	for _, frame := range strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n") {
		if frame != ": ping" && !strings.HasPrefix(frame, "data: {") {
			t.Fatalf("corrupted frame %q", frame)
		}
	}
	events := wireEvents(t, body)
	if last := assertWellFormed(t, events); last.Type != sse.EventDone || contentOf(events) != "slow" {
		t.Fatalf("unexpected events %#v", events)
	}
	if strings.Contains(body[strings.LastIndex(body, "\"done\":true"):], "ping") {
		t.Fatal("heartbeat must stop after the terminal event")
	}
}

func TestPostJSONBody(t *testing.T) {
	up := &fakeUpstream{body: bodyOf("data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n")}
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"text":"`+sampleText+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestHandler(up).ServeHTTP(rec, req)
	if contentOf(wireEvents(t, rec.Body.String())) != "ok" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestPostFormBody(t *testing.T) {
	up := &fakeUpstream{body: bodyOf("data: [DONE]\n\n")}
	form := url.Values{"text": {sampleText}}
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newTestHandler(up).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || up.calls.Load() != 1 {
		t.Fatalf("unexpected response %d calls=%d", rec.Code, up.calls.Load())
	}
}

func TestCollectedModeFallsBack(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/analyze?stream=false&text="+url.QueryEscape(sampleText), nil)
	rec := httptest.NewRecorder()
	newTestHandler(noCredential()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"simulated":true`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestCollectedModeReportsTruncatedResult(t *testing.T) {
	up := &fakeUpstream{body: bodyOf("data: {\"choices\":[{\"delta\":{\"content\":\"Part\"}}]}\n\ndata: {\"error\":{\"message\":\"overloaded\"}}\n\n")}
	req := httptest.NewRequest(http.MethodGet, "/analyze?stream=false&text="+url.QueryEscape(sampleText), nil)
	rec := httptest.NewRecorder()
	newTestHandler(up).ServeHTTP(rec, req)
	var out struct {
		Result    string `json:"result"`
		Simulated bool   `json:"simulated"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Result != "Part" || out.Simulated || out.Error != "overloaded" {
		t.Fatalf("truncated result not flagged: %#v", out)
	}
}

func TestCollectedModeCompleteResultHasNoError(t *testing.T) {
	up := &fakeUpstream{body: bodyOf("data: {\"choices\":[{\"delta\":{\"content\":\"Whole\"}}]}\n\ndata: [DONE]\n\n")}
	req := httptest.NewRequest(http.MethodGet, "/analyze?stream=false&text="+url.QueryEscape(sampleText), nil)
	rec := httptest.NewRecorder()
	newTestHandler(up).ServeHTTP(rec, req)
	body := rec.Body.String()
	if !strings.Contains(body, `"result":"Whole"`) || strings.Contains(body, `"error"`) {
		t.Fatalf("unexpected response %s", body)
	}
}

type noFlushWriter struct {
	header http.Header
	code   int
	body   strings.Builder
}

func (w *noFlushWriter) Header() http.Header         { return w.header }
func (w *noFlushWriter) Write(b []byte) (int, error) { return w.body.Write(b) }
func (w *noFlushWriter) WriteHeader(code int)        { w.code = code }

func TestNonStreamingWriterGetsOutOfBandError(t *testing.T) {
	w := &noFlushWriter{header: http.Header{}}
	req := httptest.NewRequest(http.MethodGet, "/analyze?text="+url.QueryEscape(sampleText), nil)
	newTestHandler(noCredential()).ServeHTTP(w, req)
	if w.code != http.StatusInternalServerError || !strings.Contains(w.body.String(), "analysis service unavailable") {
		t.Fatalf("unexpected response %d %s", w.code, w.body.String())
	}
}
