package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"grammarrelay/internal/config"
	"grammarrelay/internal/server"
	"grammarrelay/internal/store"
)

func runCLI(t *testing.T, storage string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("1.2.3", "abc123", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--storage", storage}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, filepath.Join(t.TempDir(), "s.yaml"), "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "grammarrelay 1.2.3 (abc123) built on today") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSettingsSetAndShow(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "s.yaml")
	out, err := runCLI(t, storage, "settings", "set", "theme=dark", "maxWords=50", "autoTrigger=false")
	if err != nil {
		t.Fatalf("settings set failed: %v\n%s", err, out)
	}
	out, err = runCLI(t, storage, "settings")
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	for _, want := range []string{"theme: dark", "maxWords: 50", "autoTrigger: false", "minWords: 5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("settings output missing %q:\n%s", want, out)
		}
	}
}

func TestSettingsSetRejectsBadInput(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "s.yaml")
	for _, arg := range []string{"theme=sepia", "minWords=abc", "color=red", "noequals"} {
		if _, err := runCLI(t, storage, "settings", "set", arg); err == nil {
			t.Fatalf("expected error for %q", arg)
		}
	}
}

func TestHistoryEmptyAndClear(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "s.yaml")
	out, err := runCLI(t, storage, "history")
	if err != nil || !strings.Contains(out, "No history yet.") {
		t.Fatalf("unexpected history output: %v %s", err, out)
	}
	out, err = runCLI(t, storage, "history", "clear")
	if err != nil || !strings.Contains(out, "History cleared.") {
		t.Fatalf("unexpected clear output: %v %s", err, out)
	}
	if _, err := runCLI(t, storage, "history", "show", "missing"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

type downUpstream struct{}

func (downUpstream) Stream(context.Context, string) (*http.Response, error) {
	return nil, errors.New("upstream disabled")
}

func TestAnalyzePlainThroughRelay(t *testing.T) {
	cfg := config.Default()
	cfg.Relay.MockDelay = 0
	srv := httptest.NewServer(server.NewAppWithUpstream(cfg, downUpstream{}).Router)
	defer srv.Close()

	storage := filepath.Join(t.TempDir(), "s.yaml")
	if _, err := runCLI(t, storage, "settings", "set", "apiUrl="+srv.URL); err != nil {
		t.Fatalf("settings set failed: %v", err)
	}
	out, err := runCLI(t, storage, "analyze", "--plain", "The", "quick", "brown", "fox", "jumps", "over", "the", "dog.")
	if err != nil {
		t.Fatalf("analyze failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "## Grammar Analysis") {
		t.Fatalf("report missing from output:\n%s", out)
	}

	out, err = runCLI(t, storage, "history", "--json")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "The quick brown fox jumps over the dog.") {
		t.Fatalf("analysis not recorded:\n%s", out)
	}
}

func TestAnalyzePlainRejectsShortText(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "s.yaml")
	out, err := runCLI(t, storage, "analyze", "--plain", "too", "short")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(out, "too short") {
		t.Fatalf("error not printed:\n%s", out)
	}
}

func TestRunServerStopsOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestParsePatch(t *testing.T) {
	p, err := parsePatch([]string{"apiUrl=http://x", "shortcutKey=Ctrl+G", "minWords=3"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if *p.APIURL != "http://x" || *p.ShortcutKey != "Ctrl+G" || *p.MinWords != 3 {
		t.Fatalf("unexpected patch: %+v", p)
	}
	if p.Theme != nil || p.MaxWords != nil {
		t.Fatal("unset fields should stay nil")
	}
}

func seedHistory(t *testing.T, storage string, item store.HistoryItem) {
	t.Helper()
	if _, err := store.NewHistoryStore(store.NewFileKV(storage)).Append(item); err != nil {
		t.Fatalf("seed history: %v", err)
	}
}

func TestHistoryShowReplaysStoredResult(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "s.yaml")
	seedHistory(t, storage, store.HistoryItem{
		ID:     "item-1",
		Text:   "The fox jumps over the dog.",
		Result: "## Grammar Analysis\n- **Subject**: the fox",
	})
	out, err := runCLI(t, storage, "history", "show", "item-1")
	if err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	for _, want := range []string{"Grammar Analysis", "Subject", ": the fox", "•"} {
		if !strings.Contains(out, want) {
			t.Fatalf("replay missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "**") || strings.Contains(out, "## ") || strings.Contains(out, "|") {
		t.Fatalf("markup or cursor leaked into replay:\n%s", out)
	}
}

func TestHistoryShowHTML(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "s.yaml")
	seedHistory(t, storage, store.HistoryItem{ID: "item-2", Text: "t", Result: "## Title\n- `SVO` <b>"})
	out, err := runCLI(t, storage, "history", "show", "--html", "item-2")
	if err != nil {
		t.Fatalf("history show --html failed: %v", err)
	}
	want := "<h2>Title</h2><br><ul><li><code>SVO</code> &lt;b&gt;</li></ul>\n"
	if out != want {
		t.Fatalf("unexpected html %q", out)
	}
}
