package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSettingsGetReturnsDefaultsWhenEmpty(t *testing.T) {
	s := NewSettingsStore(NewMemoryKV())
	got, err := s.Get()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestSettingsInitKeepsExistingRecord(t *testing.T) {
	kv := NewMemoryKV()
	custom := DefaultSettings()
	custom.Theme = "dark"
	if err := kv.Set(settingsKey, custom); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	got, err := NewSettingsStore(kv).Init()
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if got.Theme != "dark" {
		t.Fatalf("init overwrote existing settings: %+v", got)
	}
}

func TestSettingsUpdateMergesShallowly(t *testing.T) {
	s := NewSettingsStore(NewMemoryKV())
	if _, err := s.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	theme := "dark"
	maxWords := 50
	got, err := s.Update(SettingsPatch{Theme: &theme, MaxWords: &maxWords})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got.Theme != "dark" || got.MaxWords != 50 {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.MinWords != 5 || got.APIURL != DefaultAPIURL || !got.AutoTrigger {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	again, _ := s.Get()
	if again != got {
		t.Fatalf("update not persisted: %+v vs %+v", again, got)
	}
}

func TestSettingsUpdateRejectsInvertedBounds(t *testing.T) {
	s := NewSettingsStore(NewMemoryKV())
	minWords := 600
	if _, err := s.Update(SettingsPatch{MinWords: &minWords}); err == nil {
		t.Fatal("expected error for min above max")
	}
	got, _ := s.Get()
	if got.MinWords != 5 {
		t.Fatalf("rejected update was stored: %+v", got)
	}
}

func TestHistoryAppendIsNewestFirstAndCapped(t *testing.T) {
	h := NewHistoryStore(NewMemoryKV())
	for i := 0; i < MaxHistory+1; i++ {
		if _, err := h.Append(HistoryItem{Text: fmt.Sprintf("text %d", i), Result: "r"}); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}
	items, err := h.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != MaxHistory {
		t.Fatalf("expected %d items, got %d", MaxHistory, len(items))
	}
	if items[0].Text != "text 10" {
		t.Fatalf("newest item not first: %q", items[0].Text)
	}
	if items[len(items)-1].Text != "text 1" {
		t.Fatalf("oldest item not evicted: %q", items[len(items)-1].Text)
	}
}

func TestHistoryAppendAssignsIDAndTimestamp(t *testing.T) {
	h := NewHistoryStore(NewMemoryKV())
	h.now = func() time.Time { return time.UnixMilli(1700000000000) }
	a, err := h.Append(HistoryItem{Text: "a"})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	b, _ := h.Append(HistoryItem{Text: "b"})
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if a.Timestamp != 1700000000000 {
		t.Fatalf("unexpected timestamp: %d", a.Timestamp)
	}
	kept, _ := h.Append(HistoryItem{ID: "fixed", Text: "c", Timestamp: 42})
	if kept.ID != "fixed" || kept.Timestamp != 42 {
		t.Fatalf("caller values overwritten: %+v", kept)
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewHistoryStore(NewMemoryKV())
	_, _ = h.Append(HistoryItem{Text: "a"})
	if err := h.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	items, _ := h.List()
	if len(items) != 0 {
		t.Fatalf("expected empty history, got %d items", len(items))
	}
}

func TestFileKVPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.yaml")
	first := NewSettingsStore(NewFileKV(path))
	theme := "dark"
	if _, err := first.Update(SettingsPatch{Theme: &theme}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	h := NewHistoryStore(NewFileKV(path))
	if _, err := h.Append(HistoryItem{Text: "hello", Result: "## ok"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	second := NewSettingsStore(NewFileKV(path))
	got, err := second.Get()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Theme != "dark" {
		t.Fatalf("settings not shared through file: %+v", got)
	}
	items, _ := NewHistoryStore(NewFileKV(path)).List()
	if len(items) != 1 || items[0].Result != "## ok" {
		t.Fatalf("history not shared through file: %+v", items)
	}
}

func TestFileKVMissingFileIsEmpty(t *testing.T) {
	kv := NewFileKV(filepath.Join(t.TempDir(), "absent.yaml"))
	var v string
	ok, err := kv.Get("anything", &v)
	if err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
}

func TestFileKVRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.yaml")
	if err := os.WriteFile(path, []byte("settings: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSettingsStore(NewFileKV(path)).Get(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFileKVWatchSeesOtherWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.yaml")
	watched := NewFileKV(path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 16)
	if err := watched.Watch(ctx, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	if err := NewFileKV(path).Set("settings", DefaultSettings()); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}
	var got Settings
	if ok, err := watched.Get("settings", &got); err != nil || !ok {
		t.Fatalf("watched instance cannot read update: ok=%v err=%v", ok, err)
	}
}
