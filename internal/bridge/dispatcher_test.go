package bridge

import (
	"context"
	"errors"
	"testing"

	"grammarrelay/internal/store"
)

func TestDispatcherSettingsAndHistory(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")
	d := NewDispatcher(h.bridge)
	ctx := context.Background()

	theme := "dark"
	got, err := d.Handle(ctx, Message{Action: ActionUpdateSettings, Settings: &store.SettingsPatch{Theme: &theme}})
	if err != nil {
		t.Fatalf("updateSettings failed: %v", err)
	}
	if s := got.(store.Settings); s.Theme != "dark" || s.MinWords != 5 {
		t.Fatalf("unexpected settings: %+v", s)
	}
	got, _ = d.Handle(ctx, Message{Action: ActionGetSettings})
	if got.(store.Settings).Theme != "dark" {
		t.Fatalf("getSettings returned stale settings: %+v", got)
	}

	saved, err := d.Handle(ctx, Message{Action: ActionSaveToHistory, Data: &store.HistoryItem{Text: "hello"}})
	if err != nil {
		t.Fatalf("saveToHistory failed: %v", err)
	}
	if saved.(store.HistoryItem).ID == "" {
		t.Fatal("saved item has no id")
	}
	list, _ := d.Handle(ctx, Message{Action: ActionGetHistory})
	if items := list.([]store.HistoryItem); len(items) != 1 || items[0].Text != "hello" {
		t.Fatalf("unexpected history: %+v", items)
	}
	if _, err := d.Handle(ctx, Message{Action: ActionClearHistory}); err != nil {
		t.Fatalf("clearHistory failed: %v", err)
	}
	list, _ = d.Handle(ctx, Message{Action: ActionGetHistory})
	if items := list.([]store.HistoryItem); len(items) != 0 {
		t.Fatalf("history not cleared: %+v", items)
	}
}

func TestDispatcherSaveRequiresData(t *testing.T) {
	d := NewDispatcher(newHarness(t, "http://127.0.0.1:1").bridge)
	if _, err := d.Handle(context.Background(), Message{Action: ActionSaveToHistory}); err == nil {
		t.Fatal("expected error without data")
	}
}

func TestDispatcherUnknownAction(t *testing.T) {
	d := NewDispatcher(newHarness(t, "http://127.0.0.1:1").bridge)
	_, err := d.Handle(context.Background(), Message{Action: "openSidePanel"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestDispatcherAnalyzeValidates(t *testing.T) {
	d := NewDispatcher(newHarness(t, "http://127.0.0.1:1").bridge)
	if _, err := d.Handle(context.Background(), Message{Action: ActionAnalyzeText, Text: "hi"}); err == nil {
		t.Fatal("expected too short error")
	}
}
