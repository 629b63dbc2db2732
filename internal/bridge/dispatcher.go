package bridge

import (
	"context"
	"errors"
	"fmt"

	"grammarrelay/internal/store"
)

const (
	ActionAnalyzeText    = "analyzeText"
	ActionGetHistory     = "getHistory"
	ActionSaveToHistory  = "saveToHistory"
	ActionGetSettings    = "getSettings"
	ActionUpdateSettings = "updateSettings"
	ActionClearHistory   = "clearHistory"
)

var ErrUnknownAction = errors.New("unknown action")

// Message is a request from a UI surface to the bridge.
type Message struct {
	Action   string               `json:"action"`
	Text     string               `json:"text,omitempty"`
	Data     *store.HistoryItem   `json:"data,omitempty"`
	Settings *store.SettingsPatch `json:"settings,omitempty"`
}

type Dispatcher struct {
	bridge   *Bridge
	settings *store.SettingsStore
	history  *store.HistoryStore
}

func NewDispatcher(b *Bridge) *Dispatcher {
	return &Dispatcher{bridge: b, settings: b.settings, history: b.history}
}

// Handle routes msg to its action. analyzeText returns no value; its
// progress is delivered on the bus.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (any, error) {
	switch msg.Action {
	case ActionAnalyzeText:
		return nil, d.bridge.Analyze(ctx, msg.Text)
	case ActionGetHistory:
		return d.history.List()
	case ActionSaveToHistory:
		if msg.Data == nil {
			return nil, errors.New("saveToHistory requires data")
		}
		return d.history.Append(*msg.Data)
	case ActionGetSettings:
		return d.settings.Get()
	case ActionUpdateSettings:
		patch := store.SettingsPatch{}
		if msg.Settings != nil {
			patch = *msg.Settings
		}
		return d.settings.Update(patch)
	case ActionClearHistory:
		return nil, d.history.Clear()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}
}
