package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	historyKey = "history"
	MaxHistory = 10
)

type HistoryItem struct {
	ID     string `yaml:"id" json:"id"`
	Text   string `yaml:"text" json:"text"`
	Result string `yaml:"result" json:"result"`
	// Timestamp is in Unix milliseconds.
	Timestamp int64 `yaml:"timestamp" json:"timestamp"`
}

// HistoryStore keeps the most recent analyses, newest first.
type HistoryStore struct {
	kv  KV
	mu  sync.Mutex
	now func() time.Time
}

func NewHistoryStore(kv KV) *HistoryStore {
	return &HistoryStore{kv: kv, now: time.Now}
}

func (h *HistoryStore) List() ([]HistoryItem, error) {
	var items []HistoryItem
	if _, err := h.kv.Get(historyKey, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []HistoryItem{}
	}
	return items, nil
}

// Append stores item at the head and evicts the oldest entries beyond
// MaxHistory. Missing ids are assigned a time-ordered UUID.
func (h *HistoryStore) Append(item HistoryItem) (HistoryItem, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if item.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return HistoryItem{}, fmt.Errorf("generate history id: %w", err)
		}
		item.ID = id.String()
	}
	if item.Timestamp == 0 {
		item.Timestamp = h.now().UnixMilli()
	}
	items, err := h.List()
	if err != nil {
		return HistoryItem{}, err
	}
	items = append([]HistoryItem{item}, items...)
	if len(items) > MaxHistory {
		items = items[:MaxHistory]
	}
	if err := h.kv.Set(historyKey, items); err != nil {
		return HistoryItem{}, fmt.Errorf("store history: %w", err)
	}
	return item, nil
}

func (h *HistoryStore) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kv.Set(historyKey, []HistoryItem{})
}
