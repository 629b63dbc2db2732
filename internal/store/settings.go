package store

import (
	"fmt"
	"sync"

	"grammarrelay/internal/config"
)

const settingsKey = "settings"

const DefaultAPIURL = "http://127.0.0.1:" + config.DefaultPort

type Settings struct {
	APIURL      string `yaml:"apiUrl" json:"apiUrl"`
	MinWords    int    `yaml:"minWords" json:"minWords"`
	MaxWords    int    `yaml:"maxWords" json:"maxWords"`
	Theme       string `yaml:"theme" json:"theme"`
	AutoTrigger bool   `yaml:"autoTrigger" json:"autoTrigger"`
	ShortcutKey string `yaml:"shortcutKey" json:"shortcutKey"`
}

func DefaultSettings() Settings {
	return Settings{
		APIURL:      DefaultAPIURL,
		MinWords:    config.DefaultMinWords,
		MaxWords:    config.DefaultMaxWords,
		Theme:       "light",
		AutoTrigger: true,
		ShortcutKey: "Ctrl+Shift+G",
	}
}

// SettingsPatch carries the fields to overwrite; nil fields are kept.
type SettingsPatch struct {
	APIURL      *string `json:"apiUrl,omitempty"`
	MinWords    *int    `json:"minWords,omitempty"`
	MaxWords    *int    `json:"maxWords,omitempty"`
	Theme       *string `json:"theme,omitempty"`
	AutoTrigger *bool   `json:"autoTrigger,omitempty"`
	ShortcutKey *string `json:"shortcutKey,omitempty"`
}

func (p SettingsPatch) apply(s Settings) Settings {
	if p.APIURL != nil {
		s.APIURL = *p.APIURL
	}
	if p.MinWords != nil {
		s.MinWords = *p.MinWords
	}
	if p.MaxWords != nil {
		s.MaxWords = *p.MaxWords
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.AutoTrigger != nil {
		s.AutoTrigger = *p.AutoTrigger
	}
	if p.ShortcutKey != nil {
		s.ShortcutKey = *p.ShortcutKey
	}
	return s
}

// SettingsStore is the shared settings record. Concurrent updates resolve
// last-writer-wins.
type SettingsStore struct {
	kv KV
	mu sync.Mutex
}

func NewSettingsStore(kv KV) *SettingsStore {
	return &SettingsStore{kv: kv}
}

// Init stores the defaults when no settings exist yet.
func (s *SettingsStore) Init() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cur Settings
	ok, err := s.kv.Get(settingsKey, &cur)
	if err != nil {
		return Settings{}, err
	}
	if ok {
		return cur, nil
	}
	def := DefaultSettings()
	if err := s.kv.Set(settingsKey, def); err != nil {
		return Settings{}, fmt.Errorf("store default settings: %w", err)
	}
	return def, nil
}

// Get returns the stored settings, or the defaults when none are stored.
func (s *SettingsStore) Get() (Settings, error) {
	var cur Settings
	ok, err := s.kv.Get(settingsKey, &cur)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		return DefaultSettings(), nil
	}
	return cur, nil
}

// Update merges patch into the current settings and returns the result.
func (s *SettingsStore) Update(patch SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.Get()
	if err != nil {
		return Settings{}, err
	}
	next := patch.apply(cur)
	if next.MinWords <= 0 || next.MaxWords < next.MinWords {
		return Settings{}, fmt.Errorf("invalid word bounds [%d, %d]", next.MinWords, next.MaxWords)
	}
	if err := s.kv.Set(settingsKey, next); err != nil {
		return Settings{}, fmt.Errorf("store settings: %w", err)
	}
	return next, nil
}
