package admin

import (
	"strings"

	"grammarrelay/internal/config"
	"grammarrelay/internal/util"
)

// writeJSON is a package-internal alias for the shared util version.
var writeJSON = util.WriteJSON

// maskSecret keeps the last four characters of a configured secret.
func maskSecret(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func redactedConfig(c *config.Config) map[string]any {
	return map[string]any{
		"port": c.Port,
		"upstream": map[string]any{
			"url":         c.Upstream.URL,
			"model":       c.Upstream.Model,
			"temperature": c.Upstream.Temperature,
			"max_tokens":  c.Upstream.MaxTokens,
			"timeout":     c.Upstream.Timeout.String(),
			"fingerprint": nilIfEmpty(c.Upstream.Fingerprint),
			"verbose":     c.Upstream.Verbose,
			"api_key":     nilIfEmpty(maskSecret(c.Upstream.APIKey)),
		},
		"relay": map[string]any{
			"min_words":          c.Relay.MinWords,
			"max_words":          c.Relay.MaxWords,
			"heartbeat_interval": c.Relay.HeartbeatInterval.String(),
			"mock_delay":         c.Relay.MockDelay.String(),
			"access_key":         nilIfEmpty(maskSecret(c.Relay.AccessKey)),
		},
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
	}
}
