package observability

import (
	"encoding/json"
	"fmt"
	"strings"
)

var sensitiveKeys = []string{
	"api_key", "apikey", "apiKey", "x-api-key", "authorization", "auth", "token", "access_token", "refresh_token", "password", "secret", "bearer",
}

// contentKeys names the memoryd envelope/memory fields that carry
// arbitrarily large user content or embedding vectors. Logging these in
// full is both noisy (a 1024-float embedding dwarfs the rest of a log
// line) and a quiet way to leak whatever a user asked memoryd to
// remember into operational logs, so they are summarized rather than
// dropped outright.
var contentKeys = []string{"text", "embedding", "vector"}

const textPreviewLen = 80

// RedactJSON takes a JSON payload — typically a queue envelope or DLQ
// record — and redacts secret-shaped fields, summarizing memory text and
// embedding vectors in place of logging them verbatim.
func RedactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	redacted := redactValue(v)
	b, err := json.Marshal(redacted)
	if err != nil {
		return raw
	}
	return b
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, vv := range val {
			switch {
			case isSensitiveKey(k):
				val[k] = "[REDACTED]"
			case isContentKey(k):
				val[k] = summarizeContent(vv)
			default:
				val[k] = redactValue(vv)
			}
		}
		return val
	case []any:
		for i := range val {
			val[i] = redactValue(val[i])
		}
		return val
	default:
		return v
	}
}

// summarizeContent replaces memory text with a short preview and an
// embedding/vector array with its length, so a DLQ or debug log line
// stays legible without reproducing the full memory or its embedding.
func summarizeContent(v any) any {
	switch val := v.(type) {
	case string:
		if len(val) <= textPreviewLen {
			return val
		}
		return val[:textPreviewLen] + "…"
	case []any:
		return fmt.Sprintf("[%d floats]", len(val))
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	low := strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if low == s {
			return true
		}
		// contains common header forms
		if strings.Contains(low, s) {
			return true
		}
	}
	return false
}

func isContentKey(k string) bool {
	low := strings.ToLower(k)
	for _, s := range contentKeys {
		if low == s {
			return true
		}
	}
	return false
}
