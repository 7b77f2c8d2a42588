package commit

import (
	"encoding/json"
	"mime"
	"strings"
)

// maxMessageLen is the longest response body surfaced verbatim.
const maxMessageLen = 500

// ExtractMessage pulls a user-visible message out of a rejected response.
//
// JSON bodies contribute their "detail", "error" or "message" field. Plain
// text bodies are used as-is when shorter than 500 bytes. HTML error pages
// and anything else yield "".
func ExtractMessage(contentType string, body []byte) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			return ""
		}
		for _, key := range []string{"detail", "error", "message"} {
			if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	case mediaType == "text/html":
		return ""
	}

	text := strings.TrimSpace(string(body))
	if text == "" || len(text) >= maxMessageLen {
		return ""
	}
	return text
}
