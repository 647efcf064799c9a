package stream

import (
	"bytes"
	"encoding/json"
)

// lineField is the JSON object key carrying the line text.
const lineField = "line"

// DecodeFrame turns an inbound frame payload into entry text.
//
// A JSON object with a truthy "line" field yields that field; anything else
// (plain text, other JSON values, objects without a usable "line") yields the
// raw payload unchanged. A parse failure is not an error, it is the plain
// text path.
func DecodeFrame(payload []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return string(payload)
	}

	raw, ok := obj[lineField]
	if !ok {
		return string(payload)
	}

	if text, ok := lineText(raw); ok {
		return text
	}
	return string(payload)
}

// lineText renders a "line" value as text, reporting false for falsy values
// ("", 0, false, null) so callers fall back to the raw payload. Non-string
// values keep their JSON spelling: 1e2 stays "1e2" and {"a":1} stays
// `{"a":1}`, never "100" or "[object Object]".
func lineText(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}

	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case bool:
		return "true", t
	case float64:
		return string(bytes.TrimSpace(raw)), t != 0
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return string(raw), true
		}
		return buf.String(), true
	}
}
