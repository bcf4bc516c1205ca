package extract

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Outcome reports how a payload was recovered from assistant text.
type Outcome int

const (
	// Failed means no structured payload could be recovered.
	Failed Outcome = iota
	// Parsed means the whole text (after fence stripping) was a payload.
	Parsed
	// Salvaged means only the slice between the first '{' and the last '}' parsed.
	Salvaged
)

func (o Outcome) String() string {
	switch o {
	case Parsed:
		return "parsed"
	case Salvaged:
		return "salvaged"
	default:
		return "failed"
	}
}

// OK reports whether a payload was recovered.
func (o Outcome) OK() bool {
	return o != Failed
}

// ParsePayload recovers a JSON object or array from assistant text.
//
// Stage one parses the entire text, tolerating a surrounding markdown code
// fence. Stage two parses the slice between the first '{' and the last '}',
// which recovers payloads wrapped in commentary. A scalar payload counts as a
// failure. Objects decode to map[string]any and arrays to []any, with numbers
// kept as json.Number.
func ParsePayload(text string) (any, Outcome) {
	trimmed := stripCodeFence(strings.TrimSpace(text))
	if trimmed == "" {
		return nil, Failed
	}

	if v, err := decodeStructured(trimmed); err == nil {
		return v, Parsed
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return nil, Failed
	}
	if v, err := decodeStructured(trimmed[start : end+1]); err == nil {
		return v, Salvaged
	}
	return nil, Failed
}

var errNotStructured = errors.New("payload is not an object or array")

func decodeStructured(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after payload")
	}

	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	default:
		return nil, errNotStructured
	}
}

// stripCodeFence removes a ```json ... ``` wrapper when the text is exactly one fenced block.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	body := text[3 : len(text)-3]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// Drop the info string, e.g. "json".
		if !strings.ContainsAny(body[:nl], "{[") {
			body = body[nl+1:]
		}
	}
	return strings.TrimSpace(body)
}
