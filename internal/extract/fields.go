package extract

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Aliases maps a canonical field name to the ordered list of keys the
// completion service has been observed to use for it. Adding a newly
// observed key name is a one-line change here or in the YAML config.
type Aliases map[string][]string

// Lookup returns the first non-empty value in obj for field. Candidate keys
// are first matched exactly, in order, then matched again after normalizing
// case and separators on both sides, so "search_volume" and "Search Volume"
// find the "searchVolume" candidate.
func (a Aliases) Lookup(obj map[string]any, field string) (any, bool) {
	candidates := a[field]
	if len(candidates) == 0 || len(obj) == 0 {
		return nil, false
	}

	for _, key := range candidates {
		if v, ok := obj[key]; ok && present(v) {
			return v, true
		}
	}

	normalized := make(map[string]any, len(obj))
	for k, v := range obj {
		nk := normalizeKey(k)
		if _, dup := normalized[nk]; !dup && present(v) {
			normalized[nk] = v
		}
	}
	for _, key := range candidates {
		if v, ok := normalized[normalizeKey(key)]; ok {
			return v, true
		}
	}
	return nil, false
}

// Merge returns a copy of a with the candidates of extra appended per field.
// Duplicate keys are skipped; fields unknown to a are added.
func (a Aliases) Merge(extra Aliases) Aliases {
	out := make(Aliases, len(a)+len(extra))
	for field, keys := range a {
		out[field] = append([]string(nil), keys...)
	}
	for field, keys := range extra {
		for _, key := range keys {
			key = strings.TrimSpace(key)
			if key == "" || containsKey(out[field], key) {
				continue
			}
			out[field] = append(out[field], key)
		}
	}
	return out
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func normalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.ToLower(key) {
		switch r {
		case '_', '-', ' ', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// present treats nil and blank strings as missing so the next candidate key is tried.
func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	default:
		return true
	}
}

// TextValue renders a scalar as trimmed text. Objects, arrays and blank
// strings yield false.
func TextValue(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case bool:
		s = strconv.FormatBool(val)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// TextPtr is TextValue returning nil when no text is present.
func TextPtr(v any) *string {
	s, ok := TextValue(v)
	if !ok {
		return nil
	}
	return &s
}
