package client

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Normalize rewrites the Finding service's JSON convention into plain
// nested objects: every field arrives as an array, so single-element arrays
// collapse to their element; attribute keys lose their "@" prefix
// ("@currencyId" -> "currencyId") and text content "__value__" becomes
// "value". Multi-element arrays stay arrays.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[normalizeKey(k)] = Normalize(val)
		}
		return out
	case []any:
		if len(t) == 1 {
			return Normalize(t[0])
		}
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}

func normalizeKey(k string) string {
	if k == "__value__" {
		return "value"
	}
	return strings.TrimPrefix(k, "@")
}

// ErrorMessage extracts errorMessage.error.message from a normalised
// response, joining several errors with "; ".
func ErrorMessage(resp map[string]any) string {
	em, ok := resp["errorMessage"].(map[string]any)
	if !ok {
		return ""
	}

	var errs []any
	switch e := em["error"].(type) {
	case map[string]any:
		errs = []any{e}
	case []any:
		errs = e
	}

	var msgs []string
	for _, e := range errs {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if msg, ok := m["message"].(string); ok && msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return strings.Join(msgs, "; ")
}

// decodeResponse parses a response body and strips the
// "<operation>Response" wrapper when present.
func decodeResponse(operation string, body []byte) (map[string]any, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}

	norm := Normalize(raw)
	if m, ok := norm.(map[string]any); ok {
		if inner, ok := m[operation+"Response"].(map[string]any); ok {
			return inner, nil
		}
	}

	m, ok := unwrapOperation(norm).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode %s response: top level is %T, want object", operation, norm)
	}
	return m, nil
}

// unwrapOperation strips a single "...Response" wrapper key.
func unwrapOperation(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	for k, inner := range m {
		if strings.HasSuffix(k, "Response") {
			return inner
		}
	}
	return v
}
