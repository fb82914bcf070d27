// Package template renders block configuration and loop conditions against run data.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Data is the value every expression is rendered against.
type Data struct {
	Inputs map[string]any `json:"inputs"`
	Blocks map[string]any `json:"blocks"`
	Loop   map[string]any `json:"loop,omitempty"`
}

// Map exposes the data under the lowercase keys expressions use: .inputs, .blocks and .loop.
func (d Data) Map() map[string]any {
	return map[string]any{
		"inputs": d.Inputs,
		"blocks": d.Blocks,
		"loop":   d.Loop,
	}
}

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"rand": func(max int) int {
		if max <= 0 {
			return 0
		}

		num := make([]byte, 1)

		_, err := rand.Read(num)
		if err != nil {
			return 0
		}

		return int(num[0]) % max
	},
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)

		return string(b), err
	},
	"default": func(fallback, v any) any {
		if v == nil || v == "" {
			return fallback
		}

		return v
	},
}

// NeedsTemplating reports whether s contains an expression.
func NeedsTemplating(s string) bool {
	return strings.Contains(s, "{{")
}

// Render executes templateStr against data. Results that read as JSON,
// numbers or booleans are returned typed; anything else stays a string.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.New("expression").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}

		return result, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderValue walks maps and slices, rendering every string that holds an expression.
func RenderValue(value any, data any) (any, error) {
	switch v := value.(type) {
	case string:
		if !NeedsTemplating(v) {
			return v, nil
		}

		return Render(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))

		for key, item := range v {
			rendered, err := RenderValue(item, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}

			out[key] = rendered
		}

		return out, nil
	case []any:
		out := make([]any, len(v))

		for i, item := range v {
			rendered, err := RenderValue(item, data)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}

			out[i] = rendered
		}

		return out, nil
	default:
		return value, nil
	}
}
