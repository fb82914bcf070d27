package router

import (
	"context"
	"testing"

	"github.com/dukex/blockflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func route(t *testing.T, config map[string]any) protocol.CallResult {
	t.Helper()

	result, err := Route(context.Background(), protocol.CallRequest{Config: config})
	require.NoError(t, err)

	return result
}

func TestRoute(t *testing.T) {
	cases := []any{
		map[string]any{"value": "bug", "handle": "triage"},
		map[string]any{"value": "feature", "handle": "backlog"},
		map[string]any{"value": 2.0, "handle": "two"},
	}

	assert.Equal(t, "backlog", route(t, map[string]any{"value": "feature", "cases": cases}).Handle)
	assert.Equal(t, "two", route(t, map[string]any{"value": 2.0, "cases": cases}).Handle)

	miss := route(t, map[string]any{"value": "question", "cases": cases})
	assert.Equal(t, HandleDefault, miss.Handle)
	assert.Equal(t, map[string]any{"value": "question", "handle": HandleDefault, "matched": false}, miss.Output)

	custom := route(t, map[string]any{"value": "question", "cases": cases, "default": "inbox"})
	assert.Equal(t, "inbox", custom.Handle)
}

func TestRoute_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		err    string
	}{
		{"missing value", map[string]any{"cases": []any{}}, "'value'"},
		{"missing cases", map[string]any{"value": "x"}, "'cases'"},
		{"case not object", map[string]any{"value": "x", "cases": []any{"x"}}, "case 0 must be an object"},
		{"case without handle", map[string]any{"value": "x", "cases": []any{map[string]any{"value": "x"}}}, "case 0 missing 'handle'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Route(context.Background(), protocol.CallRequest{Config: tt.config})
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestFactory_AcceptsAnyHandle(t *testing.T) {
	assert.True(t, NewFactory().Definition().AcceptsOutput("anything"))
}
