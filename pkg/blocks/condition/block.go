package condition

import (
	"context"
	"errors"
	"strings"

	"github.com/dukex/blockflow/pkg/protocol"
	"github.com/dukex/blockflow/pkg/template"
)

const (
	HandleTrue  = "true"
	HandleFalse = "false"
)

// Evaluate reads the rendered condition and selects the matching handle.
func Evaluate(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	value, ok := req.Config["condition"]
	if !ok {
		return protocol.CallResult{}, errors.New("missing required field 'condition'")
	}

	result := evaluate(value)

	handle := HandleFalse
	if result {
		handle = HandleTrue
	}

	return protocol.CallResult{
		Success: true,
		Output:  map[string]any{"result": result, "value": value},
		Handle:  handle,
	}, nil
}

func evaluate(value any) bool {
	expr, ok := value.(string)
	if !ok {
		return template.Truthy(value)
	}

	if left, right, found := strings.Cut(expr, "!="); found {
		return operand(left) != operand(right)
	}

	if left, right, found := strings.Cut(expr, "=="); found {
		return operand(left) == operand(right)
	}

	return template.Truthy(expr)
}

func operand(s string) string {
	s = strings.TrimSpace(s)

	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}

	return s
}
