package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/blockflow/pkg/protocol"
)

const HandleDefault = "default"

type routeCase struct {
	value  string
	handle string
}

// Route matches the rendered value against the cases in order.
func Route(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	value, ok := req.Config["value"]
	if !ok {
		return protocol.CallResult{}, errors.New("missing required field 'value'")
	}

	cases, err := parseCases(req.Config["cases"])
	if err != nil {
		return protocol.CallResult{}, err
	}

	handle := HandleDefault
	if fallback, ok := req.Config["default"].(string); ok && fallback != "" {
		handle = fallback
	}

	matched := false
	key := fmt.Sprint(value)

	for _, c := range cases {
		if c.value == key {
			handle = c.handle
			matched = true

			break
		}
	}

	return protocol.CallResult{
		Success: true,
		Output:  map[string]any{"value": value, "handle": handle, "matched": matched},
		Handle:  handle,
	}, nil
}

func parseCases(raw any) ([]routeCase, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, errors.New("missing required field 'cases'")
	}

	cases := make([]routeCase, 0, len(list))

	for i, item := range list {
		caseMap, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("case %d must be an object", i)
		}

		value, ok := caseMap["value"]
		if !ok {
			return nil, fmt.Errorf("case %d missing 'value'", i)
		}

		handle, ok := caseMap["handle"].(string)
		if !ok || handle == "" {
			return nil, fmt.Errorf("case %d missing 'handle'", i)
		}

		cases = append(cases, routeCase{value: fmt.Sprint(value), handle: handle})
	}

	return cases, nil
}
