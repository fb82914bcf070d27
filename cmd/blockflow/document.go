package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/models"
)

var errBadPair = errors.New("expected KEY=VALUE")

// loadGraph reads a workflow document, either a bare graph or a stored
// workflow carrying one under "graph". "-" reads stdin.
func loadGraph(path string, stdin io.Reader) (*models.WorkflowGraph, error) {
	var (
		data []byte
		err  error
	)

	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read workflow %s: %w", path, err)
	}

	var envelope struct {
		Graph json.RawMessage `json:"graph"`
	}

	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Graph) > 0 {
		data = envelope.Graph
	}

	return graph.Parse(data)
}

// parsePairs turns KEY=VALUE arguments into a map. Values that are valid
// JSON keep their type; anything else is a string.
func parsePairs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		key, raw, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", errBadPair, pair)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}

		out[key] = value
	}

	return out, nil
}

func parseSecrets(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", errBadPair, pair)
		}

		out[key] = value
	}

	return out, nil
}
