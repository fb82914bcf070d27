package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

const greeter = `{
  "blocks": {
    "start": {"type": "starter", "name": "Start", "enabled": true},
    "greet": {"type": "transform", "name": "Greet", "enabled": true,
              "config": {"expression": "hello {{ .inputs.name }}"}}
  },
  "edges": [{"source": "start", "target": "greet"}]
}`

func writeDocument(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// invoke runs a sub command through a root command the way main does.
func invoke(t *testing.T, sub *cli.Command, action func(context.Context, *cli.Command) error, args ...string) error {
	t.Helper()

	sub.Action = action
	root := &cli.Command{
		Name: "blockflow",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "plugins-path", Value: filepath.Join(t.TempDir(), "plugins")},
		},
		Commands: []*cli.Command{sub},
	}

	return root.Run(context.Background(), append([]string{"blockflow", sub.Name}, args...))
}

func TestRunCommand(t *testing.T) {
	var out bytes.Buffer

	err := invoke(t, RunCommand(), func(ctx context.Context, command *cli.Command) error {
		return runWorkflow(ctx, command, nil, &out)
	}, "--input", "name=Ada", writeDocument(t, greeter))
	require.NoError(t, err)

	var result models.ExecutionResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, map[string]any{"result": "hello Ada"}, result.Output)
}

func TestRunCommand_StoredWorkflowFromStdin(t *testing.T) {
	var out bytes.Buffer

	stdin := strings.NewReader(`{"id": "wf-1", "name": "Greeter", "graph": ` + greeter + `}`)

	err := invoke(t, RunCommand(), func(ctx context.Context, command *cli.Command) error {
		return runWorkflow(ctx, command, stdin, &out)
	}, "-i", "name=Grace", "-")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hello Grace")
}

func TestRunCommand_Failure(t *testing.T) {
	var out bytes.Buffer

	doc := strings.Replace(greeter, "hello {{ .inputs.name }}", "{{ index .missing 1 }}", 1)

	err := invoke(t, RunCommand(), func(ctx context.Context, command *cli.Command) error {
		return runWorkflow(ctx, command, nil, &out)
	}, writeDocument(t, doc))
	require.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, out.String(), `"success": false`)
}

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer

	err := invoke(t, ValidateCommand(), func(_ context.Context, command *cli.Command) error {
		return validateWorkflow(command, nil, &out)
	}, writeDocument(t, greeter))
	require.NoError(t, err)
	assert.Equal(t, "valid: 2 blocks, 1 edges, 0 loops\n", out.String())

	cyclic := `{"blocks": {"a": {"type": "transform", "enabled": true, "config": {"expression": "x"}},
		"b": {"type": "transform", "enabled": true, "config": {"expression": "y"}}},
		"edges": [{"source": "a", "target": "b"}, {"source": "b", "target": "a"}]}`

	err = invoke(t, ValidateCommand(), func(_ context.Context, command *cli.Command) error {
		return validateWorkflow(command, nil, &out)
	}, writeDocument(t, cyclic))
	assert.Error(t, err)
}

func TestParsePairs(t *testing.T) {
	pairs, err := parsePairs([]string{"name=Ada", "count=3", "tags=[\"a\"]", "empty="})
	require.NoError(t, err)

	assert.Equal(t, "Ada", pairs["name"])
	assert.InDelta(t, 3.0, pairs["count"], 0)
	assert.Equal(t, []any{"a"}, pairs["tags"])
	assert.Equal(t, "", pairs["empty"])

	_, err = parsePairs([]string{"novalue"})
	assert.ErrorIs(t, err, errBadPair)

	_, err = parseSecrets([]string{"=x"})
	assert.ErrorIs(t, err, errBadPair)
}
