package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/invoker"
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testResolver serves capabilities keyed by block type and counts calls per block.
type testResolver struct {
	mu           sync.Mutex
	capabilities map[string]protocol.Capability
	calls        map[string]int
}

func newTestResolver(capabilities map[string]protocol.Capability) *testResolver {
	return &testResolver{capabilities: capabilities, calls: make(map[string]int)}
}

func (r *testResolver) Resolve(blockType, _ string) (string, error) {
	if _, ok := r.capabilities[blockType]; !ok {
		return "", errors.New("not registered")
	}

	return blockType, nil
}

func (r *testResolver) Call(ctx context.Context, capabilityID string, req protocol.CallRequest) (protocol.CallResult, error) {
	r.mu.Lock()
	r.calls[req.BlockID]++
	r.mu.Unlock()

	return r.capabilities[capabilityID].Call(ctx, req)
}

func (r *testResolver) count(blockID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls[blockID]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func ok(output any) protocol.Capability {
	return protocol.CapabilityFunc(func(context.Context, protocol.CallRequest) (protocol.CallResult, error) {
		return protocol.CallResult{Success: true, Output: output}, nil
	})
}

func starter() protocol.Capability {
	return protocol.CapabilityFunc(func(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
		return protocol.CallResult{Success: true, Output: map[string]any{"input": req.RuntimeInputs}}, nil
	})
}

// branch selects the handle named by its "take" config.
func branch() protocol.Capability {
	return protocol.CapabilityFunc(func(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
		take, _ := req.Config["take"].(string)

		return protocol.CallResult{Success: true, Output: map[string]any{"result": take == "true"}, Handle: take}, nil
	})
}

// counter outputs how many times the block ran, read from its iteration.
func counter() protocol.Capability {
	return protocol.CapabilityFunc(func(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
		return protocol.CallResult{Success: true, Output: map[string]any{"count": req.Iteration}}, nil
	})
}

func b(id, blockType string) *models.Block {
	return &models.Block{ID: id, Type: blockType, Name: id, Enabled: true, Config: map[string]any{}}
}

func e(source, target string) *models.Edge {
	return &models.Edge{ID: source + "->" + target, Source: source, Target: target}
}

func wf(blocks []*models.Block, edges []*models.Edge, loops ...*models.LoopScope) *models.WorkflowGraph {
	g := &models.WorkflowGraph{Blocks: map[string]*models.Block{}, Edges: edges, Loops: map[string]*models.LoopScope{}}
	for _, blk := range blocks {
		g.Blocks[blk.ID] = blk
	}

	for _, l := range loops {
		g.Loops[l.ID] = l
	}

	return g
}

func TestExecute_StarterThenAgent(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{
		"starter": starter(),
		"agent":   ok(map[string]any{"response": "hi"}),
	})
	g := wf([]*models.Block{b("start", "starter"), b("agent", "agent")}, []*models.Edge{e("start", "agent")})

	result, err := New(testLogger()).Execute(context.Background(), g, map[string]any{"q": "hello"}, nil, res)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.RunStatusSucceeded, result.Status)
	assert.Equal(t, map[string]any{"response": "hi"}, result.Output)
	require.Len(t, result.Logs, 2)
	assert.Equal(t, "start", result.Logs[0].BlockID)
	assert.Equal(t, "agent", result.Logs[1].BlockID)
	assert.Len(t, result.Trace.Spans, 2)
	assert.GreaterOrEqual(t, result.Metadata.Duration, result.Trace.TotalDuration)
	assert.False(t, result.Metadata.StartTime.After(result.Metadata.EndTime))
	require.True(t, strings.HasPrefix(result.ID, "exec-"))
	_, err = uuid.Parse(strings.TrimPrefix(result.ID, "exec-"))
	assert.NoError(t, err, "execution ids carry a full uuid")
}

func TestExecute_IndependentBlocksRunConcurrently(t *testing.T) {
	var running, maxRunning atomic.Int32

	bothStarted := make(chan struct{})

	var once sync.Once

	slow := protocol.CapabilityFunc(func(ctx context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
		n := running.Add(1)
		defer running.Add(-1)

		for {
			current := maxRunning.Load()
			if n <= current || maxRunning.CompareAndSwap(current, n) {
				break
			}
		}

		if n == 2 {
			once.Do(func() { close(bothStarted) })
		}

		select {
		case <-bothStarted:
		case <-time.After(2 * time.Second):
		}

		time.Sleep(50 * time.Millisecond)

		return protocol.CallResult{Success: true, Output: req.BlockID}, nil
	})

	var joinInputs map[string]any

	join := protocol.CapabilityFunc(func(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
		joinInputs = req.Inputs

		return protocol.CallResult{Success: true, Output: "joined"}, nil
	})

	res := newTestResolver(map[string]protocol.Capability{"starter": starter(), "slow": slow, "join": join})
	g := wf(
		[]*models.Block{b("a", "starter"), b("b", "slow"), b("c", "slow"), b("d", "join")},
		[]*models.Edge{e("a", "b"), e("a", "c"), e("b", "d"), e("c", "d")},
	)

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)
	require.NoError(t, err)

	assert.Equal(t, int32(2), maxRunning.Load())
	assert.Equal(t, "joined", result.Output)
	assert.Equal(t, map[string]any{"b": "b", "c": "c"}, joinInputs)

	var bEnd, cEnd, dStart time.Time

	for _, entry := range result.Logs {
		switch entry.BlockID {
		case "b":
			bEnd = entry.EndedAt
		case "c":
			cEnd = entry.EndedAt
		case "d":
			dStart = entry.StartedAt
		}
	}

	assert.False(t, dStart.Before(bEnd), "d starts after b ends")
	assert.False(t, dStart.Before(cEnd), "d starts after c ends")

	var summed int64
	for _, span := range result.Trace.Spans {
		summed += span.DurationMs
	}

	assert.Less(t, result.Trace.TotalDuration, summed, "parallel spans overlap in wall clock")
}

func TestExecute_MaxConcurrency(t *testing.T) {
	var running, maxRunning atomic.Int32

	slow := protocol.CapabilityFunc(func(context.Context, protocol.CallRequest) (protocol.CallResult, error) {
		n := running.Add(1)
		defer running.Add(-1)

		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}

		time.Sleep(10 * time.Millisecond)

		return protocol.CallResult{Success: true}, nil
	})

	res := newTestResolver(map[string]protocol.Capability{"slow": slow})
	g := wf([]*models.Block{b("x", "slow"), b("y", "slow"), b("z", "slow")}, nil)

	result, err := New(testLogger(), WithMaxConcurrency(1)).Execute(context.Background(), g, nil, nil, res)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Len(t, result.Logs, 3)
}

func TestExecute_BranchPrunesInactiveHandle(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{
		"starter": starter(),
		"branch":  branch(),
		"work":    ok("done"),
	})

	cond := b("cond", "branch")
	cond.Config["take"] = "false"

	g := wf(
		[]*models.Block{b("start", "starter"), cond, b("yes", "work"), b("yes-2", "work"), b("no", "work")},
		[]*models.Edge{
			e("start", "cond"),
			{ID: "t", Source: "cond", Target: "yes", SourceHandle: "true"},
			e("yes", "yes-2"),
			{ID: "f", Source: "cond", Target: "no", SourceHandle: "false"},
		},
	)

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, res.count("yes"))
	assert.Equal(t, 0, res.count("yes-2"))
	assert.Equal(t, 1, res.count("no"))
	assert.Equal(t, "done", result.Output, "pruned terminal blocks contribute no output")
	assert.Len(t, result.Logs, 3)
}

func TestExecute_LoopRunsToMaxIterations(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{"starter": starter(), "counter": counter(), "work": ok("after")})
	g := wf(
		[]*models.Block{b("start", "starter"), b("step", "counter"), b("after", "work")},
		[]*models.Edge{e("start", "step"), e("step", "after")},
		&models.LoopScope{ID: "loop", Nodes: []string{"step"}, MaxIterations: 3},
	)

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)
	require.NoError(t, err)

	assert.Equal(t, 3, res.count("step"))
	assert.Equal(t, 1, res.count("after"))
	assert.Len(t, result.Logs, 5)

	iterations := 0

	for _, span := range result.Trace.Spans {
		if span.Type == models.SpanTypeIteration {
			iterations++

			require.Len(t, span.Children, 1)
			assert.Equal(t, "step", span.Children[0].BlockID)
			assert.Equal(t, iterations, span.Iteration)
		}
	}

	assert.Equal(t, 3, iterations)
}

func TestExecute_LoopExitCondition(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{"counter": counter(), "work": ok("after")})

	var afterInputs map[string]any

	res.capabilities["inspect"] = protocol.CapabilityFunc(func(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
		afterInputs = req.Inputs

		return protocol.CallResult{Success: true}, nil
	})

	g := wf(
		[]*models.Block{b("step", "counter"), b("after", "inspect")},
		[]*models.Edge{e("step", "after")},
		&models.LoopScope{ID: "loop", Nodes: []string{"step"}, MaxIterations: 10, Condition: `{{ ge (index .blocks "step" "count") 2 }}`},
	)

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, res.count("step"))
	assert.Equal(t, map[string]any{"step": map[string]any{"count": 2}}, afterInputs)
}

func TestExecute_LoopWithInternalCycle(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{"starter": starter(), "counter": counter()})
	g := wf(
		[]*models.Block{b("start", "starter"), b("think", "counter"), b("check", "counter")},
		[]*models.Edge{e("start", "think"), e("think", "check"), e("check", "think")},
		&models.LoopScope{ID: "loop", Nodes: []string{"think", "check"}, MaxIterations: 2},
	)

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, res.count("think"))
	assert.Equal(t, 2, res.count("check"))

	order := make([]string, 0, len(result.Logs))
	for _, entry := range result.Logs {
		order = append(order, entry.BlockID)
	}

	assert.Equal(t, []string{"start", "think", "check", "think", "check"}, order)
}

func TestExecute_FailureStopsDownstream(t *testing.T) {
	failing := protocol.CapabilityFunc(func(context.Context, protocol.CallRequest) (protocol.CallResult, error) {
		return protocol.CallResult{}, errors.New("rate limited")
	})
	res := newTestResolver(map[string]protocol.Capability{"starter": starter(), "fail": failing, "work": ok(1)})

	broken := b("broken", "fail")
	broken.Name = "Broken step"

	g := wf(
		[]*models.Block{b("start", "starter"), broken, b("after", "work")},
		[]*models.Edge{e("start", "broken"), e("broken", "after")},
	)

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)
	require.Error(t, err)

	var blockErr *invoker.BlockExecutionError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, "broken", blockErr.BlockID)

	assert.False(t, result.Success)
	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.Contains(t, result.Error, "Broken step")
	assert.Contains(t, result.Error, "rate limited")
	assert.Equal(t, 0, res.count("after"))
	require.Len(t, result.Logs, 2)
	assert.False(t, result.Logs[1].Success)
}

func TestExecute_InFlightSiblingFinishesAfterFailure(t *testing.T) {
	failing := protocol.CapabilityFunc(func(context.Context, protocol.CallRequest) (protocol.CallResult, error) {
		return protocol.CallResult{Success: false, Error: "bad input"}, nil
	})
	slow := protocol.CapabilityFunc(func(context.Context, protocol.CallRequest) (protocol.CallResult, error) {
		time.Sleep(50 * time.Millisecond)

		return protocol.CallResult{Success: true, Output: "slow"}, nil
	})
	res := newTestResolver(map[string]protocol.Capability{"fail": failing, "slow": slow, "work": ok(1)})
	g := wf(
		[]*models.Block{b("bad", "fail"), b("sibling", "slow"), b("next", "work")},
		[]*models.Edge{e("sibling", "next")},
	)

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)
	require.Error(t, err)

	assert.Equal(t, 1, res.count("sibling"))
	assert.Equal(t, 0, res.count("next"))
	assert.Len(t, result.Logs, 2, "the in-flight sibling is recorded")
}

func TestExecute_OnlyBlockDisabled(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{"work": ok(1)})

	off := b("off", "work")
	off.Enabled = false

	result, err := New(testLogger()).Execute(context.Background(), wf([]*models.Block{off}, nil), nil, nil, res)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Nil(t, result.Output)
	assert.Empty(t, result.Logs)
	assert.Equal(t, 0, res.count("off"))
}

func TestExecute_DisabledBlockPrunesOnlyItsDescendants(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{"starter": starter(), "work": ok("done")})

	off := b("off", "work")
	off.Enabled = false

	g := wf(
		[]*models.Block{b("start", "starter"), off, b("only-via-off", "work"), b("both", "work")},
		[]*models.Edge{
			e("start", "off"),
			e("off", "only-via-off"),
			e("start", "both"),
			e("off", "both"),
		},
	)

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.RunStatusSucceeded, result.Status)
	assert.Equal(t, 1, res.count("start"))
	assert.Equal(t, 0, res.count("off"))
	assert.Equal(t, 0, res.count("only-via-off"))
	assert.Equal(t, 1, res.count("both"))
	assert.Len(t, result.Logs, 2)
}

func TestExecute_LoopMemberBehindInactiveBranch(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{
		"starter": starter(),
		"branch":  branch(),
		"work":    ok("done"),
	})

	cond := b("cond", "branch")
	cond.Config["take"] = "true"

	g := wf(
		[]*models.Block{b("start", "starter"), cond, b("yes", "work"), b("no", "work")},
		[]*models.Edge{
			e("start", "cond"),
			{ID: "t", Source: "cond", Target: "yes", SourceHandle: "true"},
			{ID: "f", Source: "cond", Target: "no", SourceHandle: "false"},
		},
		&models.LoopScope{ID: "loop", Nodes: []string{"yes", "no"}, MaxIterations: 2},
	)

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, res.count("yes"))
	assert.Equal(t, 0, res.count("no"), "a member reached only through the unselected handle never runs")
	assert.Len(t, result.Logs, 4)
}

func TestExecute_LoopMemberConfigErrorKeepsIteration(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{"starter": starter(), "work": ok("done")})

	broken := b("broken", "work")
	broken.Config["value"] = "{{ .inputs.x "

	g := wf(
		[]*models.Block{b("start", "starter"), broken},
		[]*models.Edge{e("start", "broken")},
		&models.LoopScope{ID: "loop", Nodes: []string{"broken"}, MaxIterations: 2},
	)

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)
	require.Error(t, err)

	var blockErr *invoker.BlockExecutionError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, "broken", blockErr.BlockID)

	assert.False(t, result.Success)
	assert.Equal(t, 0, res.count("broken"))
	require.Len(t, result.Logs, 2)
	assert.Equal(t, "loop", result.Logs[1].LoopID)
	assert.Equal(t, 1, result.Logs[1].Iteration)
}

func TestExecute_CycleFailsBeforeInvoking(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{"work": ok(1)})
	g := wf([]*models.Block{b("a", "work"), b("b", "work")}, []*models.Edge{e("a", "b"), e("b", "a")})

	result, err := New(testLogger()).Execute(context.Background(), g, nil, nil, res)

	var cyclic *graph.CyclicGraphError
	require.ErrorAs(t, err, &cyclic)
	assert.False(t, result.Success)
	assert.Empty(t, result.Logs)
	assert.Equal(t, 0, res.count("a"))
	assert.Contains(t, result.Error, "a, b")
}

func TestExecute_UnknownCapability(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{})

	result, err := New(testLogger()).Execute(context.Background(), wf([]*models.Block{b("a", "ghost")}, nil), nil, nil, res)

	var unknown *invoker.UnknownCapabilityError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, models.RunStatusFailed, result.Status)
}

func TestExecute_CancellationDrainsInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	slow := protocol.CapabilityFunc(func(callCtx context.Context, _ protocol.CallRequest) (protocol.CallResult, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)

		if callCtx.Err() != nil {
			return protocol.CallResult{}, callCtx.Err()
		}

		return protocol.CallResult{Success: true, Output: "finished"}, nil
	})
	res := newTestResolver(map[string]protocol.Capability{"slow": slow, "work": ok(1)})
	g := wf([]*models.Block{b("long", "slow"), b("next", "work")}, []*models.Edge{e("long", "next")})

	go func() {
		<-started
		cancel()
	}()

	result, err := New(testLogger()).Execute(ctx, g, nil, nil, res)
	require.Error(t, err)

	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.RunStatusCancelled, result.Status)
	assert.False(t, result.Success)
	require.Len(t, result.Logs, 1)
	assert.True(t, result.Logs[0].Success, "in-flight block is not interrupted")
	assert.Equal(t, 0, res.count("next"))
}

func TestExecute_RunTimeout(t *testing.T) {
	slow := protocol.CapabilityFunc(func(context.Context, protocol.CallRequest) (protocol.CallResult, error) {
		time.Sleep(60 * time.Millisecond)

		return protocol.CallResult{Success: true}, nil
	})
	res := newTestResolver(map[string]protocol.Capability{"slow": slow})
	g := wf([]*models.Block{b("one", "slow"), b("two", "slow")}, []*models.Edge{e("one", "two")})

	result, err := New(testLogger(), WithRunTimeout(20*time.Millisecond)).Execute(context.Background(), g, nil, nil, res)
	require.Error(t, err)

	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.RunStatusCancelled, result.Status)
	assert.Equal(t, 0, res.count("two"))
}

func TestExecute_BlockTimeout(t *testing.T) {
	hang := protocol.CapabilityFunc(func(ctx context.Context, _ protocol.CallRequest) (protocol.CallResult, error) {
		<-ctx.Done()

		return protocol.CallResult{}, ctx.Err()
	})
	res := newTestResolver(map[string]protocol.Capability{"hang": hang})

	result, err := New(testLogger(), WithBlockTimeout(20*time.Millisecond)).
		Execute(context.Background(), wf([]*models.Block{b("stuck", "hang")}, nil), nil, nil, res)

	require.ErrorIs(t, err, invoker.ErrTimeout)
	assert.Equal(t, models.RunStatusFailed, result.Status)
}

func TestExecute_SecretsNeverLogged(t *testing.T) {
	leak := protocol.CapabilityFunc(func(_ context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
		return protocol.CallResult{Success: true, Output: map[string]any{"echo": req.Secrets["API_KEY"]}}, nil
	})
	res := newTestResolver(map[string]protocol.Capability{"leak": leak})

	result, err := New(testLogger()).Execute(context.Background(), wf([]*models.Block{b("l", "leak")}, nil),
		nil, map[string]string{"API_KEY": "sk-very-secret"}, res)
	require.NoError(t, err)

	require.Len(t, result.Logs, 1)
	assert.NotContains(t, result.Logs[0].Output, "sk-very-secret")
	assert.Contains(t, result.Logs[0].Output, "****")
}

func TestExecute_RecordsOtelSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	res := newTestResolver(map[string]protocol.Capability{"starter": starter(), "agent": ok("hi")})
	g := wf([]*models.Block{b("start", "starter"), b("agent", "agent")}, []*models.Edge{e("start", "agent")})

	_, err := New(testLogger(), WithTracer(provider.Tracer("test"))).
		Execute(context.Background(), g, nil, nil, res, WithExecutionID("exec-fixed"), WithWorkflowID("wf-1"))
	require.NoError(t, err)

	names := map[string]int{}
	for _, span := range spans.Ended() {
		names[span.Name()]++
	}

	assert.Equal(t, 1, names["workflow.execute"])
	assert.Equal(t, 2, names["block.invoke"])
}

func TestExecute_WithRunOptions(t *testing.T) {
	res := newTestResolver(map[string]protocol.Capability{"work": ok(1)})

	result, err := New(testLogger()).Execute(context.Background(), wf([]*models.Block{b("a", "work")}, nil), nil, nil, res,
		WithExecutionID("exec-fixed"), WithWorkflowID("wf-1"))
	require.NoError(t, err)

	assert.Equal(t, "exec-fixed", result.ID)
	assert.Equal(t, "wf-1", result.WorkflowID)
	assert.Equal(t, 1, result.Output)
}

func TestLogOutcome_StalledIsReportedApart(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logOutcome(context.Background(), logger, models.RunStatusFailed, 5, &StalledExecutionError{BlockIDs: []string{"a", "b"}})
	assert.Contains(t, buf.String(), "Engine stalled with unresolved blocks")
	assert.Contains(t, buf.String(), "internal=true")
	assert.NotContains(t, buf.String(), "Workflow execution did not succeed")

	buf.Reset()
	logOutcome(context.Background(), logger, models.RunStatusFailed, 5, &invoker.BlockExecutionError{BlockID: "a", Cause: errors.New("boom")})
	assert.Contains(t, buf.String(), "Workflow execution did not succeed")
	assert.NotContains(t, buf.String(), "Engine stalled")
}
