package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/invoker"
	"github.com/dukex/blockflow/pkg/loop"
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/otelhelper"
	"github.com/dukex/blockflow/pkg/protocol"
	"github.com/dukex/blockflow/pkg/recorder"
	"github.com/dukex/blockflow/pkg/resolver"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// completion is a finished invocation on its way back to the scheduler goroutine.
type completion struct {
	call      invoker.Call
	loopID    string
	iteration int
	result    protocol.CallResult
	err       error
	startedAt time.Time
	endedAt   time.Time
}

// run is the state of one execution. Only the goroutine in execute touches
// it; invocation goroutines talk back through results.
type run struct {
	engine       *Engine
	logger       *slog.Logger
	graph        *graph.Validated
	ec           *models.ExecutionContext
	resolver     *resolver.Resolver
	loops        *loop.Controller
	invoker      *invoker.Invoker
	recorder     *recorder.Recorder
	capabilities map[string]string

	group    errgroup.Group
	results  chan completion
	inflight int

	failure      error
	cancellation error
}

func newRun(
	e *Engine,
	logger *slog.Logger,
	v *graph.Validated,
	ec *models.ExecutionContext,
	inv *invoker.Invoker,
	capabilities map[string]string,
	rec *recorder.Recorder,
) *run {
	r := &run{
		engine:       e,
		logger:       logger,
		graph:        v,
		ec:           ec,
		resolver:     resolver.New(v),
		loops:        loop.NewController(v),
		invoker:      inv,
		recorder:     rec,
		capabilities: capabilities,
		// every block is in flight at most once, so sends never block
		results: make(chan completion, len(v.BlockIDs)),
	}

	if e.maxConcurrency > 0 {
		r.group.SetLimit(e.maxConcurrency)
	}

	return r
}

func (r *run) halted() bool {
	return r.failure != nil || r.cancellation != nil
}

func (r *run) fail(err error) {
	if !r.halted() {
		r.failure = err
	}
}

func (r *run) cancel(cause error) {
	if !r.halted() {
		r.cancellation = cancelled(cause)
		r.logger.Warn("Workflow execution cancelled, draining in-flight blocks", "in_flight", r.inflight)
	}
}

// execute is the scheduler loop: apply every transition available, wait for
// one invocation to finish, repeat. Once halted nothing new starts and the
// loop only drains what is in flight.
func (r *run) execute(ctx context.Context) {
	done := ctx.Done()

	for {
		if !r.halted() && ctx.Err() != nil {
			r.cancel(ctx.Err())
		}

		if !r.halted() {
			if err := r.schedule(ctx); err != nil {
				r.fail(err)
			}
		}

		if r.inflight == 0 {
			break
		}

		select {
		case c := <-r.results:
			r.inflight--
			r.apply(c)
		case <-done:
			done = nil

			r.cancel(ctx.Err())
		}
	}

	_ = r.group.Wait()
}

// schedule applies transitions until none is left: closing finished loop
// passes, entering or skipping loops, pruning blocks and launching ready ones.
func (r *run) schedule(ctx context.Context) error {
	for {
		progressed := false

		for _, loopID := range r.loops.Running(r.ec) {
			if !r.loops.PassComplete(r.ec, loopID) {
				continue
			}

			r.recorder.EndIteration(loopID)

			completed, err := r.loops.Advance(r.ec, loopID)
			if err != nil {
				return err
			}

			if completed {
				r.logger.DebugContext(ctx, "Loop completed", "loop_id", loopID, "iterations", r.ec.IterationCounts[loopID])
			} else {
				r.recorder.BeginIteration(loopID, r.ec.IterationCounts[loopID], time.Now())
			}

			progressed = true
		}

		ready := r.resolver.Ready(r.ec)

		for _, loopID := range ready.SkipLoops {
			r.loops.Skip(r.ec, loopID)
			r.logger.DebugContext(ctx, "Loop skipped", "loop_id", loopID)
		}

		for _, loopID := range ready.EnterLoops {
			r.loops.Enter(r.ec, loopID)
			r.recorder.BeginIteration(loopID, 1, time.Now())
			r.logger.DebugContext(ctx, "Loop started", "loop_id", loopID)
		}

		for _, id := range ready.Skip {
			r.ec.Skip(id)
			r.logger.DebugContext(ctx, "Block skipped", "block_id", id)
		}

		for _, id := range ready.Blocks {
			if err := r.launch(ctx, id); err != nil {
				return err
			}
		}

		if progressed || !ready.Empty() {
			continue
		}

		return nil
	}
}

// launch prepares a block on the scheduler goroutine and invokes it on its own.
func (r *run) launch(ctx context.Context, id string) error {
	block := r.graph.Block(id)
	loopID := r.graph.LoopOf[id]

	call, err := r.invoker.Prepare(r.ec, block, r.graph.Definition(id), r.capabilities[id], r.upstream(id), loopID)
	if err != nil {
		now := time.Now()
		r.ec.BlockStates[id] = models.BlockStateFailed
		r.recorder.Record(recorder.Invocation{
			Block: block, LoopID: loopID, Iteration: r.ec.IterationCounts[loopID],
			StartedAt: now, EndedAt: now, Err: err,
		})

		return err
	}

	r.ec.BlockStates[id] = models.BlockStateRunning
	r.inflight++

	// in-flight blocks finish even when the run is cancelled
	invokeCtx := context.WithoutCancel(ctx)
	tracer := r.engine.tracer

	r.group.Go(func() error {
		spanCtx, span := otelhelper.StartSpan(invokeCtx, tracer, "block.invoke",
			attribute.String(otelhelper.ExecutionIDKey, call.Request.ExecutionID),
			attribute.String(otelhelper.BlockIDKey, block.ID),
			attribute.String(otelhelper.BlockTypeKey, block.Type),
			attribute.String(otelhelper.CapabilityIDKey, call.CapabilityID),
			attribute.String(otelhelper.LoopIDKey, loopID),
			attribute.Int(otelhelper.LoopIterationKey, call.Request.Iteration),
		)
		defer span.End()

		startedAt := time.Now()
		result, err := r.invoker.Invoke(spanCtx, call)
		endedAt := time.Now()

		if err != nil {
			otelhelper.SetError(span, err)
		}

		r.results <- completion{
			call:      call,
			loopID:    loopID,
			iteration: call.Request.Iteration,
			result:    result,
			err:       err,
			startedAt: startedAt,
			endedAt:   endedAt,
		}

		return nil
	})

	return nil
}

// apply folds a finished invocation into the context and the recorder.
func (r *run) apply(c completion) {
	id := c.call.Block.ID

	r.recorder.Record(recorder.Invocation{
		Block:     c.call.Block,
		LoopID:    c.loopID,
		Iteration: c.iteration,
		StartedAt: c.startedAt,
		EndedAt:   c.endedAt,
		Output:    c.result.Output,
		Err:       c.err,
	})

	if c.err != nil {
		r.ec.BlockStates[id] = models.BlockStateFailed
		r.fail(c.err)

		return
	}

	r.ec.Complete(id, c.result.Output, c.result.Handle)
	r.logger.Debug("Block completed", "block_id", id, "duration_ms", c.endedAt.Sub(c.startedAt).Milliseconds())
}

// upstream lists the blocks whose outputs feed id: sources of active
// inbound edges, plus loop back edges that carry a previous iteration.
func (r *run) upstream(id string) []string {
	var sources []string

	seen := make(map[string]bool)
	add := func(source string) {
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}

	for _, edge := range r.graph.Inbound[id] {
		if r.resolver.EdgeState(r.ec, edge) == resolver.EdgeActive {
			add(edge.Source)

			continue
		}

		if loopID, ok := r.graph.LoopOf[id]; ok && r.graph.IsInternal(edge) && r.ec.IterationCounts[loopID] > 1 {
			if _, produced := r.ec.BlockOutputs[edge.Source]; produced {
				add(edge.Source)
			}
		}
	}

	return sources
}
