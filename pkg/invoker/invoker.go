// Package invoker prepares and performs single block invocations.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/protocol"
	"github.com/dukex/blockflow/pkg/template"
)

// DefaultTimeout bounds a single invocation.
const DefaultTimeout = 30 * time.Second

// CapabilityResolver maps block types to capabilities and calls them.
type CapabilityResolver interface {
	Resolve(blockType, operation string) (string, error)
	Call(ctx context.Context, capabilityID string, req protocol.CallRequest) (protocol.CallResult, error)
}

// Call is a prepared invocation. It holds copies only, so it can run on any goroutine.
type Call struct {
	Block        *models.Block
	CapabilityID string
	Request      protocol.CallRequest
}

// Invoker runs prepared calls against a resolver. It keeps no per-run state.
type Invoker struct {
	resolver CapabilityResolver
	logger   *slog.Logger
	timeout  time.Duration
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(i *Invoker) {
		if timeout > 0 {
			i.timeout = timeout
		}
	}
}

// New creates an invoker.
func New(resolver CapabilityResolver, logger *slog.Logger, opts ...Option) *Invoker {
	i := &Invoker{
		resolver: resolver,
		logger:   logger,
		timeout:  DefaultTimeout,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// ResolveAll maps every enabled block to its capability id.
func (i *Invoker) ResolveAll(v *graph.Validated) (map[string]string, error) {
	capabilities := make(map[string]string, len(v.BlockIDs))

	for _, id := range v.BlockIDs {
		block := v.Block(id)
		if !block.Enabled {
			continue
		}

		capabilityID, err := i.resolver.Resolve(block.Type, block.Operation())
		if err != nil {
			return nil, &UnknownCapabilityError{BlockID: id, BlockType: block.Type, Operation: block.Operation(), Err: err}
		}

		capabilities[id] = capabilityID
	}

	return capabilities, nil
}

// Prepare builds the call for block from the current context: secret
// fields substituted, expressions rendered, upstream outputs collected.
// It must run on the goroutine that owns ec.
func (i *Invoker) Prepare(
	ec *models.ExecutionContext,
	block *models.Block,
	def *models.BlockDefinition,
	capabilityID string,
	upstream []string,
	loopID string,
) (Call, error) {
	iteration := 0
	if loopID != "" {
		iteration = ec.IterationCounts[loopID]
	}

	outputs := ec.OutputsSnapshot()
	data := template.Data{
		Inputs: ec.RuntimeInputs,
		Blocks: outputs,
		Loop:   map[string]any{"id": loopID, "iteration": iteration},
	}.Map()

	config := make(map[string]any, len(block.Config))

	for key, value := range block.Config {
		if def != nil && def.IsSecret(key) {
			secret, err := substituteSecret(value, ec.Secrets)
			if err != nil {
				return Call{}, &BlockExecutionError{BlockID: block.ID, BlockName: block.Name, Cause: fmt.Errorf("%s: %w", key, err)}
			}

			config[key] = secret

			continue
		}

		rendered, err := template.RenderValue(value, data)
		if err != nil {
			return Call{}, &BlockExecutionError{BlockID: block.ID, BlockName: block.Name, Cause: fmt.Errorf("render %s: %w", key, err)}
		}

		config[key] = rendered
	}

	inputs := make(map[string]any, len(upstream))
	for _, id := range upstream {
		inputs[id] = outputs[id]
	}

	return Call{
		Block:        block,
		CapabilityID: capabilityID,
		Request: protocol.CallRequest{
			ExecutionID:   ec.ID,
			BlockID:       block.ID,
			BlockType:     block.Type,
			Operation:     block.Operation(),
			Config:        config,
			Secrets:       ec.Secrets,
			Inputs:        inputs,
			RuntimeInputs: ec.RuntimeInputs,
			LoopID:        loopID,
			Iteration:     iteration,
		},
	}, nil
}

// Invoke performs call with the invoker timeout. Whatever goes wrong comes
// back as a *BlockExecutionError; there are no retries.
func (i *Invoker) Invoke(ctx context.Context, call Call) (protocol.CallResult, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	type outcome struct {
		result protocol.CallResult
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("capability panicked: %v", r)}
			}
		}()

		result, err := i.resolver.Call(ctx, call.CapabilityID, call.Request)
		done <- outcome{result: result, err: err}
	}()

	fail := func(cause error) (protocol.CallResult, error) {
		i.logger.WarnContext(ctx, "Block invocation failed",
			"execution_id", call.Request.ExecutionID,
			"block_id", call.Block.ID,
			"capability", call.CapabilityID,
			"error", cause,
		)

		return protocol.CallResult{Success: false, Error: cause.Error()},
			&BlockExecutionError{BlockID: call.Block.ID, BlockName: call.Block.Name, Cause: cause}
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fail(fmt.Errorf("%w after %s", ErrTimeout, i.timeout))
		}

		return fail(ctx.Err())
	case out := <-done:
		if out.err != nil {
			return fail(out.err)
		}

		if !out.result.Success {
			msg := out.result.Error
			if msg == "" {
				msg = "capability reported failure"
			}

			return fail(errors.New(msg))
		}

		return out.result, nil
	}
}

// substituteSecret resolves a secret field. "NAME" and "{{NAME}}" name a
// secret; the braced form must resolve, a bare value that names no secret
// is taken literally.
func substituteSecret(value any, secrets map[string]string) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}

	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(trimmed, "{{"), "}}"))
		name = strings.TrimPrefix(name, ".secrets.")

		secret, found := secrets[name]
		if !found {
			return nil, fmt.Errorf("secret %q is not defined", name)
		}

		return secret, nil
	}

	if secret, found := secrets[trimmed]; found {
		return secret, nil
	}

	return s, nil
}
