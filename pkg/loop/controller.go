// Package loop drives loop scopes through their iterations.
package loop

import (
	"fmt"

	"github.com/dukex/blockflow/pkg/graph"
	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/template"
)

// LoopConditionError reports an exit condition that could not be evaluated.
type LoopConditionError struct {
	LoopID    string
	Iteration int
	Err       error
}

func (e *LoopConditionError) Error() string {
	return fmt.Sprintf("loop %s: exit condition failed on iteration %d: %v", e.LoopID, e.Iteration, e.Err)
}

func (e *LoopConditionError) Unwrap() error {
	return e.Err
}

// Controller owns the loop state machine: Idle -> Running -> Completed, or
// Idle -> Skipped when no active path reaches the loop. All state lives in
// the ExecutionContext it is given.
type Controller struct {
	graph *graph.Validated
}

// NewController creates a controller for the loops of v.
func NewController(v *graph.Validated) *Controller {
	return &Controller{graph: v}
}

// Enter starts the first iteration of a loop.
func (c *Controller) Enter(ec *models.ExecutionContext, loopID string) {
	ec.LoopStates[loopID] = models.LoopStateRunning
	ec.IterationCounts[loopID] = 1
	c.resetMembers(ec, loopID)
}

// Skip prunes a loop and all its members.
func (c *Controller) Skip(ec *models.ExecutionContext, loopID string) {
	ec.LoopStates[loopID] = models.LoopStateSkipped

	for _, member := range c.graph.Loops[loopID].Members {
		ec.Skip(member)
	}
}

// Running returns the ids of running loops in sorted order.
func (c *Controller) Running(ec *models.ExecutionContext) []string {
	var running []string

	for _, loopID := range c.graph.LoopIDs {
		if ec.Loop(loopID) == models.LoopStateRunning {
			running = append(running, loopID)
		}
	}

	return running
}

// PassComplete reports whether every member finished or was skipped in the current iteration.
func (c *Controller) PassComplete(ec *models.ExecutionContext, loopID string) bool {
	if ec.Loop(loopID) != models.LoopStateRunning {
		return false
	}

	for _, member := range c.graph.Loops[loopID].Members {
		switch ec.State(member) {
		case models.BlockStateCompleted, models.BlockStateSkipped:
		default:
			return false
		}
	}

	return true
}

// Advance closes the current iteration. The loop completes when its exit
// condition holds or the iteration cap is reached; otherwise the next
// iteration starts with members pending again. Outputs of the last pass
// stay in the context.
func (c *Controller) Advance(ec *models.ExecutionContext, loopID string) (bool, error) {
	scope := c.graph.Loops[loopID].Scope
	iteration := ec.IterationCounts[loopID]

	exit, err := c.exitConditionMet(ec, scope, iteration)
	if err != nil {
		return false, &LoopConditionError{LoopID: loopID, Iteration: iteration, Err: err}
	}

	if exit || iteration >= scope.MaxIterations {
		ec.LoopStates[loopID] = models.LoopStateCompleted

		return true, nil
	}

	ec.IterationCounts[loopID] = iteration + 1
	c.resetMembers(ec, loopID)

	return false, nil
}

func (c *Controller) exitConditionMet(ec *models.ExecutionContext, scope *models.LoopScope, iteration int) (bool, error) {
	if scope.Condition == "" {
		return false, nil
	}

	data := template.Data{
		Inputs: ec.RuntimeInputs,
		Blocks: ec.BlockOutputs,
		Loop: map[string]any{
			"id":            scope.ID,
			"iteration":     iteration,
			"maxIterations": scope.MaxIterations,
		},
	}

	value, err := template.Render(scope.Condition, data.Map())
	if err != nil {
		return false, err
	}

	return template.Truthy(value), nil
}

func (c *Controller) resetMembers(ec *models.ExecutionContext, loopID string) {
	for _, member := range c.graph.Loops[loopID].Members {
		if !c.graph.Block(member).Enabled {
			ec.Skip(member)

			continue
		}

		ec.BlockStates[member] = models.BlockStatePending
		delete(ec.ActiveHandles, member)
	}
}
