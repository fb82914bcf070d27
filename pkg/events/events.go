// Package events defines the execution lifecycle events published after a run.
package events

import (
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every execution event.
const Topic = "blockflow.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	BlockExecutedEvent      EventType = "block.executed"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkflowID  string    `json:"workflow_id"`
	ExecutionID string    `json:"execution_id"`
}

// NewBaseEvent stamps a new event of the given type.
func NewBaseEvent(eventType EventType, workflowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	Trigger string         `json:"trigger"`
	Inputs  map[string]any `json:"inputs,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Output     any   `json:"output,omitempty"`
	DurationMs int64 `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Status     models.RunStatus `json:"status"`
	Error      string           `json:"error"`
	DurationMs int64            `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// BlockExecuted mirrors one log entry of a run.
type BlockExecuted struct {
	BaseEvent

	BlockID    string `json:"block_id"`
	BlockType  string `json:"block_type"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	LoopID     string `json:"loop_id,omitempty"`
	Iteration  int    `json:"iteration,omitempty"`
}

func (e BlockExecuted) GetType() EventType {
	return BlockExecutedEvent
}

// Started builds the event announcing a run.
func Started(workflowID, executionID, trigger string, inputs map[string]any) ExecutionStarted {
	return ExecutionStarted{
		BaseEvent: NewBaseEvent(ExecutionStartedEvent, workflowID, executionID),
		Trigger:   trigger,
		Inputs:    inputs,
	}
}

// FromResult turns a finished run into one BlockExecuted per log entry
// followed by ExecutionCompleted or ExecutionFailed.
func FromResult(result *models.ExecutionResult) []Event {
	out := make([]Event, 0, len(result.Logs)+1)

	for _, entry := range result.Logs {
		out = append(out, BlockExecuted{
			BaseEvent:  NewBaseEvent(BlockExecutedEvent, result.WorkflowID, result.ID),
			BlockID:    entry.BlockID,
			BlockType:  entry.BlockType,
			Success:    entry.Success,
			Error:      entry.Error,
			DurationMs: entry.DurationMs,
			LoopID:     entry.LoopID,
			Iteration:  entry.Iteration,
		})
	}

	if result.Success {
		return append(out, ExecutionCompleted{
			BaseEvent:  NewBaseEvent(ExecutionCompletedEvent, result.WorkflowID, result.ID),
			Output:     result.Output,
			DurationMs: result.Metadata.Duration,
		})
	}

	return append(out, ExecutionFailed{
		BaseEvent:  NewBaseEvent(ExecutionFailedEvent, result.WorkflowID, result.ID),
		Status:     result.Status,
		Error:      result.Error,
		DurationMs: result.Metadata.Duration,
	})
}

// Event is anything that can be published on the bus.
type Event interface {
	GetType() EventType
}
