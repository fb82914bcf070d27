package models

import "time"

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// SpanStatus reports whether the work behind a span succeeded.
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// SpanTypeIteration is the type of the synthetic span grouping one loop pass.
const SpanTypeIteration = "loop-iteration"

// TraceSpan is one timed unit of work. Loop iterations carry their member spans as children.
type TraceSpan struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	BlockID    string       `json:"blockId,omitempty"`
	LoopID     string       `json:"loopId,omitempty"`
	Iteration  int          `json:"iteration,omitempty"`
	StartTime  time.Time    `json:"startTime"`
	EndTime    time.Time    `json:"endTime"`
	DurationMs int64        `json:"duration"`
	Status     SpanStatus   `json:"status"`
	Error      string       `json:"error,omitempty"`
	Children   []*TraceSpan `json:"children,omitempty"`
}

// LogEntry records one block invocation.
type LogEntry struct {
	BlockID    string    `json:"blockId"`
	BlockName  string    `json:"blockName"`
	BlockType  string    `json:"blockType"`
	Success    bool      `json:"success"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	DurationMs int64     `json:"durationMs"`
	LoopID     string    `json:"loopId,omitempty"`
	Iteration  int       `json:"iteration,omitempty"`
}

// ExecutionMetadata carries run timing.
type ExecutionMetadata struct {
	Duration  int64     `json:"duration"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// ExecutionTrace is the span tree of a run.
type ExecutionTrace struct {
	Spans         []*TraceSpan `json:"spans"`
	TotalDuration int64        `json:"totalDuration"`
}

// ExecutionResult is what a run returns to its caller, successful or not.
type ExecutionResult struct {
	ID         string            `json:"id,omitempty"`
	WorkflowID string            `json:"workflowId,omitempty"`
	Success    bool              `json:"success"`
	Status     RunStatus         `json:"status"`
	Output     any               `json:"output"`
	Error      string            `json:"error,omitempty"`
	Logs       []*LogEntry       `json:"logs"`
	Metadata   ExecutionMetadata `json:"metadata"`
	Trace      ExecutionTrace    `json:"trace"`
}
