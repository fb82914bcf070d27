// Package recorder accumulates the log entries and trace spans of one run.
package recorder

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/google/uuid"
)

// DefaultPreviewLimit is the number of characters of output kept in a log entry.
const DefaultPreviewLimit = 200

const redacted = "****"

// Invocation is one finished block invocation as the scheduler saw it.
type Invocation struct {
	Block     *models.Block
	LoopID    string
	Iteration int
	StartedAt time.Time
	EndedAt   time.Time
	Output    any
	Err       error
}

// Recorder is not safe for concurrent use; the scheduler goroutine owns it.
type Recorder struct {
	previewLimit int
	secrets      []string

	logs       []*models.LogEntry
	spans      []*models.TraceSpan
	iterations map[string]*models.TraceSpan
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPreviewLimit overrides DefaultPreviewLimit.
func WithPreviewLimit(limit int) Option {
	return func(r *Recorder) {
		if limit > 0 {
			r.previewLimit = limit
		}
	}
}

// WithSecrets lists values masked in output previews.
func WithSecrets(secrets map[string]string) Option {
	return func(r *Recorder) {
		for _, value := range secrets {
			if value != "" {
				r.secrets = append(r.secrets, value)
			}
		}

		// longest first so a secret containing another is masked whole
		sort.Slice(r.secrets, func(i, j int) bool { return len(r.secrets[i]) > len(r.secrets[j]) })
	}
}

// New creates an empty recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		previewLimit: DefaultPreviewLimit,
		iterations:   make(map[string]*models.TraceSpan),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// BeginIteration opens the synthetic span grouping one pass of a loop.
func (r *Recorder) BeginIteration(loopID string, iteration int, at time.Time) {
	span := &models.TraceSpan{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("%s (iteration %d)", loopID, iteration),
		Type:      models.SpanTypeIteration,
		LoopID:    loopID,
		Iteration: iteration,
		StartTime: at,
		EndTime:   at,
		Status:    models.SpanStatusOK,
	}

	r.iterations[loopID] = span
	r.spans = append(r.spans, span)
}

// EndIteration closes the open span of a loop, fitting it to its children.
func (r *Recorder) EndIteration(loopID string) {
	span, ok := r.iterations[loopID]
	if !ok {
		return
	}

	delete(r.iterations, loopID)

	for i, child := range span.Children {
		if i == 0 || child.StartTime.Before(span.StartTime) {
			span.StartTime = child.StartTime
		}

		if child.EndTime.After(span.EndTime) {
			span.EndTime = child.EndTime
		}

		if child.Status == models.SpanStatusError {
			span.Status = models.SpanStatusError
			span.Error = child.Error
		}
	}

	span.DurationMs = span.EndTime.Sub(span.StartTime).Milliseconds()
}

// Record adds the log entry and span of an invocation. Spans of loop
// members nest under the open iteration span of their loop.
func (r *Recorder) Record(inv Invocation) {
	entry := &models.LogEntry{
		BlockID:    inv.Block.ID,
		BlockName:  inv.Block.DisplayName(),
		BlockType:  inv.Block.Type,
		Success:    inv.Err == nil,
		StartedAt:  inv.StartedAt,
		EndedAt:    inv.EndedAt,
		DurationMs: inv.EndedAt.Sub(inv.StartedAt).Milliseconds(),
		LoopID:     inv.LoopID,
		Iteration:  inv.Iteration,
	}

	span := &models.TraceSpan{
		ID:         uuid.NewString(),
		Name:       inv.Block.DisplayName(),
		Type:       inv.Block.Type,
		BlockID:    inv.Block.ID,
		LoopID:     inv.LoopID,
		Iteration:  inv.Iteration,
		StartTime:  inv.StartedAt,
		EndTime:    inv.EndedAt,
		DurationMs: entry.DurationMs,
		Status:     models.SpanStatusOK,
	}

	if inv.Err != nil {
		entry.Error = r.redact(inv.Err.Error())
		span.Status = models.SpanStatusError
		span.Error = entry.Error
	} else {
		entry.Output = r.Preview(inv.Output)
	}

	r.logs = append(r.logs, entry)

	if parent, ok := r.iterations[inv.LoopID]; ok && inv.LoopID != "" {
		parent.Children = append(parent.Children, span)

		return
	}

	r.spans = append(r.spans, span)
}

// Preview renders output as truncated JSON with secrets masked.
func (r *Recorder) Preview(output any) string {
	if output == nil {
		return ""
	}

	var text string

	if s, ok := output.(string); ok {
		text = s
	} else {
		b, err := json.Marshal(output)
		if err != nil {
			text = fmt.Sprintf("%v", output)
		} else {
			text = string(b)
		}
	}

	text = r.redact(text)

	if utf8.RuneCountInString(text) <= r.previewLimit {
		return text
	}

	runes := []rune(text)

	return string(runes[:r.previewLimit]) + "..."
}

func (r *Recorder) redact(text string) string {
	for _, secret := range r.secrets {
		text = strings.ReplaceAll(text, secret, redacted)
	}

	return text
}

// Logs returns the log entries in completion order.
func (r *Recorder) Logs() []*models.LogEntry {
	return r.logs
}

// Trace returns the top-level spans ordered by start time and the run's total duration.
func (r *Recorder) Trace() models.ExecutionTrace {
	for loopID := range r.iterations {
		r.EndIteration(loopID)
	}

	spans, total := BuildTraceSpans(r.spans)

	return models.ExecutionTrace{Spans: spans, TotalDuration: total}
}

// BuildTraceSpans orders spans by start time and measures the wall clock
// from the first invocation start to the last invocation end. Iteration
// spans without children do not count.
func BuildTraceSpans(spans []*models.TraceSpan) ([]*models.TraceSpan, int64) {
	ordered := make([]*models.TraceSpan, 0, len(spans))

	var first, last time.Time

	var walk func(span *models.TraceSpan)

	walk = func(span *models.TraceSpan) {
		if span.Type == models.SpanTypeIteration {
			for _, child := range span.Children {
				walk(child)
			}

			return
		}

		if first.IsZero() || span.StartTime.Before(first) {
			first = span.StartTime
		}

		if span.EndTime.After(last) {
			last = span.EndTime
		}
	}

	for _, span := range spans {
		if span.Type == models.SpanTypeIteration && len(span.Children) == 0 {
			continue
		}

		ordered = append(ordered, span)
		walk(span)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartTime.Before(ordered[j].StartTime)
	})

	if first.IsZero() {
		return ordered, 0
	}

	return ordered, last.Sub(first).Milliseconds()
}

// BuildTraceSpansFromLogs rebuilds a flat span list from persisted log entries.
func BuildTraceSpansFromLogs(logs []*models.LogEntry) ([]*models.TraceSpan, int64) {
	spans := make([]*models.TraceSpan, 0, len(logs))

	for i, entry := range logs {
		status := models.SpanStatusOK
		if !entry.Success {
			status = models.SpanStatusError
		}

		spans = append(spans, &models.TraceSpan{
			ID:         fmt.Sprintf("span-%s-%d", entry.BlockID, i),
			Name:       entry.BlockName,
			Type:       entry.BlockType,
			BlockID:    entry.BlockID,
			LoopID:     entry.LoopID,
			Iteration:  entry.Iteration,
			StartTime:  entry.StartedAt,
			EndTime:    entry.EndedAt,
			DurationMs: entry.DurationMs,
			Status:     status,
			Error:      entry.Error,
		})
	}

	return BuildTraceSpans(spans)
}
