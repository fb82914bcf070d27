package models

import "time"

// Workflow is a stored workflow: its graph plus ownership and trigger settings.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"                  validate:"required,min=3"`
	Description string         `json:"description"`
	Owner       string         `json:"owner"`
	APIKey      string         `json:"api_key,omitempty"`
	Schedule    string         `json:"schedule,omitempty"`
	Graph       *WorkflowGraph `json:"graph"                 validate:"required"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Environment holds a user's variables, usually encrypted, used to resolve block secrets.
type Environment struct {
	UserID    string            `json:"user_id"   validate:"required"`
	Variables map[string]string `json:"variables"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ExecutionRecord is a persisted run.
type ExecutionRecord struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id"`
	Trigger    string           `json:"trigger"`
	Result     *ExecutionResult `json:"result"`
	CreatedAt  time.Time        `json:"created_at"`
}
