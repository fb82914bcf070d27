// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/dukex/blockflow/pkg/models"

// ErrorResponse is the body of access and execution failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string                `json:"name"        validate:"required,min=3"`
	Description string                `json:"description"`
	Owner       string                `json:"owner"       validate:"required"`
	APIKey      string                `json:"api_key"`
	Schedule    string                `json:"schedule"`
	Graph       *models.WorkflowGraph `json:"graph"       validate:"required"`
}

// UpdateWorkflowRequest represents the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string               `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string               `json:"description,omitempty"`
	APIKey      *string               `json:"api_key,omitempty"`
	Schedule    *string               `json:"schedule,omitempty"`
	Graph       *models.WorkflowGraph `json:"graph,omitempty"`
}

// ExecuteWorkflowRequest is the optional POST body of an execution.
type ExecuteWorkflowRequest struct {
	Inputs map[string]any `json:"inputs"`
}

// SaveEnvironmentRequest sets variables of a user's environment.
type SaveEnvironmentRequest struct {
	Variables map[string]string `json:"variables" validate:"required,min=1"`
}

// EnvironmentResponse lists variable names; values never leave the server.
type EnvironmentResponse struct {
	UserID string   `json:"user_id"`
	Names  []string `json:"names"`
}

// WorkflowResponse hides the workflow API key.
type WorkflowResponse struct {
	*models.Workflow

	APIKey    string `json:"api_key,omitempty"`
	HasAPIKey bool   `json:"has_api_key"`
}

// TransformWorkflowResponse strips secrets from a workflow before it is returned.
func TransformWorkflowResponse(workflow *models.Workflow) WorkflowResponse {
	return WorkflowResponse{
		Workflow:  workflow,
		HasAPIKey: workflow.APIKey != "",
	}
}
