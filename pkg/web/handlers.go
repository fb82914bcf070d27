// Package web provides HTTP handlers and REST API endpoints for workflows and their runs.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/registry"
	"github.com/dukex/blockflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// APIKeyHeader carries the workflow key on execution requests.
const APIKeyHeader = "X-API-Key"

type APIHandlers struct {
	workflowService    *services.Workflow
	executionService   *services.Execution
	environmentService *services.Environment
	validator          *validator.Validate
	registry           *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executionService *services.Execution,
	environmentService *services.Environment,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService:    workflowService,
		executionService:   executionService,
		environmentService: environmentService,
		validator:          validator,
		registry:           registry,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	response := make([]WorkflowResponse, 0, len(workflows))
	for _, workflow := range workflows {
		response = append(response, TransformWorkflowResponse(workflow))
	}

	return c.JSON(response)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformWorkflowResponse(workflow))
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		APIKey:      req.APIKey,
		Schedule:    req.Schedule,
		Graph:       req.Graph,
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformWorkflowResponse(created))
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.APIKey != nil {
		existing.APIKey = *req.APIKey
	}

	if req.Schedule != nil {
		existing.Schedule = *req.Schedule
	}

	if req.Graph != nil {
		existing.Graph = req.Graph
	}

	updated, err := h.workflowService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformWorkflowResponse(updated))
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecuteWorkflow runs a workflow. POST reads inputs from the body, GET
// from the query string. A run that did not succeed answers 500 with the
// full result so its logs stay visible.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	inputs := map[string]any{}

	if c.Method() == fiber.MethodPost && len(c.Body()) > 0 {
		var req ExecuteWorkflowRequest
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if req.Inputs != nil {
			inputs = req.Inputs
		}
	} else {
		for key, value := range c.Queries() {
			inputs[key] = value
		}
	}

	result, err := h.executionService.Execute(c.Context(), services.ExecuteRequest{
		WorkflowID: id,
		APIKey:     c.Get(APIKeyHeader),
		Inputs:     inputs,
		Trigger:    services.TriggerAPI,
	})
	if result == nil && err != nil {
		return handleServiceError(c, err)
	}

	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(result)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	records, err := h.executionService.ListExecutions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(records)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	record, err := h.executionService.FetchExecution(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) SaveEnvironment(c fiber.Ctx) error {
	var req SaveEnvironmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	userID := c.Params("userId")

	if _, err := h.environmentService.Save(c.Context(), userID, req.Variables); err != nil {
		return handleServiceError(c, err)
	}

	return h.GetEnvironment(c)
}

func (h *APIHandlers) GetEnvironment(c fiber.Ctx) error {
	userID := c.Params("userId")

	names, err := h.environmentService.Names(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(EnvironmentResponse{UserID: userID, Names: names})
}

func (h *APIHandlers) GetBlocks(c fiber.Ctx) error {
	return c.JSON(h.registry.Definitions())
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())
	blocks := len(h.registry.Definitions())

	status := "unhealthy"
	message := "Blockflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk && blocks > 0 {
		status = "healthy"
		message = "Blockflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   fiber.Map{"blocks": blocks},
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
