package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/services"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	executionService *services.Execution
	validator        *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executionService *services.Execution,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		validator:        validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flowbot API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Flowbot API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	chatbotID := c.Params("chatbotId")
	if chatbotID == "" {
		return badRequest(c, "Chatbot ID is required")
	}

	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		ChatbotID:   chatbotID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		CreatedBy:   req.CreatedBy,
		Nodes:       req.Nodes,
		Connections: req.Connections,
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	chatbotID := c.Params("chatbotId")
	if chatbotID == "" {
		return badRequest(c, "Chatbot ID is required")
	}

	workflows, err := h.workflowService.List(c.Context(), chatbotID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	chatbotID, id := c.Params("chatbotId"), c.Params("id")
	if chatbotID == "" || id == "" {
		return badRequest(c, "Chatbot ID and workflow ID are required")
	}

	workflow, err := h.workflowService.Get(c.Context(), chatbotID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	chatbotID, id := c.Params("chatbotId"), c.Params("id")
	if chatbotID == "" || id == "" {
		return badRequest(c, "Chatbot ID and workflow ID are required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), chatbotID, id, services.UpdateWorkflowRequest{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		Nodes:       req.Nodes,
		Connections: req.Connections,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	chatbotID, id := c.Params("chatbotId"), c.Params("id")
	if chatbotID == "" || id == "" {
		return badRequest(c, "Chatbot ID and workflow ID are required")
	}

	if err := h.workflowService.Delete(c.Context(), chatbotID, id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	chatbotID, id := c.Params("chatbotId"), c.Params("id")
	if chatbotID == "" || id == "" {
		return badRequest(c, "Chatbot ID and workflow ID are required")
	}

	var req StartExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.executionService.Start(c.Context(), services.StartExecutionRequest{
		ChatbotID:      chatbotID,
		WorkflowID:     id,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		InitialData:    req.InitialData,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	chatbotID, id := c.Params("chatbotId"), c.Params("id")
	if chatbotID == "" || id == "" {
		return badRequest(c, "Chatbot ID and workflow ID are required")
	}

	executions, err := h.executionService.List(c.Context(), chatbotID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.executionService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) SubmitInput(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req SubmitInputRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.executionService.ProcessUserInput(c.Context(), id, req.Input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetAnalytics(c fiber.Ctx) error {
	chatbotID, id := c.Params("chatbotId"), c.Params("id")
	if chatbotID == "" || id == "" {
		return badRequest(c, "Chatbot ID and workflow ID are required")
	}

	start, err := parseTimeQuery(c.Query("start"))
	if err != nil {
		return badRequest(c, "Invalid 'start' parameter, expected RFC 3339")
	}

	end, err := parseTimeQuery(c.Query("end"))
	if err != nil {
		return badRequest(c, "Invalid 'end' parameter, expected RFC 3339")
	}

	stats, err := h.executionService.Analytics(c.Context(), chatbotID, id, start, end)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

func parseTimeQuery(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}

	return &parsed, nil
}
