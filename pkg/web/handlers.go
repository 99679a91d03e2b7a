// Package web provides HTTP handlers and REST API endpoints for the Archon
// workflow and feature execution engine.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/archonhq/archon/pkg/features"
	"github.com/archonhq/archon/pkg/models"
	"github.com/archonhq/archon/pkg/workflows"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// HealthChecker reports backend liveness for the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	workflowEngine *workflows.Engine
	featuresEngine *features.Engine
	repository     features.Repository
	persistence    HealthChecker
	validator      *validator.Validate
}

func NewAPIHandlers(
	workflowEngine *workflows.Engine,
	featuresEngine *features.Engine,
	repository features.Repository,
	persistence HealthChecker,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowEngine: workflowEngine,
		featuresEngine: featuresEngine,
		repository:     repository,
		persistence:    persistence,
		validator:      validator,
	}
}

func (h *APIHandlers) StartWorkflow(c fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req StartWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.workflowEngine.StartWorkflow(c.Context(), identity, req.DefinitionUUID, req.NodeUUID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	instance, err := h.workflowEngine.GetInstance(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) FindActiveInstances(c fiber.Ctx) error {
	instances, err := h.workflowEngine.FindActiveInstances(c.Context(), c.Query("definition_uuid"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"instances": instances,
		"count":     len(instances),
	})
}

func (h *APIHandlers) Transition(c fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	var req TransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.workflowEngine.Transition(c.Context(), identity, id, req.Signal)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) CancelWorkflow(c fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	instance, err := h.workflowEngine.CancelWorkflow(c.Context(), identity, id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) DeleteInstance(c fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	if err := h.workflowEngine.DeleteInstance(c.Context(), identity, id); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetAuditTrail(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	events, err := h.workflowEngine.AuditTrail(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"stream_id": id,
		"events":    events,
	})
}

func (h *APIHandlers) UpdateGovernedNode(c fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	id := c.Params("id")
	nodeID := c.Params("nodeId")

	if id == "" || nodeID == "" {
		return badRequest(c, "Instance ID and node ID are required")
	}

	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	patch := models.NodePatch{
		Title:      req.Title,
		Properties: req.Properties,
	}

	node, err := h.workflowEngine.UpdateNode(c.Context(), identity, id, nodeID, patch)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) ListFeatures(c fiber.Ctx) error {
	all, err := h.repository.All(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	summaries := make([]FeatureSummary, 0, len(all))
	for _, feature := range all {
		summaries = append(summaries, TransformFeatureSummary(feature))
	}

	return c.JSON(fiber.Map{"features": summaries})
}

func (h *APIHandlers) RunAction(c fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Feature ID is required")
	}

	var req RunActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.featuresEngine.RunAction(c.Context(), identity, id, req.NodeUUIDs, req.Params)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) RunAITool(c fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Feature ID is required")
	}

	var req RunAIToolRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	value, err := h.featuresEngine.RunAITool(c.Context(), identity, id, req.Params)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"value": value})
}

// RunExtension relays the raw request body to the feature and streams the
// response back with the feature's declared content type.
func (h *APIHandlers) RunExtension(c fiber.Ctx) error {
	identity, ok := callerIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Feature ID is required")
	}

	response, err := h.featuresEngine.RunExtension(c.Context(), identity, id, c.Body())
	if err != nil {
		return handleEngineError(c, err)
	}

	if response.Raw != nil {
		c.Set(fiber.HeaderContentType, response.ContentType)

		return c.Send(response.Raw)
	}

	c.Set(fiber.HeaderContentType, response.ContentType)

	return c.JSON(response.Value)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Archon API is healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Archon API is unhealthy: " + err.Error()
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
