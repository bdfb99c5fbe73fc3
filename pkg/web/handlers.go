// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stageflow/stageflow/pkg/engine"
	"github.com/stageflow/stageflow/pkg/registry"
	"github.com/stageflow/stageflow/pkg/services"
)

type APIHandlers struct {
	workflowService *services.Workflow
	templateService *services.Template
	validator       *validator.Validate
	registry        *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	templateService *services.Template,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		templateService: templateService,
		validator:       validator,
		registry:        registry,
	}
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	req := services.ListTemplatesRequest{
		Category: c.Query("category"),
		Name:     c.Query("name"),
	}

	summaries, err := h.templateService.ListTemplates(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"templates":   summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Template ID is required")
	}

	template, err := h.templateService.GetTemplate(c.Context(), id)
	if err != nil {
		if registry.IsTemplateNotFound(err) {
			return notFound(c, "Template not found")
		}

		return handleServiceError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) GetTemplateWarnings(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Template ID is required")
	}

	warnings, err := h.templateService.GetTemplateWarnings(c.Context(), id)
	if err != nil {
		if registry.IsTemplateNotFound(err) {
			return notFound(c, "Template not found")
		}

		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"template_id": id,
		"warnings":    warnings,
	})
}

func (h *APIHandlers) ApplyTemplate(c fiber.Ctx) error {
	uid := c.Params("uid")
	if uid == "" {
		return badRequest(c, "Content UID is required")
	}

	principal := principalFrom(c)
	if principal == nil {
		return unauthorized(c, "no authenticated principal")
	}

	var req ApplyTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.workflowService.Apply(c.Context(), engine.ApplyRequest{
		TemplateID:      req.TemplateID,
		ContentUID:      uid,
		ActorID:         principal.UserID,
		RoleAssignments: req.Assignments(),
		Force:           req.Force,
		BackupExisting:  req.BackupExisting,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(applyResponse(result))
}

func (h *APIHandlers) ExecuteTransition(c fiber.Ctx) error {
	uid := c.Params("uid")
	if uid == "" {
		return badRequest(c, "Content UID is required")
	}

	principal := principalFrom(c)
	if principal == nil {
		return unauthorized(c, "no authenticated principal")
	}

	var req ExecuteTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.workflowService.Transition(c.Context(), engine.TransitionRequest{
		ContentUID:   uid,
		TransitionID: req.TransitionID,
		ActorID:      principal.UserID,
		ActingRole:   principal.Role,
		Comments:     req.Comments,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(transitionResponse(result))
}

func (h *APIHandlers) GetWorkflowState(c fiber.Ctx) error {
	uid := c.Params("uid")
	if uid == "" {
		return badRequest(c, "Content UID is required")
	}

	principal := principalFrom(c)
	if principal == nil {
		return unauthorized(c, "no authenticated principal")
	}

	view, err := h.workflowService.State(c.Context(), uid, principal.Role)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) RemoveTemplate(c fiber.Ctx) error {
	uid := c.Params("uid")
	if uid == "" {
		return badRequest(c, "Content UID is required")
	}

	principal := principalFrom(c)
	if principal == nil {
		return unauthorized(c, "no authenticated principal")
	}

	restore := false

	if restoreStr := c.Query("restore_backup"); restoreStr != "" {
		parsed, err := strconv.ParseBool(restoreStr)
		if err != nil {
			return badRequest(c, "Invalid restore_backup value: "+restoreStr)
		}

		restore = parsed
	}

	result, err := h.workflowService.Remove(c.Context(), engine.RemoveRequest{
		ContentUID:    uid,
		ActorID:       principal.UserID,
		RestoreBackup: restore,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	if result.Restored {
		return c.JSON(removeResponse(result))
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetInstances(c fiber.Ctx) error {
	req, err := h.parseListInstancesRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListInstances(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"instances":     result.Instances,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListInstancesRequest parses and validates query parameters for listing
// workflow instances.
func (h *APIHandlers) parseListInstancesRequest(c fiber.Ctx) (*services.ListInstancesRequest, error) {
	req := &services.ListInstancesRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.TemplateID = c.Query("template_id")
	req.CurrentState = c.Query("current_state")

	if beforeStr := c.Query("updated_before"); beforeStr != "" {
		before, err := time.Parse(time.RFC3339, beforeStr)
		if err != nil {
			return nil, err
		}

		req.UpdatedBefore = &before
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetAuditTrail(c fiber.Ctx) error {
	entries, err := h.workflowService.AuditTrail(c.Context(), services.AuditTrailRequest{
		ContentUID: c.Query("content_uid"),
		UserID:     c.Query("user_id"),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"entries":     entries,
		"total_count": len(entries),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Stageflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Stageflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
