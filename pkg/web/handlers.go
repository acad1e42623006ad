package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/tripwire/pkg/geofence"
	"github.com/dukex/tripwire/pkg/metrics"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultExecutionsLimit = 20

type APIHandlers struct {
	repository *workflow.Repository
	manager    *workflow.Manager
	geofences  *geofence.Adapter
	metrics    *metrics.Registry
	validator  *validator.Validate
}

// NewAPIHandlers wires the handlers. geofences and metrics may be nil; the
// matching routes then answer 503.
func NewAPIHandlers(
	repository *workflow.Repository,
	manager *workflow.Manager,
	geofences *geofence.Adapter,
	metrics *metrics.Registry,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		repository: repository,
		manager:    manager,
		geofences:  geofences,
		metrics:    metrics,
		validator:  validator,
	}
}

// Register mounts every route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/metrics", h.Metrics)

	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.SaveWorkflow)
	w.Post("/:id/trigger", h.TriggerWorkflow)
	w.Get("/:id/executions", h.GetExecutions)

	router.Post("/triggers/check", h.CheckTriggers)

	g := router.Group("/geofences")
	g.Post("/refresh", h.RefreshGeofences)
	g.Post("/transitions", h.HandleTransition)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.repository.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	body := fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	}

	if last := h.manager.LastCycle(); !last.IsZero() {
		body["last_cycle"] = last
	}

	return c.Status(httpStatus).JSON(body)
}

func (h *APIHandlers) Metrics(c fiber.Ctx) error {
	if h.metrics == nil {
		return unavailable(c, "metrics_disabled", "metrics are not enabled")
	}

	handler := promhttp.HandlerFor(h.metrics.Gatherer(), promhttp.HandlerOpts{})

	return adaptor.HTTPHandler(handler)(c)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.repository.FetchAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.repository.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req SaveWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	saved, err := h.repository.Save(c.Context(), id, req.workflow(id))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(saved)
}

func (h *APIHandlers) TriggerWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req TriggerWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	executionID, err := h.manager.TriggerWorkflow(c.Context(), id, req.UserID, req.Payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TriggerWorkflowResponse{ExecutionID: executionID})
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := defaultExecutionsLimit

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return badRequest(c, "limit must be a positive integer")
		}

		limit = parsed
	}

	results, err := h.repository.Executions(c.Context(), id, limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	if results == nil {
		results = make([]*models.ExecutionResult, 0)
	}

	return c.JSON(results)
}

func (h *APIHandlers) CheckTriggers(c fiber.Ctx) error {
	results, err := h.manager.CheckTriggers(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	fired := 0

	for _, result := range results {
		if result.Triggered {
			fired++
		}
	}

	if results == nil {
		results = make([]models.TriggerExecutionResult, 0)
	}

	return c.JSON(CheckTriggersResponse{Results: results, Fired: fired, CheckedAt: time.Now().UTC()})
}

func (h *APIHandlers) RefreshGeofences(c fiber.Ctx) error {
	if h.geofences == nil {
		return unavailable(c, "geofencing_disabled", "geofencing is not configured")
	}

	count, err := h.geofences.RefreshGeofences(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(RefreshGeofencesResponse{Registered: count, RequestIDs: h.geofences.Registered()})
}

func (h *APIHandlers) HandleTransition(c fiber.Ctx) error {
	if h.geofences == nil {
		return unavailable(c, "geofencing_disabled", "geofencing is not configured")
	}

	var req models.GeofenceTransition
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := models.ParseTransition(req.TransitionType); err != nil {
		return badRequest(c, err.Error())
	}

	results := h.geofences.HandleTransition(c.Context(), req)
	if results == nil {
		results = make([]*models.ExecutionResult, 0)
	}

	return c.JSON(TransitionResponse{Matched: len(results), Results: results})
}
