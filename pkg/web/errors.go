package web

import (
	"errors"
	"strings"

	"github.com/dukex/tripwire/pkg/geofence"
	"github.com/dukex/tripwire/pkg/models"
	"github.com/dukex/tripwire/pkg/persistence"
	"github.com/dukex/tripwire/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func unavailable(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(503).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps engine errors onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var preflight *geofence.PreflightError

	switch {
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")
	case errors.Is(err, models.ErrInvalidWorkflow):
		return badRequest(c, err.Error())
	case errors.Is(err, workflow.ErrInvalidInput):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("invalid_input").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)
	case errors.Is(err, workflow.ErrMissingUser):
		return badRequest(c, "no user identity for this workflow")
	case errors.Is(err, workflow.ErrWorkflowDisabled):
		return conflict(c, "workflow_disabled", err.Error())
	case errors.Is(err, workflow.ErrCycleInProgress):
		return conflict(c, "cycle_in_progress", err.Error())
	case errors.As(err, &preflight):
		problem := problems.NewStatusProblem(412).
			WithInstance(c.Path()).
			WithType("preflight_failed").
			WithDetail(strings.Join(preflight.Problems, "; "))

		return c.Status(fiber.StatusPreconditionFailed).JSON(problem)
	default:
		return internalError(c, err)
	}
}
