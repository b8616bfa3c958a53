package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/docuflow/docuflow/pkg/engine"
	"github.com/docuflow/docuflow/pkg/persistence"
	"github.com/docuflow/docuflow/pkg/services"
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

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		return conflict(c, err.Error())

	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "workflow definition not found")

	case persistence.IsInstanceNotFound(err):
		return notFound(c, "workflow instance not found")

	default:
		return internalError(c, err)
	}
}

// handleEngineError maps executor errors onto HTTP statuses. Terminal-state
// and paused-instance violations are conflicts, not server faults.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsInstanceNotFound(err):
		return notFound(c, "workflow instance not found")

	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "workflow definition not found")

	case errors.Is(err, engine.ErrStepNotFound):
		return notFound(c, "step not found in workflow definition")

	case engine.IsTerminalState(err),
		errors.Is(err, engine.ErrInstancePaused),
		errors.Is(err, engine.ErrNotPaused):
		return conflict(c, err.Error())

	case engine.IsDependencyNotSatisfied(err):
		return conflict(c, err.Error())

	default:
		return internalError(c, err)
	}
}
