package web

import (
	"errors"

	"github.com/archonhq/archon/pkg/features"
	"github.com/archonhq/archon/pkg/nodes"
	"github.com/archonhq/archon/pkg/workflows"
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

func unauthorized(c fiber.Ctx) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail("Caller identity headers are required")

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps engine error kinds onto problem responses. Wrapper
// errors unwrap to their sentinel kind, so the mapping survives decoration.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case features.IsFeatureNotFound(err):
		return notFound(c, "feature not found")

	case errors.Is(err, workflows.ErrDefinitionNotFound):
		return notFound(c, "workflow definition not found")

	case errors.Is(err, workflows.ErrInstanceNotFound):
		return notFound(c, "workflow instance not found")

	case nodes.IsNodeNotFound(err):
		return notFound(c, "node not found")

	case features.IsPermissionDenied(err):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("permission_denied").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case errors.Is(err, workflows.ErrDuplicateInstance),
		errors.Is(err, workflows.ErrNodeLocked),
		errors.Is(err, workflows.ErrStaleInstance),
		errors.Is(err, workflows.ErrAlreadyCancelled),
		errors.Is(err, workflows.ErrWorkflowStillRunning):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case features.IsInvalidParameters(err),
		errors.Is(err, features.ErrFeatureNotExposed),
		errors.Is(err, features.ErrFilterMismatch),
		workflows.IsInvalidSignal(err),
		workflows.IsWorkflowNotRunning(err),
		errors.Is(err, workflows.ErrNodeFilterMismatch),
		errors.Is(err, workflows.ErrNodeNotGoverned):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("unprocessable").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case features.IsTimeout(err):
		problem := problems.NewStatusProblem(504).
			WithInstance(c.Path()).
			WithType("feature_timeout").
			WithDetail(err.Error())

		return c.Status(fiber.StatusGatewayTimeout).JSON(problem)

	default:
		return internalError(c, err)
	}
}
