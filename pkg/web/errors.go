package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/reservly/flowengine/pkg/services"
)

func ok(c fiber.Ctx, data any) error {
	return c.JSON(Envelope{Success: true, Data: data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Success: true, Data: data})
}

func fail(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(Envelope{
		Success: false,
		Error:   &EnvelopeError{Code: code, Message: message},
	})
}

func failWithDetails(c fiber.Ctx, status int, code, message string, details any) error {
	return c.Status(status).JSON(Envelope{
		Success: false,
		Error:   &EnvelopeError{Code: code, Message: message, Details: details},
	})
}

func badRequest(c fiber.Ctx, detail string) error {
	return fail(c, fiber.StatusBadRequest, services.CodeInvalidRequest, detail)
}

func notFound(c fiber.Ctx, code, detail string) error {
	return fail(c, fiber.StatusNotFound, code, detail)
}

func internalError(c fiber.Ctx) error {
	return fail(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// handleServiceError maps service layer errors onto the envelope using
// their stable codes. Unexpected errors are not exposed.
func handleServiceError(c fiber.Ctx, err error) error {
	code := services.ErrorCode(err)

	switch {
	case services.IsNotFoundError(err):
		return fail(c, fiber.StatusNotFound, code, err.Error())
	case services.IsValidationError(err):
		return fail(c, fiber.StatusBadRequest, code, err.Error())
	default:
		return internalError(c)
	}
}

// webhookProblem renders an RFC 7807 problem document. The webhook and
// health surfaces are consumed by infrastructure, not the management UI,
// so they speak problem+json instead of the envelope.
func webhookProblem(c fiber.Ctx, status int, problemType, detail string) error {
	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(status).JSON(problem)
}
