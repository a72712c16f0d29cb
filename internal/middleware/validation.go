package middleware

import (
	"strings"

	"wiki-quiz/internal/domain"
	"wiki-quiz/internal/dto"
	"wiki-quiz/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const (
	validatedURLKey    = "validated_url"
	validatedQuizIDKey = "validated_quiz_id"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validation.NewValidator(),
	}
}

// ValidateGenerateQuiz parses the generate request body and checks its url.
func (vm *ValidationMiddleware) ValidateGenerateQuiz() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req dto.GenerateQuizRequest
		if err := c.BodyParser(&req); err != nil {
			return domain.NewInvalidInputError("Request body must be a JSON object with a url field")
		}

		if errors := vm.validator.ValidateGenerateQuizRequest(req.URL); len(errors) > 0 {
			return errors // This will be handled by ErrorHandler middleware
		}

		c.Locals(validatedURLKey, strings.TrimSpace(req.URL))
		return c.Next()
	}
}

// ValidateQuizID validates the :id path parameter.
func (vm *ValidationMiddleware) ValidateQuizID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, errors := vm.validator.ParseQuizID(c.Params("id"))
		if len(errors) > 0 {
			return errors
		}

		c.Locals(validatedQuizIDKey, id)
		return c.Next()
	}
}

// ValidatedURL returns the url stored by ValidateGenerateQuiz.
func ValidatedURL(c *fiber.Ctx) string {
	url, _ := c.Locals(validatedURLKey).(string)
	return url
}

// ValidatedQuizID returns the id stored by ValidateQuizID.
func ValidatedQuizID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(validatedQuizIDKey).(int64)
	return id
}
