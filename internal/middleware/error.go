package middleware

import (
	"errors"
	"net/http"

	"wiki-quiz/internal/domain"
	"wiki-quiz/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Reason  string                 `json:"reason,omitempty"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse represents validation error response
type ValidationErrorResponse struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Status  int                `json:"status"`
	Errors  domain.FieldErrors `json:"errors"`
}

// ErrorHandler is the centralized fiber error handler. Install it through
// fiber.Config.ErrorHandler.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		log := logger.Get().With(
			zap.String("path", c.Path()),
			zap.String("request_id", RequestID(c)),
		)

		// Handle validation errors
		var fieldErrs domain.FieldErrors
		if errors.As(err, &fieldErrs) {
			log.Warn("Request validation failed", zap.Int("error_count", len(fieldErrs)))
			return c.Status(http.StatusBadRequest).JSON(ValidationErrorResponse{
				Code:    string(domain.CodeInvalidInput),
				Message: "Request validation failed",
				Status:  http.StatusBadRequest,
				Errors:  fieldErrs,
			})
		}

		// Handle domain errors
		if domainErr, ok := domain.AsDomainError(err); ok {
			statusCode := StatusForDomainError(domainErr)

			fields := []zap.Field{
				zap.String("code", string(domainErr.Code)),
				zap.String("reason", string(domainErr.Reason)),
				zap.String("message", domainErr.Message),
				zap.Int("status", statusCode),
				zap.Any("context", domainErr.Context),
				zap.Error(domainErr.Cause),
			}
			if statusCode >= http.StatusInternalServerError {
				log.Error("Domain error occurred", fields...)
			} else {
				log.Warn("Domain error occurred", fields...)
			}

			response := ErrorResponse{
				Code:    string(domainErr.Code),
				Reason:  string(domainErr.Reason),
				Message: domainErr.Message,
				Status:  statusCode,
			}
			if len(domainErr.Context) > 0 {
				response.Details = domainErr.Context
			}

			return c.Status(statusCode).JSON(response)
		}

		// Handle fiber errors
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			log.Warn("Fiber error occurred",
				zap.Int("code", fiberErr.Code),
				zap.String("message", fiberErr.Message),
			)
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Code:    "HTTP_ERROR",
				Message: fiberErr.Message,
				Status:  fiberErr.Code,
			})
		}

		log.Error("Unknown error occurred", zap.Error(err))

		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Code:    string(domain.CodeInternal),
			Message: "Internal server error",
			Status:  http.StatusInternalServerError,
		})
	}
}

// StatusForDomainError maps domain errors to HTTP status codes
func StatusForDomainError(err *domain.DomainError) int {
	switch err.Code {
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeNotFound, domain.CodeQuizNotFound:
		return http.StatusNotFound
	case domain.CodeFetch:
		if err.Reason == domain.ReasonTooShort || err.Reason == domain.ReasonNoContent {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	case domain.CodeGeneration:
		if err.Reason == domain.ReasonRateLimited {
			return http.StatusTooManyRequests
		}
		return http.StatusServiceUnavailable
	case domain.CodeValidation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
