package handler

import (
	"wiki-quiz/internal/dto"
	"wiki-quiz/internal/middleware"
	"wiki-quiz/internal/service"

	"github.com/gofiber/fiber/v2"
)

// StatusMessage is reported by the liveness probe.
const StatusMessage = "AI Wiki Quiz Generator API"

// QuizHandler handles quiz-related HTTP requests
type QuizHandler struct {
	service    service.QuizService
	validation *middleware.ValidationMiddleware
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(service service.QuizService) *QuizHandler {
	return &QuizHandler{
		service:    service,
		validation: middleware.NewValidationMiddleware(),
	}
}

// RegisterRoutes mounts the quiz endpoints on router.
func (h *QuizHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.Status)
	router.Post("/generate_quiz", h.validation.ValidateGenerateQuiz(), h.GenerateQuiz)
	router.Get("/history", h.GetHistory)
	router.Get("/quiz/:id", h.validation.ValidateQuizID(), h.GetQuiz)
}

// Status godoc
// @Summary Liveness probe
// @Tags status
// @Produce json
// @Success 200 {object} dto.StatusResponse
// @Router / [get]
func (h *QuizHandler) Status(c *fiber.Ctx) error {
	return c.JSON(dto.StatusResponse{
		Message: StatusMessage,
		Status:  "running",
	})
}

// GenerateQuiz godoc
// @Summary Generate a quiz from a Wikipedia article
// @Description Fetches the article, asks the language model for a quiz, validates it and stores the result.
// @Tags quiz
// @Accept json
// @Produce json
// @Param request body dto.GenerateQuizRequest true "Article URL"
// @Success 200 {object} dto.GenerateQuizResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Failure 429 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /generate_quiz [post]
func (h *QuizHandler) GenerateQuiz(c *fiber.Ctx) error {
	resp, err := h.service.GenerateQuiz(c.UserContext(), middleware.ValidatedURL(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// GetHistory godoc
// @Summary List generated quizzes
// @Description Returns every stored quiz, newest first. Pass url to see one article's history.
// @Tags quiz
// @Produce json
// @Param url query string false "Article URL"
// @Success 200 {array} dto.HistoryItem
// @Failure 500 {object} middleware.ErrorResponse
// @Router /history [get]
func (h *QuizHandler) GetHistory(c *fiber.Ctx) error {
	items, err := h.service.GetHistory(c.UserContext(), c.Query("url"))
	if err != nil {
		return err
	}
	return c.JSON(items)
}

// GetQuiz godoc
// @Summary Get a stored quiz
// @Tags quiz
// @Produce json
// @Param id path int true "Quiz ID"
// @Success 200 {object} dto.QuizDetailResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /quiz/{id} [get]
func (h *QuizHandler) GetQuiz(c *fiber.Ctx) error {
	resp, err := h.service.GetQuiz(c.UserContext(), middleware.ValidatedQuizID(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
