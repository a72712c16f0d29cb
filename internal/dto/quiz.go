package dto

import (
	"time"

	"wiki-quiz/internal/domain"
)

// StatusResponse is returned by the liveness probe
type StatusResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GenerateQuizRequest represents the request body for quiz generation
// @Description Wikipedia article to build a quiz from
type GenerateQuizRequest struct {
	URL string `json:"url" example:"https://en.wikipedia.org/wiki/Alan_Turing"`
}

// GenerateQuizResponse is returned after a quiz is generated and stored
// @Description Newly generated quiz
type GenerateQuizResponse struct {
	ID       int64             `json:"id"`
	QuizData domain.QuizOutput `json:"quiz_data"`
	Message  string            `json:"message"`
}

// HistoryItem is a lightweight entry in the generation history
type HistoryItem struct {
	ID            int64     `json:"id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	DateGenerated time.Time `json:"date_generated"`
}

// QuizDetailResponse is a stored quiz with its decoded payload
// @Description Stored quiz
type QuizDetailResponse struct {
	ID            int64             `json:"id"`
	URL           string            `json:"url"`
	Title         string            `json:"title"`
	DateGenerated time.Time         `json:"date_generated"`
	QuizData      domain.QuizOutput `json:"quiz_data"`
}

// NewHistoryItem converts a stored record into a history entry.
func NewHistoryItem(record *domain.QuizRecord) HistoryItem {
	return HistoryItem{
		ID:            record.ID,
		URL:           record.URL,
		Title:         record.Title,
		DateGenerated: record.DateGenerated,
	}
}
