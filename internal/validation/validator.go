package validation

import (
	"strconv"
	"strings"

	"wiki-quiz/internal/domain"
)

// ArticleHostMarker must appear in every URL submitted for quiz generation.
const ArticleHostMarker = "wikipedia.org"

// Validator provides request validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateGenerateQuizRequest checks that url is present and points at Wikipedia.
func (v *Validator) ValidateGenerateQuizRequest(url string) domain.FieldErrors {
	var errors domain.FieldErrors

	url = strings.TrimSpace(url)
	if url == "" {
		errors = append(errors, domain.NewRequiredFieldError("url"))
	} else if !strings.Contains(strings.ToLower(url), ArticleHostMarker) {
		errors = append(errors, domain.FieldError{
			Field:   "url",
			Message: "must be a Wikipedia URL",
			Value:   url,
		})
	}

	return errors
}

// ParseQuizID validates a quiz id path parameter.
func (v *Validator) ParseQuizID(raw string) (int64, domain.FieldErrors) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.FieldErrors{domain.NewInvalidFormatError("id", raw)}
	}
	return id, nil
}
