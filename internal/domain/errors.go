package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"

	// Pipeline errors
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	CodeFetch         ErrorCode = "FETCH_ERROR"
	CodeGeneration    ErrorCode = "GENERATION_ERROR"
	CodeValidation    ErrorCode = "VALIDATION_ERROR"

	// Quiz specific errors
	CodeQuizNotFound ErrorCode = "QUIZ_NOT_FOUND"
)

// Reason narrows an ErrorCode to a specific failure.
type Reason string

const (
	// Fetch reasons
	ReasonTimeout       Reason = "TIMEOUT"
	ReasonRequestFailed Reason = "REQUEST_FAILED"
	ReasonBadStatus     Reason = "BAD_STATUS"
	ReasonNoContent     Reason = "NO_CONTENT"
	ReasonTooShort      Reason = "TOO_SHORT"

	// Generation reasons
	ReasonTransport     Reason = "TRANSPORT"
	ReasonRateLimited   Reason = "RATE_LIMITED"
	ReasonProviderError Reason = "PROVIDER_ERROR"

	// Validation reasons
	ReasonMalformedOutput Reason = "MALFORMED_OUTPUT"
	ReasonMissingField    Reason = "MISSING_FIELD"
	ReasonInvalidQuestion Reason = "INVALID_QUESTION"
	ReasonEmptyQuiz       Reason = "EMPTY_QUIZ"
	ReasonCardinality     Reason = "CARDINALITY"

	ReasonMissingCredential Reason = "MISSING_CREDENTIAL"
)

// QuestionIssue explains why a single question was rejected.
type QuestionIssue string

const (
	IssueMissingOptions       QuestionIssue = "MISSING_OPTIONS"
	IssueMissingCorrectAnswer QuestionIssue = "MISSING_CORRECT_ANSWER"
	IssueMissingExplanation   QuestionIssue = "MISSING_EXPLANATION"
	IssueAnswerNotInOptions   QuestionIssue = "ANSWER_NOT_IN_OPTIONS"
)

// DomainError represents a domain-specific error. Message is safe to show to
// callers; Cause is for logs only.
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Reason  Reason                 `json:"reason,omitempty"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"-"`
	Cause   error                  `json:"-"`
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Reason != "" {
		b.WriteString("(" + string(e.Reason) + ")")
	}
	b.WriteString(": " + e.Message)
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Reason  string `json:"reason,omitempty"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Reason:  string(e.Reason),
		Message: e.Message,
	})
}

// WithContext attaches a key/value pair and returns the same error.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a new DomainError
func NewError(code ErrorCode, reason Reason, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Reason:  reason,
		Message: message,
		Cause:   err,
	}
}

// AsDomainError returns the DomainError in err's chain, if any.
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code ErrorCode) bool {
	domainErr, ok := AsDomainError(err)
	return ok && domainErr.Code == code
}

// HasReason reports whether err is a DomainError with the given code and reason.
func HasReason(err error, code ErrorCode, reason Reason) bool {
	domainErr, ok := AsDomainError(err)
	return ok && domainErr.Code == code && domainErr.Reason == reason
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(CodeNotFound, "", message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(CodeInvalidInput, "", message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(CodeInternal, "", message, err)
}

func NewQuizNotFoundError(quizID int64) *DomainError {
	return NewError(CodeQuizNotFound, "", fmt.Sprintf("Quiz not found with ID: %d", quizID), nil).
		WithContext("id", quizID)
}

func NewConfigurationError(missing []string) *DomainError {
	return NewError(CodeConfiguration, ReasonMissingCredential,
		fmt.Sprintf("Required configuration is missing: %s", strings.Join(missing, ", ")), nil).
		WithContext("missing", missing)
}

func NewFetchError(reason Reason, message string, err error) *DomainError {
	return NewError(CodeFetch, reason, message, err)
}

func NewGenerationError(reason Reason, err error) *DomainError {
	message := "Failed to generate quiz with the language model"
	switch reason {
	case ReasonRateLimited:
		message = "The language model provider is rate limiting requests"
	case ReasonTimeout:
		message = "The language model did not respond in time"
	}
	return NewError(CodeGeneration, reason, message, err)
}

func NewMalformedOutputError(err error) *DomainError {
	return NewError(CodeValidation, ReasonMalformedOutput, "Model output is not valid structured data", err)
}

func NewMissingFieldError(field string) *DomainError {
	return NewError(CodeValidation, ReasonMissingField,
		fmt.Sprintf("Model output is missing required field %q", field), nil).
		WithContext("field", field)
}

func NewInvalidQuestionError(index int, issue QuestionIssue) *DomainError {
	return NewError(CodeValidation, ReasonInvalidQuestion,
		fmt.Sprintf("Question %d is invalid: %s", index, issue), nil).
		WithContext("index", index).
		WithContext("issue", string(issue))
}

func NewEmptyQuizError() *DomainError {
	return NewError(CodeValidation, ReasonEmptyQuiz, "Model output contains no questions", nil)
}

func NewCardinalityError(err error) *DomainError {
	return NewError(CodeValidation, ReasonCardinality, "Model output does not satisfy the quiz size policy", err)
}

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors collects request validation failures.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

func NewRequiredFieldError(field string) FieldError {
	return FieldError{Field: field, Message: "is required"}
}

func NewInvalidFormatError(field string, value interface{}) FieldError {
	return FieldError{Field: field, Message: "has an invalid format", Value: value}
}
