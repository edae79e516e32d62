package domain

import (
	"fmt"
)

// ErrorCode identifies the failing stage of a quiz request.
type ErrorCode string

const (
	// Common errors
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Extraction errors
	CodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	CodeParseError        ErrorCode = "PARSE_ERROR"

	// Renderer errors
	CodeRenderTimeout   ErrorCode = "RENDER_TIMEOUT"
	CodeNavigationError ErrorCode = "NAVIGATION_ERROR"

	// LLM provider errors
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeLLMResponseError  ErrorCode = "LLM_RESPONSE_ERROR"

	// Submission errors
	CodeSubmissionError    ErrorCode = "SUBMISSION_ERROR"
	CodeSubmissionRejected ErrorCode = "SUBMISSION_REJECTED"

	// Overall deadline
	CodeQuizTimeout ErrorCode = "QUIZ_TIMEOUT"
)

// DomainError carries an error code so the HTTP layer can map failures
// to status codes without inspecting messages.
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithContext attaches a key/value pair for the error response details.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Helper constructors for each pipeline stage

func NewValidationError(message string) *DomainError {
	return NewError(CodeValidation, message, nil)
}

func NewUnauthorizedError(message string) *DomainError {
	return NewError(CodeUnauthorized, message, nil)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewError(CodeInternal, message, cause)
}

func NewUnsupportedFormatError(contentType string) *DomainError {
	return NewError(CodeUnsupportedFormat, fmt.Sprintf("Unsupported content format: %s", contentType), nil)
}

func NewParseError(format string, cause error) *DomainError {
	return NewError(CodeParseError, fmt.Sprintf("Failed to parse %s content", format), cause)
}

func NewRenderTimeoutError(url string, cause error) *DomainError {
	return NewError(CodeRenderTimeout, "Page render timed out", cause).WithContext("url", url)
}

func NewNavigationError(url string, cause error) *DomainError {
	return NewError(CodeNavigationError, "Browser navigation failed", cause).WithContext("url", url)
}

func NewRateLimitExceededError(cause error) *DomainError {
	return NewError(CodeRateLimitExceeded, "LLM provider rate limit exceeded after retries", cause)
}

func NewLLMResponseError(cause error) *DomainError {
	return NewError(CodeLLMResponseError, "Failed to get a usable response from LLM provider", cause)
}

func NewSubmissionError(attempts int, cause error) *DomainError {
	return NewError(CodeSubmissionError, "Answer submission failed", cause).WithContext("attempts", attempts)
}

func NewSubmissionRejectedError(status int) *DomainError {
	return NewError(CodeSubmissionRejected, fmt.Sprintf("Submission rejected by quiz platform with status %d", status), nil)
}

func NewQuizTimeoutError() *DomainError {
	return NewError(CodeQuizTimeout, "Quiz processing exceeded the overall deadline", nil)
}

// ValidationError describes a single invalid request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates field errors for one request.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Error()
}

func NewMissingFieldError(field string) ValidationError {
	return ValidationError{Field: field, Message: "is required"}
}

func NewInvalidFormatError(field, value string) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("has invalid format: %s", value)}
}
