package validation

import (
	"net/url"
	"quiz-solver/internal/domain"
	"quiz-solver/internal/dto"
	"regexp"
	"strings"
)

// Validator provides request validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSolveQuizRequest validates the quiz solve request
func (v *Validator) ValidateSolveQuizRequest(req *dto.SolveQuizRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(req.Email) == "" {
		errors = append(errors, domain.NewMissingFieldError("email"))
	} else if !isValidEmail(req.Email) {
		errors = append(errors, domain.NewInvalidFormatError("email", req.Email))
	}

	if strings.TrimSpace(req.Secret) == "" {
		errors = append(errors, domain.NewMissingFieldError("secret"))
	}

	if strings.TrimSpace(req.URL) == "" {
		errors = append(errors, domain.NewMissingFieldError("url"))
	} else if !isValidHTTPURL(req.URL) {
		errors = append(errors, domain.NewInvalidFormatError("url", req.URL))
	}

	return errors
}

// Helper functions for validation

// isValidEmail checks the rough shape of an email address. The quiz
// platform is the authority on the address itself.
func isValidEmail(s string) bool {
	validEmail := regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	return validEmail.MatchString(s)
}

// isValidHTTPURL checks that the target is an absolute http(s) URL.
func isValidHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
