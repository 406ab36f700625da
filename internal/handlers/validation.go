package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationErrorResponse represents a validation error with field-level details
type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Global validator instance (reused across all handlers)
var validate = validator.New()

// ValidateRequest validates a request struct using go-playground/validator
// Returns a user-friendly error message if validation fails
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			// Report the first failing field
			return fmt.Errorf("validation failed: %s: %s", ve[0].Field(), formatValidationError(ve[0]))
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// normalizer is implemented by request DTOs that clean their fields before validation
type normalizer interface {
	normalize()
}

// decodeAndValidate reads a JSON body into req, normalizes it and validates it.
// Returns the client-facing message on failure.
func decodeAndValidate(r *http.Request, req interface{}) (string, bool) {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return "Invalid request body", false
	}
	if n, ok := req.(normalizer); ok {
		n.normalize()
	}
	if err := ValidateRequest(req); err != nil {
		return err.Error(), false
	}
	return "", true
}

// normalizeEmail lower-cases and trims an email
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
