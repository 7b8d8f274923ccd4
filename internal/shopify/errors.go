package shopify

import (
	"errors"
	"fmt"
	"strings"
)

// userErrorDetail is one entry of a mutation's userErrors payload.
type userErrorDetail struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserError is a catalog-side business error: the mutation was accepted by
// the transport but rejected by the platform. Callers rely on Message
// carrying the first reported problem.
type UserError struct {
	Action string
	Errors []userErrorDetail
}

func (e *UserError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "shopify user errors"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		field := strings.Join(err.Field, ".")
		if field == "" {
			parts = append(parts, err.Message)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", field, err.Message))
	}
	return fmt.Sprintf("shopify %s failed: %s", e.Action, strings.Join(parts, "; "))
}

// Message returns the first reported user error message.
func (e *UserError) Message() string {
	if e == nil || len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Message
}

// IsUserError reports whether err wraps a catalog business error.
func IsUserError(err error) (*UserError, bool) {
	var typed *UserError
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

func userErrorsIfAny(action string, details []userErrorDetail) error {
	if len(details) == 0 {
		return nil
	}
	return &UserError{Action: action, Errors: details}
}
