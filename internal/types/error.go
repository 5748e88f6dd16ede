package types

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// JSON body of every non-2xx response from the monitoring routes
type Error struct {
	Fields  map[string]string `json:"fields,omitempty"`
	Message string            `json:"message"`
}

func StringError(msg string) Error {
	return Error{Message: msg}
}

// Maps validator failures to one message per offending field, e.g. {"limit": "max=500"}
func ValidationError(err error) Error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return Error{Message: "validation error"}
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		rule := fieldError.Tag()
		if fieldError.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fieldError.Param())
		}
		fields[fieldError.Field()] = rule
	}

	return Error{Message: "validation error", Fields: fields}
}
