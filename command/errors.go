package command

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-postwork/core"
)

// commandDependencyError reports a handler built without its service.
func commandDependencyError(message string) error {
	return core.FatalError(message, nil)
}

func commandValidationError(field string, message string) error {
	return core.ValidationError("command: validation failed", goerrors.FieldError{Field: field, Message: message}).
		WithCode(http.StatusBadRequest)
}
