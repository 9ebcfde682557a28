package query

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-postwork/core"
)

// queryDependencyError reports a handler built without its service.
func queryDependencyError(message string) error {
	return core.FatalError(message, nil)
}

func queryValidationError(field string, message string) error {
	return core.ValidationError("query: validation failed", goerrors.FieldError{Field: field, Message: message}).
		WithCode(http.StatusBadRequest)
}
