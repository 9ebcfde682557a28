package inbound

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-postwork/core"
)

func inboundError(message string, code int, textCode string, metadata map[string]any) *goerrors.Error {
	category := goerrors.CategoryBadInput
	if code >= http.StatusInternalServerError {
		category = goerrors.CategoryInternal
	}
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundBadInput(message string, metadata map[string]any) error {
	return inboundError(message, http.StatusBadRequest, core.PostworkErrorValidation, metadata)
}

func inboundBodyTooLarge(limit int64) error {
	return inboundError(
		"inbound: request body too large",
		http.StatusRequestEntityTooLarge,
		core.PostworkErrorValidation,
		map[string]any{"limit": limit},
	)
}

func inboundBodyUnreadable(source error) error {
	return goerrors.Wrap(source, goerrors.CategoryBadInput, "inbound: read request body").
		WithCode(http.StatusBadRequest).
		WithTextCode(core.PostworkErrorValidation)
}

func inboundInternal(message string, metadata map[string]any) error {
	return inboundError(message, http.StatusInternalServerError, core.PostworkErrorFatal, metadata)
}

// errorEnvelope maps err to its response status and JSON body. Errors
// without a usable HTTP code are reported as 500.
func errorEnvelope(err error) (int, ErrorBody) {
	rich := core.MapError(err)
	if rich == nil {
		rich = core.FatalError("inbound: unknown error", err)
	}
	status := rich.Code
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	detail := ErrorDetail{
		Category: string(rich.Category),
		Code:     status,
		TextCode: rich.TextCode,
		Message:  rich.Message,
		Metadata: rich.Metadata,
	}
	for _, field := range rich.AllValidationErrors() {
		detail.Validation = append(detail.Validation, FieldError{Field: field.Field, Message: field.Message})
	}
	return status, ErrorBody{Error: detail}
}
