package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	PostworkErrorValidation = "POSTWORK_VALIDATION"
	PostworkErrorNotFound   = "POSTWORK_NOT_FOUND"
	PostworkErrorConflict   = "POSTWORK_CONFLICT"
	PostworkErrorTransport  = "POSTWORK_TRANSPORT"
	PostworkErrorFatal      = "POSTWORK_FATAL"
)

func ValidationError(message string, fields ...goerrors.FieldError) *goerrors.Error {
	if len(fields) > 0 {
		return ensurePostworkErrorEnvelope(
			goerrors.NewValidation(message, fields...).
				WithTextCode(PostworkErrorValidation),
		)
	}
	return newPostworkError(message, goerrors.CategoryValidation, PostworkErrorValidation)
}

func NotFoundError(message string, source error) *goerrors.Error {
	return wrapPostworkError(source, message, goerrors.CategoryNotFound, PostworkErrorNotFound)
}

func ConflictError(message string, source error) *goerrors.Error {
	return wrapPostworkError(source, message, goerrors.CategoryConflict, PostworkErrorConflict)
}

func TransportError(message string, source error) *goerrors.Error {
	return wrapPostworkError(source, message, goerrors.CategoryExternal, PostworkErrorTransport)
}

func FatalError(message string, source error) *goerrors.Error {
	return wrapPostworkError(source, message, goerrors.CategoryInternal, PostworkErrorFatal)
}

func IsValidation(err error) bool {
	return hasTextCode(err, PostworkErrorValidation)
}

func IsNotFound(err error) bool {
	return hasTextCode(err, PostworkErrorNotFound)
}

func IsConflict(err error) bool {
	return hasTextCode(err, PostworkErrorConflict)
}

func IsTransport(err error) bool {
	return hasTextCode(err, PostworkErrorTransport)
}

func IsFatal(err error) bool {
	return hasTextCode(err, PostworkErrorFatal)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}

// MapError converts any error into a postwork envelope. Envelopes pass
// through with their code and text code filled in.
func MapError(err error) *goerrors.Error {
	return postworkErrorMapper(err)
}

func postworkErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensurePostworkErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error(), err)
	case errors.Is(err, ErrStatusConflict), errors.Is(err, ErrInvalidBlockStatusTransition):
		return ConflictError(err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return TransportError(err.Error(), err)
	case errors.Is(err, ErrStoreUnavailable):
		return FatalError(err.Error(), err)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return NotFoundError(err.Error(), err)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return ValidationError(err.Error())
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensurePostworkErrorEnvelope(mapped)
}

func newPostworkError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensurePostworkErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapPostworkError(source error, message string, category goerrors.Category, textCode string) *goerrors.Error {
	if source == nil {
		return newPostworkError(message, category, textCode)
	}
	return ensurePostworkErrorEnvelope(
		goerrors.Wrap(source, category, message).
			WithTextCode(textCode),
	)
}

func ensurePostworkErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = postworkHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultPostworkTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultPostworkTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return PostworkErrorValidation
	case goerrors.CategoryNotFound:
		return PostworkErrorNotFound
	case goerrors.CategoryConflict:
		return PostworkErrorConflict
	case goerrors.CategoryExternal:
		return PostworkErrorTransport
	default:
		return PostworkErrorFatal
	}
}

func postworkHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
