package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-postwork/core"
)

func clientNotConfiguredError() error {
	return core.FatalError("transport: webhook client requires an http client", nil)
}

// invalidURLError reports a target that cannot be posted to. source may be nil.
func invalidURLError(message string, target string, source error) error {
	err := core.ValidationError(message, goerrors.FieldError{Field: "url", Message: targetReason(source)})
	return withTarget(err, target, 0)
}

// deliveryError covers failures to obtain a response: dns, tls, refused
// connections and timeouts.
func deliveryError(message string, target string, statusCode int, source error) error {
	return withTarget(core.TransportError(message, source), target, statusCode)
}

func withTarget(err *goerrors.Error, target string, statusCode int) *goerrors.Error {
	metadata := map[string]any{"url": target}
	if statusCode > 0 {
		metadata["status_code"] = statusCode
	}
	err.WithMetadata(metadata)
	return err
}

func targetReason(source error) string {
	if source == nil {
		return "must be an absolute url"
	}
	return source.Error()
}
