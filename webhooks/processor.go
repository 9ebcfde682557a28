package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-postwork/core"
)

const PostworkErrorUnauthorized = "POSTWORK_UNAUTHORIZED"

const defaultMaxCallbackBodyBytes = 64 << 10

type Ingester interface {
	Ingest(ctx context.Context, blockID string, callback core.CallbackResult) (core.IngestResult, error)
}

// Processor verifies a callback, decodes it and hands it to ingestion.
type Processor struct {
	Verifier     Verifier
	Ingester     Ingester
	MaxBodyBytes int
}

func NewProcessor(verifier Verifier, ingester Ingester) *Processor {
	return &Processor{
		Verifier:     verifier,
		Ingester:     ingester,
		MaxBodyBytes: defaultMaxCallbackBodyBytes,
	}
}

func (p *Processor) Process(ctx context.Context, req CallbackRequest) (core.IngestResult, error) {
	if p == nil || p.Ingester == nil {
		return core.IngestResult{}, core.FatalError("webhooks: processor requires an ingester", nil)
	}
	if limit := p.maxBodyBytes(); len(req.Body) > limit {
		return core.IngestResult{}, core.ValidationError(
			fmt.Sprintf("webhooks: callback body exceeds %d bytes", limit),
			goerrors.FieldError{Field: "body", Message: "too large"},
		)
	}
	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			return core.IngestResult{}, unauthorizedError(err)
		}
	}

	callback, err := DecodeCallback(req.Body)
	if err != nil {
		return core.IngestResult{}, err
	}
	return p.Ingester.Ingest(ctx, strings.TrimSpace(req.BlockID), callback)
}

// DecodeCallback parses a callback body. Unknown fields are ignored so
// workers may echo the dispatch payload back.
func DecodeCallback(body []byte) (core.CallbackResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return core.CallbackResult{}, core.ValidationError(
			"webhooks: callback body is required",
			goerrors.FieldError{Field: "body", Message: "required"},
		)
	}
	var callback core.CallbackResult
	if err := json.Unmarshal(trimmed, &callback); err != nil {
		return core.CallbackResult{}, core.ValidationError(
			"webhooks: callback body is not valid json",
			goerrors.FieldError{Field: "body", Message: err.Error()},
		)
	}
	return callback, nil
}

// IsUnauthorized reports whether err came from a failed verification.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == PostworkErrorUnauthorized {
		return true
	}
	return errors.Is(err, ErrUnauthorized)
}

func unauthorizedError(source error) error {
	return goerrors.Wrap(source, goerrors.CategoryAuth, "webhooks: callback verification failed").
		WithCode(http.StatusUnauthorized).
		WithTextCode(PostworkErrorUnauthorized)
}

func (p *Processor) maxBodyBytes() int {
	if p != nil && p.MaxBodyBytes > 0 {
		return p.MaxBodyBytes
	}
	return defaultMaxCallbackBodyBytes
}
