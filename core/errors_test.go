package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestPostworkErrorMapper_AssignsStableCodes(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		textCode string
		status   int
	}{
		{name: "not found sentinel", err: fmt.Errorf("lookup: %w", ErrBlockNotFound), textCode: PostworkErrorNotFound, status: http.StatusNotFound},
		{name: "conflict sentinel", err: fmt.Errorf("cas: %w", ErrStatusConflict), textCode: PostworkErrorConflict, status: http.StatusConflict},
		{name: "deadline", err: context.DeadlineExceeded, textCode: PostworkErrorTransport, status: http.StatusBadGateway},
		{name: "store unavailable", err: ErrStoreUnavailable, textCode: PostworkErrorFatal, status: http.StatusInternalServerError},
		{name: "required message", err: stderrors.New("core: block id is required"), textCode: PostworkErrorValidation, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := postworkErrorMapper(tc.err)
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected %q, got %q", tc.textCode, mapped.TextCode)
			}
			if mapped.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, mapped.Code)
			}
		})
	}
}

func TestPostworkErrorMapper_PreservesRichErrors(t *testing.T) {
	rich := goerrors.New("custom", goerrors.CategoryConflict).WithTextCode("CUSTOM")
	mapped := postworkErrorMapper(rich)
	if mapped.TextCode != "CUSTOM" {
		t.Fatalf("expected text code preserved, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusConflict {
		t.Fatalf("expected conflict status filled in, got %d", mapped.Code)
	}
}

func TestErrorPredicates(t *testing.T) {
	if !IsValidation(ValidationError("bad", goerrors.FieldError{Field: "x", Message: "required"})) {
		t.Fatalf("expected validation predicate")
	}
	if !IsNotFound(NotFoundError("missing", ErrWorkNotFound)) {
		t.Fatalf("expected not found predicate")
	}
	if !IsConflict(fmt.Errorf("wrapped: %w", ConflictError("race", ErrStatusConflict))) {
		t.Fatalf("expected conflict predicate through wrapping")
	}
	if !IsTransport(TransportError("timeout", context.DeadlineExceeded)) {
		t.Fatalf("expected transport predicate")
	}
	if !IsFatal(FatalError("down", nil)) {
		t.Fatalf("expected fatal predicate")
	}
	if IsFatal(stderrors.New("plain")) || IsValidation(nil) {
		t.Fatalf("expected plain errors to match no class")
	}
}

func TestServiceMethods_MapErrorsToStableCodes(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.GetBlock(context.Background(), "")
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != PostworkErrorValidation {
		t.Fatalf("expected validation text code, got %q", richErr.TextCode)
	}

	_, err = svc.GetBlock(context.Background(), "missing")
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != PostworkErrorNotFound || richErr.Code != http.StatusNotFound {
		t.Fatalf("expected not found envelope, got %q/%d", richErr.TextCode, richErr.Code)
	}
}
