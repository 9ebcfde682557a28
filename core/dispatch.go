package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const maxDiagnosticBodyChars = 200

// Dispatch sends one block to its webhook. The block is moved to processing
// before the request is issued and to failed when delivery does not succeed.
func (s *Service) Dispatch(ctx context.Context, req DispatchRequest) (result DispatchResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"work_id":    strings.TrimSpace(req.WorkID),
		"block_id":   strings.TrimSpace(req.BlockID),
		"webhook_id": strings.TrimSpace(req.WebhookID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "dispatch", err, fields)
	}()

	if err = s.requireStore(); err != nil {
		return DispatchResult{}, err
	}
	if err = validateDispatchRequest(req); err != nil {
		return DispatchResult{}, err
	}

	work, block, webhook, err := s.loadDispatchTargets(ctx, req)
	if err != nil {
		return DispatchResult{}, err
	}
	fields["webhook_id"] = webhook.ID
	fields["block_status"] = string(block.Status)

	switch block.Status {
	case BlockStatusPending, BlockStatusFailed:
	case BlockStatusProcessing, BlockStatusCompleted:
		err = ConflictError(
			fmt.Sprintf("core: block %s is %s and cannot be dispatched", block.ID, block.Status),
			ErrInvalidBlockStatusTransition,
		)
		return DispatchResult{}, err
	default:
		err = FatalError(fmt.Sprintf("core: block %s has unknown status %q", block.ID, block.Status), nil)
		return DispatchResult{}, err
	}

	payload, err := s.payloadBuilder.Build(ctx, &work, &block, &webhook)
	if err != nil {
		err = s.mapError(err)
		return DispatchResult{}, err
	}
	body, err := payload.JSON()
	if err != nil {
		err = FatalError("core: encode dispatch payload", err)
		return DispatchResult{}, err
	}
	if s.sender == nil {
		err = FatalError("core: webhook sender is not configured", nil)
		return DispatchResult{}, err
	}

	now := s.clock()
	cleared := ""
	block, err = s.store.CASBlockStatus(ctx, block.ID, block.Status, BlockStatusProcessing, BlockUpdate{
		ErrorMessage:     &cleared,
		DispatchedAt:     &now,
		IncrementAttempt: true,
	})
	if err != nil {
		err = s.mapCASError(err, fmt.Sprintf("core: block %s is already being dispatched", req.BlockID))
		return DispatchResult{}, err
	}
	fields["block_status"] = string(block.Status)
	fields["attempts"] = block.Attempts

	// The request outlives caller cancellation; the sender timeout bounds it.
	sendCtx := context.WithoutCancel(ctx)
	response, sendErr := s.sender.Send(sendCtx, WebhookRequest{
		URL:  webhook.URL,
		Body: body,
		Headers: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	result = DispatchResult{
		Block:        block,
		WebhookID:    webhook.ID,
		StatusCode:   response.StatusCode,
		ResponseBody: response.Body,
	}
	fields["status_code"] = response.StatusCode

	if sendErr == nil && response.StatusCode >= 200 && response.StatusCode < 300 {
		return result, nil
	}

	message := dispatchFailureMessage(webhook, response, sendErr)
	failed, failErr := s.store.CASBlockStatus(sendCtx, block.ID, BlockStatusProcessing, BlockStatusFailed, BlockUpdate{
		ErrorMessage: &message,
	})
	if failErr != nil {
		if !errors.Is(failErr, ErrStatusConflict) {
			err = FatalError("core: record dispatch failure for block "+block.ID, failErr)
			return result, err
		}
		// A callback finalized the block while the request was in flight.
		if current, getErr := s.store.GetBlock(sendCtx, block.ID); getErr == nil {
			result.Block = current
		}
	} else {
		result.Block = failed
	}
	fields["block_status"] = string(result.Block.Status)

	source := sendErr
	if source == nil {
		source = fmt.Errorf("core: webhook responded with status %d", response.StatusCode)
	}
	err = TransportError(message, source).
		WithMetadata(map[string]any{
			"block_id":    block.ID,
			"webhook_id":  webhook.ID,
			"status_code": response.StatusCode,
		})
	return result, err
}

func validateDispatchRequest(req DispatchRequest) error {
	var fields []goerrors.FieldError
	if strings.TrimSpace(req.WorkID) == "" {
		fields = append(fields, goerrors.FieldError{Field: "work_id", Message: "required"})
	}
	if strings.TrimSpace(req.BlockID) == "" {
		fields = append(fields, goerrors.FieldError{Field: "block_id", Message: "required"})
	}
	if len(fields) == 0 {
		return nil
	}
	return ValidationError("core: dispatch request is incomplete", fields...)
}

// loadDispatchTargets resolves the work, block and webhook without touching
// block state.
func (s *Service) loadDispatchTargets(ctx context.Context, req DispatchRequest) (Work, Block, Webhook, error) {
	work, err := s.store.GetWork(ctx, strings.TrimSpace(req.WorkID))
	if err != nil {
		return Work{}, Block{}, Webhook{}, s.mapLookupError(err, "work", req.WorkID)
	}
	block, err := s.store.GetBlock(ctx, strings.TrimSpace(req.BlockID))
	if err != nil {
		return Work{}, Block{}, Webhook{}, s.mapLookupError(err, "block", req.BlockID)
	}
	if block.WorkID != work.ID {
		return Work{}, Block{}, Webhook{}, NotFoundError(
			fmt.Sprintf("core: block %s does not belong to work %s", block.ID, work.ID),
			fmt.Errorf("%w: %w", ErrBlockNotFound, ErrBlockWorkMismatch),
		)
	}

	webhookID := strings.TrimSpace(req.WebhookID)
	if webhookID == "" {
		webhookID = strings.TrimSpace(work.WebhookID)
	}
	if webhookID == "" {
		return Work{}, Block{}, Webhook{}, ValidationError(
			fmt.Sprintf("core: work %s has no webhook and none was requested", work.ID),
			goerrors.FieldError{Field: "webhook_id", Message: "required"},
		)
	}
	webhook, err := s.store.GetWebhook(ctx, webhookID)
	if err != nil {
		return Work{}, Block{}, Webhook{}, s.mapLookupError(err, "webhook", webhookID)
	}
	return work, block, webhook, nil
}

func (s *Service) mapLookupError(err error, kind string, id string) error {
	if errors.Is(err, ErrNotFound) {
		return NotFoundError(fmt.Sprintf("core: %s %s not found", kind, strings.TrimSpace(id)), err)
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return s.mapError(err)
	}
	return FatalError(fmt.Sprintf("core: load %s %s", kind, strings.TrimSpace(id)), err)
}

func (s *Service) mapCASError(err error, conflictMessage string) error {
	switch {
	case errors.Is(err, ErrStatusConflict):
		return ConflictError(conflictMessage, err)
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error(), err)
	default:
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return s.mapError(err)
		}
		return FatalError("core: block status update failed", err)
	}
}

// dispatchFailureMessage renders the diagnostic stored on a failed block.
func dispatchFailureMessage(webhook Webhook, response WebhookResponse, sendErr error) string {
	target := strings.TrimSpace(webhook.Name)
	if target == "" {
		target = webhook.URL
	}
	if sendErr != nil {
		return fmt.Sprintf("Dispatch to webhook %q failed: %s.", target, strings.TrimRight(sendErr.Error(), "."))
	}
	message := fmt.Sprintf(
		"Dispatch to webhook %q failed with HTTP status %d (%s).",
		target,
		response.StatusCode,
		http.StatusText(response.StatusCode),
	)
	if snippet := responseSnippet(response.Body); snippet != "" {
		message += fmt.Sprintf(" The webhook replied %q.", snippet)
	}
	return message
}

func responseSnippet(body []byte) string {
	snippet := []rune(strings.Join(strings.Fields(string(body)), " "))
	if len(snippet) > maxDiagnosticBodyChars {
		return string(snippet[:maxDiagnosticBodyChars]) + "..."
	}
	return string(snippet)
}
