package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const defaultCallbackFailureMessage = "The webhook reported a failure without a message."

func NormalizeCallbackStatus(value string) CallbackStatus {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "completed", "complete", "success", "succeeded":
		return CallbackStatusCompleted
	case "failed", "failure", "error":
		return CallbackStatusFailed
	default:
		return CallbackStatus(strings.TrimSpace(strings.ToLower(value)))
	}
}

// Validate checks the callback against the block it addresses.
func (r CallbackResult) Validate(blockID string) error {
	var fields []goerrors.FieldError
	blockID = strings.TrimSpace(blockID)
	if blockID == "" {
		fields = append(fields, goerrors.FieldError{Field: "block_id", Message: "required"})
	}
	if bodyID := strings.TrimSpace(r.BlockID); bodyID != "" && blockID != "" && bodyID != blockID {
		fields = append(fields, goerrors.FieldError{
			Field:   "block_id",
			Message: fmt.Sprintf("%s: %q does not match %q", ErrCallbackBlockMismatch, bodyID, blockID),
		})
	}
	switch NormalizeCallbackStatus(string(r.Status)) {
	case CallbackStatusCompleted:
		if r.PostID <= 0 {
			fields = append(fields, goerrors.FieldError{Field: "post_id", Message: ErrCallbackPostIDRequired.Error()})
		}
	case CallbackStatusFailed:
	default:
		fields = append(fields, goerrors.FieldError{
			Field:   "status",
			Message: fmt.Sprintf("%s: %q", ErrCallbackStatusUnsupported, r.Status),
		})
	}
	if len(fields) == 0 {
		return nil
	}
	return ValidationError("core: callback payload is invalid", fields...)
}

// Ingest applies a worker callback. Only a processing block is transitioned;
// callbacks for blocks in any other status are acknowledged without change.
func (s *Service) Ingest(ctx context.Context, blockID string, callback CallbackResult) (result IngestResult, err error) {
	startedAt := time.Now().UTC()
	blockID = strings.TrimSpace(blockID)
	if blockID == "" {
		blockID = strings.TrimSpace(callback.BlockID)
	}
	fields := map[string]any{
		"block_id":        blockID,
		"callback_status": string(callback.Status),
	}
	defer func() {
		fields["applied"] = result.Applied
		s.observeOperation(ctx, startedAt, "ingest", err, fields)
	}()

	if err = s.requireStore(); err != nil {
		return IngestResult{}, err
	}
	if err = callback.Validate(blockID); err != nil {
		return IngestResult{}, err
	}
	status := NormalizeCallbackStatus(string(callback.Status))

	block, err := s.store.GetBlock(ctx, blockID)
	if err != nil {
		err = s.mapLookupError(err, "block", blockID)
		return IngestResult{}, err
	}
	fields["work_id"] = block.WorkID
	fields["block_status"] = string(block.Status)
	if block.Status != BlockStatusProcessing {
		return IngestResult{Block: block, Applied: false}, nil
	}

	now := s.clock()
	next, update := callbackTransition(status, callback, now)
	updated, casErr := s.store.CASBlockStatus(ctx, block.ID, BlockStatusProcessing, next, update)
	if casErr != nil {
		if errors.Is(casErr, ErrStatusConflict) {
			current, getErr := s.store.GetBlock(ctx, block.ID)
			if getErr != nil {
				current = block
			}
			fields["block_status"] = string(current.Status)
			return IngestResult{Block: current, Applied: false}, nil
		}
		err = s.mapCASError(casErr, "core: block "+block.ID+" changed during callback")
		return IngestResult{}, err
	}
	fields["block_status"] = string(updated.Status)
	return IngestResult{Block: updated, Applied: true}, nil
}

func callbackTransition(status CallbackStatus, callback CallbackResult, now time.Time) (BlockStatus, BlockUpdate) {
	if status == CallbackStatusCompleted {
		postID := callback.PostID
		cleared := ""
		return BlockStatusCompleted, BlockUpdate{
			ErrorMessage: &cleared,
			PostID:       &postID,
			CompletedAt:  &now,
		}
	}
	message := strings.TrimSpace(callback.ErrorMessage)
	if message == "" {
		message = defaultCallbackFailureMessage
	}
	return BlockStatusFailed, BlockUpdate{
		ErrorMessage: &message,
		CompletedAt:  &now,
	}
}
