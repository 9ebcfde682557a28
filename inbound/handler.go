package inbound

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-postwork/core"
	"github.com/goliatone/go-postwork/webhooks"
)

const defaultMaxRequestBytes = int64(64 << 10)

type CallbackProcessor interface {
	Process(ctx context.Context, req webhooks.CallbackRequest) (core.IngestResult, error)
}

// Handler serves dispatch, callback and block lookup routes.
type Handler struct {
	Service         core.PostworkService
	Callbacks       CallbackProcessor
	Prefix          string
	MaxRequestBytes int64
	Logger          core.Logger
}

func NewHandler(service core.PostworkService, callbacks CallbackProcessor, prefix string) *Handler {
	return &Handler{
		Service:         service,
		Callbacks:       callbacks,
		Prefix:          prefix,
		MaxRequestBytes: defaultMaxRequestBytes,
	}
}

// Register mounts every route on mux under the handler prefix.
func (h *Handler) Register(mux *http.ServeMux) error {
	if h == nil || mux == nil {
		return inboundInternal("inbound: handler and mux are required", nil)
	}
	if h.Service == nil {
		return inboundInternal("inbound: service is required", nil)
	}
	prefix := normalizePrefix(h.Prefix)
	mux.HandleFunc("POST "+prefix+"/callback", h.handleCallback)
	mux.HandleFunc("POST "+prefix+"/works/{work_id}/blocks/{block_id}/dispatch", h.handleDispatch)
	mux.HandleFunc("GET "+prefix+"/works/{work_id}/blocks", h.handleListBlocks)
	mux.HandleFunc("GET "+prefix+"/blocks/{block_id}", h.handleGetBlock)
	return nil
}

func (h *Handler) Routes() (http.Handler, error) {
	mux := http.NewServeMux()
	if err := h.Register(mux); err != nil {
		return nil, err
	}
	return mux, nil
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if h.Callbacks == nil {
		h.writeError(w, r, inboundInternal("inbound: callback processor is not configured", nil))
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Callbacks.Process(r.Context(), webhooks.CallbackRequest{
		BlockID: strings.TrimSpace(r.URL.Query().Get("block_id")),
		Headers: r.Header.Clone(),
		Body:    body,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CallbackResponse{
		Applied: result.Applied,
		Block:   NewBlockResponse(result.Block),
	})
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	req := core.DispatchRequest{
		WorkID:    strings.TrimSpace(r.PathValue("work_id")),
		BlockID:   strings.TrimSpace(r.PathValue("block_id")),
		WebhookID: strings.TrimSpace(r.URL.Query().Get("webhook_id")),
	}
	async, err := queryBool(r, "async")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if async {
		result, enqueueErr := h.Service.EnqueueDispatch(r.Context(), req)
		if enqueueErr != nil {
			h.writeError(w, r, enqueueErr)
			return
		}
		writeJSON(w, http.StatusAccepted, EnqueueResponse{
			BlockID:        result.BlockID,
			JobID:          result.JobID,
			IdempotencyKey: result.IdempotencyKey,
		})
		return
	}

	result, err := h.Service.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DispatchResponse{
		Block:      NewBlockResponse(result.Block),
		WebhookID:  result.WebhookID,
		StatusCode: result.StatusCode,
	})
}

func (h *Handler) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Service.ListBlocks(r.Context(), core.BlockListFilter{
		WorkID:  strings.TrimSpace(r.PathValue("work_id")),
		Status:  core.NormalizeBlockStatus(r.URL.Query().Get("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewBlockPageResponse(result))
}

func (h *Handler) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	block, err := h.Service.GetBlock(r.Context(), strings.TrimSpace(r.PathValue("block_id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewBlockResponse(block))
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := h.MaxRequestBytes
	if limit <= 0 {
		limit = defaultMaxRequestBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, inboundBodyTooLarge(limit)
		}
		return nil, inboundBodyUnreadable(err)
	}
	return body, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorEnvelope(err)
	if status >= http.StatusInternalServerError && h.Logger != nil {
		h.Logger.WithContext(r.Context()).Error("inbound request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, body)
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, inboundBadInput("inbound: "+key+" must be a non-negative integer", map[string]any{key: raw})
	}
	return value, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, inboundBadInput("inbound: "+key+" must be a boolean", map[string]any{key: raw})
	}
	return value, nil
}
