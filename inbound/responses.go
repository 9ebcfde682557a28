package inbound

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/goliatone/go-postwork/core"
)

type BlockResponse struct {
	ID                string                        `json:"id"`
	WorkID            string                        `json:"work_id"`
	ArticleURL        string                        `json:"article_url,omitempty"`
	Keyword           string                        `json:"keyword,omitempty"`
	Taxonomies        map[string][]string           `json:"taxonomies,omitempty"`
	Fields            map[string]core.FieldOverride `json:"fields,omitempty"`
	FeatureImageID    int64                         `json:"feature_image_id,omitempty"`
	FeatureImageTitle string                        `json:"feature_image_title,omitempty"`
	Status            string                        `json:"status"`
	ErrorMessage      string                        `json:"error_message,omitempty"`
	PostID            int64                         `json:"post_id,omitempty"`
	Attempts          int                           `json:"attempts"`
	DispatchedAt      *time.Time                    `json:"dispatched_at,omitempty"`
	CompletedAt       *time.Time                    `json:"completed_at,omitempty"`
	CreatedAt         time.Time                     `json:"created_at"`
	UpdatedAt         time.Time                     `json:"updated_at"`
}

type BlockPageResponse struct {
	Items   []BlockResponse `json:"items"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Total   int             `json:"total"`
	HasNext bool            `json:"has_next"`
}

type DispatchResponse struct {
	Block      BlockResponse `json:"block"`
	WebhookID  string        `json:"webhook_id"`
	StatusCode int           `json:"status_code"`
}

type EnqueueResponse struct {
	BlockID        string `json:"block_id"`
	JobID          string `json:"job_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type CallbackResponse struct {
	Applied bool          `json:"applied"`
	Block   BlockResponse `json:"block"`
}

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Category   string         `json:"category"`
	Code       int            `json:"code"`
	TextCode   string         `json:"text_code"`
	Message    string         `json:"message"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Validation []FieldError   `json:"validation,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewBlockResponse(block core.Block) BlockResponse {
	return BlockResponse{
		ID:                block.ID,
		WorkID:            block.WorkID,
		ArticleURL:        block.ArticleURL,
		Keyword:           block.Keyword,
		Taxonomies:        block.Taxonomies,
		Fields:            block.Fields,
		FeatureImageID:    block.FeatureImageID,
		FeatureImageTitle: block.FeatureImageTitle,
		Status:            string(block.Status),
		ErrorMessage:      block.ErrorMessage,
		PostID:            block.PostID,
		Attempts:          block.Attempts,
		DispatchedAt:      block.DispatchedAt,
		CompletedAt:       block.CompletedAt,
		CreatedAt:         block.CreatedAt,
		UpdatedAt:         block.UpdatedAt,
	}
}

func NewBlockPageResponse(page core.BlockPage) BlockPageResponse {
	items := make([]BlockResponse, 0, len(page.Items))
	for _, block := range page.Items {
		items = append(items, NewBlockResponse(block))
	}
	return BlockPageResponse{
		Items:   items,
		Page:    page.Page,
		PerPage: page.PerPage,
		Total:   page.Total,
		HasNext: page.HasNext,
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
