package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-postwork/core"
	"github.com/uptrace/bun"
)

type workRecord struct {
	bun.BaseModel `bun:"table:postwork_works,alias:pw"`

	ID           string                    `bun:"id,pk"`
	Title        string                    `bun:"title,notnull"`
	PostType     string                    `bun:"post_type,notnull"`
	PostStatus   string                    `bun:"post_status,notnull"`
	AuthorID     int64                     `bun:"author_id,notnull"`
	Instructions string                    `bun:"instructions,notnull"`
	Fields       map[string]core.FieldSpec `bun:"fields,type:jsonb,notnull"`
	Image        core.ImageConfig          `bun:"image_config,type:jsonb,notnull"`
	Taxonomies   map[string]bool           `bun:"taxonomies,type:jsonb,notnull"`
	DefaultTerms map[string][]string       `bun:"default_terms,type:jsonb,notnull"`
	WebhookID    *string                   `bun:"webhook_id"`
	CreatedAt    time.Time                 `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time                 `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookRecord struct {
	bun.BaseModel `bun:"table:postwork_webhooks,alias:pwh"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	URL       string    `bun:"url,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type blockRecord struct {
	bun.BaseModel `bun:"table:postwork_blocks,alias:pb"`

	ID                string                        `bun:"id,pk"`
	WorkID            string                        `bun:"work_id,notnull"`
	ArticleURL        string                        `bun:"article_url,notnull"`
	Keyword           string                        `bun:"keyword,notnull"`
	Taxonomies        map[string][]string           `bun:"taxonomies,type:jsonb,notnull"`
	Fields            map[string]core.FieldOverride `bun:"fields,type:jsonb,notnull"`
	FeatureImageID    int64                         `bun:"feature_image_id,notnull"`
	FeatureImageTitle string                        `bun:"feature_image_title,notnull"`
	Status            string                        `bun:"status,notnull"`
	ErrorMessage      string                        `bun:"error_message,notnull"`
	PostID            int64                         `bun:"post_id,notnull"`
	Attempts          int                           `bun:"attempts,notnull"`
	DispatchedAt      *time.Time                    `bun:"dispatched_at,nullzero"`
	CompletedAt       *time.Time                    `bun:"completed_at,nullzero"`
	CreatedAt         time.Time                     `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time                     `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newWorkRecord(work core.Work, now time.Time) *workRecord {
	work = core.CloneWork(work)
	record := &workRecord{
		ID:           strings.TrimSpace(work.ID),
		Title:        strings.TrimSpace(work.Title),
		PostType:     strings.TrimSpace(work.PostType),
		PostStatus:   strings.TrimSpace(work.PostStatus),
		AuthorID:     work.AuthorID,
		Instructions: work.Instructions,
		Fields:       work.Fields,
		Image:        work.Image,
		Taxonomies:   work.Taxonomies,
		DefaultTerms: work.DefaultTerms,
		CreatedAt:    work.CreatedAt.UTC(),
		UpdatedAt:    now,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if webhookID := strings.TrimSpace(work.WebhookID); webhookID != "" {
		record.WebhookID = &webhookID
	}
	if record.Fields == nil {
		record.Fields = map[string]core.FieldSpec{}
	}
	if record.Taxonomies == nil {
		record.Taxonomies = map[string]bool{}
	}
	if record.DefaultTerms == nil {
		record.DefaultTerms = map[string][]string{}
	}
	return record
}

func (r *workRecord) toDomain() core.Work {
	if r == nil {
		return core.Work{}
	}
	work := core.Work{
		ID:           r.ID,
		Title:        r.Title,
		PostType:     r.PostType,
		PostStatus:   r.PostStatus,
		AuthorID:     r.AuthorID,
		Instructions: r.Instructions,
		Fields:       r.Fields,
		Image:        r.Image,
		Taxonomies:   r.Taxonomies,
		DefaultTerms: r.DefaultTerms,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.WebhookID != nil {
		work.WebhookID = *r.WebhookID
	}
	return core.CloneWork(work)
}

func newWebhookRecord(webhook core.Webhook, now time.Time) *webhookRecord {
	record := &webhookRecord{
		ID:        strings.TrimSpace(webhook.ID),
		Name:      strings.TrimSpace(webhook.Name),
		URL:       strings.TrimSpace(webhook.URL),
		CreatedAt: webhook.CreatedAt.UTC(),
		UpdatedAt: now,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	return record
}

func (r *webhookRecord) toDomain() core.Webhook {
	if r == nil {
		return core.Webhook{}
	}
	return core.Webhook{
		ID:        r.ID,
		Name:      r.Name,
		URL:       r.URL,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newBlockRecord(block core.Block, now time.Time) *blockRecord {
	block = core.CloneBlock(block)
	status := block.Status
	if status == "" {
		status = core.BlockStatusPending
	}
	record := &blockRecord{
		ID:                strings.TrimSpace(block.ID),
		WorkID:            strings.TrimSpace(block.WorkID),
		ArticleURL:        block.ArticleURL,
		Keyword:           block.Keyword,
		Taxonomies:        block.Taxonomies,
		Fields:            block.Fields,
		FeatureImageID:    block.FeatureImageID,
		FeatureImageTitle: block.FeatureImageTitle,
		Status:            string(status),
		ErrorMessage:      block.ErrorMessage,
		PostID:            block.PostID,
		Attempts:          block.Attempts,
		DispatchedAt:      block.DispatchedAt,
		CompletedAt:       block.CompletedAt,
		CreatedAt:         block.CreatedAt.UTC(),
		UpdatedAt:         now,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.Taxonomies == nil {
		record.Taxonomies = map[string][]string{}
	}
	if record.Fields == nil {
		record.Fields = map[string]core.FieldOverride{}
	}
	return record
}

func (r *blockRecord) toDomain() core.Block {
	if r == nil {
		return core.Block{}
	}
	return core.CloneBlock(core.Block{
		ID:                r.ID,
		WorkID:            r.WorkID,
		ArticleURL:        r.ArticleURL,
		Keyword:           r.Keyword,
		Taxonomies:        r.Taxonomies,
		Fields:            r.Fields,
		FeatureImageID:    r.FeatureImageID,
		FeatureImageTitle: r.FeatureImageTitle,
		Status:            core.BlockStatus(r.Status),
		ErrorMessage:      r.ErrorMessage,
		PostID:            r.PostID,
		Attempts:          r.Attempts,
		DispatchedAt:      utcPointer(r.DispatchedAt),
		CompletedAt:       utcPointer(r.CompletedAt),
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	})
}

func utcPointer(input *time.Time) *time.Time {
	if input == nil || input.IsZero() {
		return nil
	}
	value := input.UTC()
	return &value
}
