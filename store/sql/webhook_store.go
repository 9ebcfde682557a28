package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-postwork/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type WebhookStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookRecord]
	now  func() time.Time
}

func NewWebhookStore(db *bun.DB) (*WebhookStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookRecord](db, recordHandlers[webhookRecord]())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook repository wiring: %w", err)
		}
	}
	return &WebhookStore{db: db, repo: repo, now: utcNow}, nil
}

func (s *WebhookStore) Create(ctx context.Context, webhook core.Webhook) (core.Webhook, error) {
	if s == nil || s.repo == nil {
		return core.Webhook{}, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	target := strings.TrimSpace(webhook.URL)
	if target == "" {
		return core.Webhook{}, fmt.Errorf("sqlstore: webhook url is required")
	}
	if parsed, err := url.Parse(target); err != nil || !parsed.IsAbs() {
		return core.Webhook{}, fmt.Errorf("sqlstore: webhook url %q is invalid", target)
	}
	webhook.ID = newRecordID(webhook.ID)
	record := newWebhookRecord(webhook, s.now())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Webhook{}, err
	}
	return record.toDomain(), nil
}

func (s *WebhookStore) Get(ctx context.Context, id string) (core.Webhook, error) {
	if s == nil || s.db == nil {
		return core.Webhook{}, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	record := &webhookRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Webhook{}, fmt.Errorf("%w: id %q", core.ErrWebhookNotFound, id)
		}
		return core.Webhook{}, err
	}
	return record.toDomain(), nil
}

func (s *WebhookStore) List(ctx context.Context) ([]core.Webhook, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: webhook store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("name ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]core.Webhook, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
