package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-postwork/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const (
	workCacheKeyPrefix    = "go-postwork::work::v1"
	webhookCacheKeyPrefix = "go-postwork::webhook::v1"
)

// CachedUnitStore serves work and webhook reads from a cache. Blocks always
// hit the base store since their status moves under CAS.
type CachedUnitStore struct {
	base  core.UnitStore
	cache repositorycache.CacheService
}

func NewCachedUnitStore(base core.UnitStore, cacheService repositorycache.CacheService) (*CachedUnitStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base unit store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: lookup cache service is required")
	}
	return &CachedUnitStore{base: base, cache: cacheService}, nil
}

// WorkCacheKey returns go-postwork::work::v1::<id> with the id URL-path escaped.
func WorkCacheKey(id string) (string, error) {
	return lookupCacheKey(workCacheKeyPrefix, id)
}

// WebhookCacheKey returns go-postwork::webhook::v1::<id> with the id URL-path escaped.
func WebhookCacheKey(id string) (string, error) {
	return lookupCacheKey(webhookCacheKeyPrefix, id)
}

func lookupCacheKey(prefix string, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("sqlstore: cache key id is required")
	}
	return prefix + "::" + url.PathEscape(id), nil
}

func (s *CachedUnitStore) GetWork(ctx context.Context, id string) (core.Work, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Work{}, fmt.Errorf("sqlstore: cached unit store is not configured")
	}
	key, err := WorkCacheKey(id)
	if err != nil {
		return s.base.GetWork(ctx, id)
	}
	work, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.Work, error) {
		return s.base.GetWork(ctx, id)
	})
	if err != nil {
		return core.Work{}, err
	}
	return core.CloneWork(work), nil
}

func (s *CachedUnitStore) GetWebhook(ctx context.Context, id string) (core.Webhook, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Webhook{}, fmt.Errorf("sqlstore: cached unit store is not configured")
	}
	key, err := WebhookCacheKey(id)
	if err != nil {
		return s.base.GetWebhook(ctx, id)
	}
	return repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.Webhook, error) {
		return s.base.GetWebhook(ctx, id)
	})
}

func (s *CachedUnitStore) GetBlock(ctx context.Context, id string) (core.Block, error) {
	return s.base.GetBlock(ctx, id)
}

func (s *CachedUnitStore) CASBlockStatus(
	ctx context.Context,
	id string,
	expected core.BlockStatus,
	next core.BlockStatus,
	update core.BlockUpdate,
) (core.Block, error) {
	return s.base.CASBlockStatus(ctx, id, expected, next, update)
}

func (s *CachedUnitStore) ListBlocksByWork(ctx context.Context, workID string) ([]core.Block, error) {
	return s.base.ListBlocksByWork(ctx, workID)
}

func (s *CachedUnitStore) ListBlocks(ctx context.Context, filter core.BlockListFilter) (core.BlockPage, error) {
	return s.base.ListBlocks(ctx, filter)
}

func (s *CachedUnitStore) CreateWork(ctx context.Context, work core.Work) (core.Work, error) {
	admin, err := s.admin()
	if err != nil {
		return core.Work{}, err
	}
	created, err := admin.CreateWork(ctx, work)
	if err != nil {
		return core.Work{}, err
	}
	if err := s.invalidate(ctx, WorkCacheKey, created.ID); err != nil {
		return core.Work{}, err
	}
	return created, nil
}

func (s *CachedUnitStore) CreateWebhook(ctx context.Context, webhook core.Webhook) (core.Webhook, error) {
	admin, err := s.admin()
	if err != nil {
		return core.Webhook{}, err
	}
	created, err := admin.CreateWebhook(ctx, webhook)
	if err != nil {
		return core.Webhook{}, err
	}
	if err := s.invalidate(ctx, WebhookCacheKey, created.ID); err != nil {
		return core.Webhook{}, err
	}
	return created, nil
}

func (s *CachedUnitStore) CreateBlock(ctx context.Context, block core.Block) (core.Block, error) {
	admin, err := s.admin()
	if err != nil {
		return core.Block{}, err
	}
	return admin.CreateBlock(ctx, block)
}

func (s *CachedUnitStore) DeleteWork(ctx context.Context, id string) error {
	admin, err := s.admin()
	if err != nil {
		return err
	}
	if err := admin.DeleteWork(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, WorkCacheKey, id)
}

func (s *CachedUnitStore) admin() (core.AdminStore, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached unit store is not configured")
	}
	admin, ok := s.base.(core.AdminStore)
	if !ok {
		return nil, fmt.Errorf("sqlstore: base unit store %T does not manage records", s.base)
	}
	return admin, nil
}

func (s *CachedUnitStore) invalidate(ctx context.Context, keyFn func(string) (string, error), id string) error {
	key, err := keyFn(id)
	if err != nil {
		return nil
	}
	return s.cache.Delete(ctx, key)
}
