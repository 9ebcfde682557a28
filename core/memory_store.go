package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryUnitStore keeps works, webhooks and blocks in process memory. Status
// changes compare and set under a single mutex.
type MemoryUnitStore struct {
	mu       sync.RWMutex
	works    map[string]Work
	webhooks map[string]Webhook
	blocks   map[string]Block
	now      func() time.Time
}

func NewMemoryUnitStore() *MemoryUnitStore {
	return &MemoryUnitStore{
		works:    map[string]Work{},
		webhooks: map[string]Webhook{},
		blocks:   map[string]Block{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryUnitStore) CreateWork(_ context.Context, work Work) (Work, error) {
	if s == nil {
		return Work{}, fmt.Errorf("%w: memory store is nil", ErrStoreUnavailable)
	}
	work.Image = work.Image.Normalize()
	if err := work.Image.Validate(); err != nil {
		return Work{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record := CloneWork(work)
	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.works[record.ID] = record
	return CloneWork(record), nil
}

func (s *MemoryUnitStore) CreateWebhook(_ context.Context, webhook Webhook) (Webhook, error) {
	if s == nil {
		return Webhook{}, fmt.Errorf("%w: memory store is nil", ErrStoreUnavailable)
	}
	if strings.TrimSpace(webhook.URL) == "" {
		return Webhook{}, fmt.Errorf("core: webhook url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record := webhook
	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.webhooks[record.ID] = record
	return record, nil
}

func (s *MemoryUnitStore) CreateBlock(_ context.Context, block Block) (Block, error) {
	if s == nil {
		return Block{}, fmt.Errorf("%w: memory store is nil", ErrStoreUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	workID := strings.TrimSpace(block.WorkID)
	if _, ok := s.works[workID]; !ok {
		return Block{}, ErrWorkNotFound
	}
	record := CloneBlock(block)
	record.WorkID = workID
	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = BlockStatusPending
	}
	if !record.Status.Valid() {
		return Block{}, fmt.Errorf("core: invalid block status %q", record.Status)
	}
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.blocks[record.ID] = record
	return CloneBlock(record), nil
}

// DeleteWork removes the work and every block it owns.
func (s *MemoryUnitStore) DeleteWork(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("%w: memory store is nil", ErrStoreUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	if _, ok := s.works[id]; !ok {
		return ErrWorkNotFound
	}
	delete(s.works, id)
	for blockID, block := range s.blocks {
		if block.WorkID == id {
			delete(s.blocks, blockID)
		}
	}
	return nil
}

func (s *MemoryUnitStore) GetWork(_ context.Context, id string) (Work, error) {
	if s == nil {
		return Work{}, fmt.Errorf("%w: memory store is nil", ErrStoreUnavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	work, ok := s.works[strings.TrimSpace(id)]
	if !ok {
		return Work{}, ErrWorkNotFound
	}
	return CloneWork(work), nil
}

func (s *MemoryUnitStore) GetWebhook(_ context.Context, id string) (Webhook, error) {
	if s == nil {
		return Webhook{}, fmt.Errorf("%w: memory store is nil", ErrStoreUnavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	webhook, ok := s.webhooks[strings.TrimSpace(id)]
	if !ok {
		return Webhook{}, ErrWebhookNotFound
	}
	return webhook, nil
}

func (s *MemoryUnitStore) GetBlock(_ context.Context, id string) (Block, error) {
	if s == nil {
		return Block{}, fmt.Errorf("%w: memory store is nil", ErrStoreUnavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, ok := s.blocks[strings.TrimSpace(id)]
	if !ok {
		return Block{}, ErrBlockNotFound
	}
	return CloneBlock(block), nil
}

func (s *MemoryUnitStore) CASBlockStatus(
	_ context.Context,
	id string,
	expected BlockStatus,
	next BlockStatus,
	update BlockUpdate,
) (Block, error) {
	if s == nil {
		return Block{}, fmt.Errorf("%w: memory store is nil", ErrStoreUnavailable)
	}
	if !BlockTransitionAllowed(expected, next) {
		return Block{}, fmt.Errorf("%w: %s -> %s", ErrInvalidBlockStatusTransition, expected, next)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	block, ok := s.blocks[strings.TrimSpace(id)]
	if !ok {
		return Block{}, ErrBlockNotFound
	}
	if block.Status != expected {
		return Block{}, fmt.Errorf("%w: block %s is %s, expected %s", ErrStatusConflict, block.ID, block.Status, expected)
	}
	update.Apply(&block, next, s.now())
	s.blocks[block.ID] = block
	return CloneBlock(block), nil
}

func (s *MemoryUnitStore) ListBlocksByWork(_ context.Context, workID string) ([]Block, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: memory store is nil", ErrStoreUnavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	workID = strings.TrimSpace(workID)
	out := make([]Block, 0)
	for _, block := range s.blocks {
		if block.WorkID == workID {
			out = append(out, CloneBlock(block))
		}
	}
	sortBlocks(out)
	return out, nil
}

func (s *MemoryUnitStore) ListBlocks(_ context.Context, filter BlockListFilter) (BlockPage, error) {
	if s == nil {
		return BlockPage{}, fmt.Errorf("%w: memory store is nil", ErrStoreUnavailable)
	}
	filter = filter.Normalize()
	s.mu.RLock()
	matched := make([]Block, 0)
	for _, block := range s.blocks {
		if filter.WorkID != "" && block.WorkID != filter.WorkID {
			continue
		}
		if filter.Status != "" && block.Status != filter.Status {
			continue
		}
		matched = append(matched, CloneBlock(block))
	}
	s.mu.RUnlock()

	sortBlocks(matched)
	total := len(matched)
	offset := filter.Offset()
	if offset > total {
		offset = total
	}
	end := offset + filter.PerPage
	if end > total {
		end = total
	}
	return BlockPage{
		Items:   matched[offset:end],
		Page:    filter.Page,
		PerPage: filter.PerPage,
		Total:   total,
		HasNext: end < total,
	}, nil
}

// sortBlocks orders newest first with the id as tie breaker.
func sortBlocks(blocks []Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if !blocks[i].CreatedAt.Equal(blocks[j].CreatedAt) {
			return blocks[i].CreatedAt.After(blocks[j].CreatedAt)
		}
		return blocks[i].ID < blocks[j].ID
	})
}

var (
	_ UnitStore  = (*MemoryUnitStore)(nil)
	_ AdminStore = (*MemoryUnitStore)(nil)
)
