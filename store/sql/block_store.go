package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-postwork/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type BlockStore struct {
	db   *bun.DB
	repo repository.Repository[*blockRecord]
	now  func() time.Time
}

func NewBlockStore(db *bun.DB) (*BlockStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*blockRecord](db, recordHandlers[blockRecord]())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid block repository wiring: %w", err)
		}
	}
	return &BlockStore{db: db, repo: repo, now: utcNow}, nil
}

func (s *BlockStore) Create(ctx context.Context, block core.Block) (core.Block, error) {
	if s == nil || s.repo == nil {
		return core.Block{}, fmt.Errorf("sqlstore: block store is not configured")
	}
	if block.Status != "" && !block.Status.Valid() {
		return core.Block{}, fmt.Errorf("sqlstore: invalid block status %q", block.Status)
	}
	workID := strings.TrimSpace(block.WorkID)
	exists, err := s.db.NewSelect().
		Model((*workRecord)(nil)).
		Where("?TableAlias.id = ?", workID).
		Exists(ctx)
	if err != nil {
		return core.Block{}, err
	}
	if !exists {
		return core.Block{}, fmt.Errorf("%w: id %q", core.ErrWorkNotFound, workID)
	}

	block.ID = newRecordID(block.ID)
	record := newBlockRecord(block, s.now())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Block{}, err
	}
	return record.toDomain(), nil
}

func (s *BlockStore) Get(ctx context.Context, id string) (core.Block, error) {
	if s == nil || s.db == nil {
		return core.Block{}, fmt.Errorf("sqlstore: block store is not configured")
	}
	return getBlock(ctx, s.db, id)
}

// CompareAndSetStatus applies update only while the stored status still
// equals expected. Zero affected rows means the block is gone or moved on.
func (s *BlockStore) CompareAndSetStatus(
	ctx context.Context,
	id string,
	expected core.BlockStatus,
	next core.BlockStatus,
	update core.BlockUpdate,
) (core.Block, error) {
	if s == nil || s.db == nil {
		return core.Block{}, fmt.Errorf("sqlstore: block store is not configured")
	}
	if !core.BlockTransitionAllowed(expected, next) {
		return core.Block{}, fmt.Errorf("%w: %s -> %s", core.ErrInvalidBlockStatusTransition, expected, next)
	}
	id = strings.TrimSpace(id)

	var out core.Block
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := tx.NewUpdate().
			Model((*blockRecord)(nil)).
			Set("status = ?", string(next)).
			Set("updated_at = ?", s.now())
		if update.ErrorMessage != nil {
			query = query.Set("error_message = ?", *update.ErrorMessage)
		}
		if update.PostID != nil {
			query = query.Set("post_id = ?", *update.PostID)
		}
		if update.DispatchedAt != nil {
			query = query.Set("dispatched_at = ?", update.DispatchedAt.UTC())
		}
		if update.CompletedAt != nil {
			query = query.Set("completed_at = ?", update.CompletedAt.UTC())
		}
		if update.IncrementAttempt {
			query = query.Set("attempts = attempts + 1")
		}
		res, err := query.
			Where("id = ?", id).
			Where("status = ?", string(expected)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := rowsAffected(res)
		if err != nil {
			return err
		}
		current, err := getBlock(ctx, tx, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: block %s is %s, expected %s", core.ErrStatusConflict, id, current.Status, expected)
		}
		out = current
		return nil
	})
	if err != nil {
		return core.Block{}, err
	}
	return out, nil
}

func (s *BlockStore) ListByWork(ctx context.Context, workID string) ([]core.Block, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: block store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("work_id", "=", strings.TrimSpace(workID)),
		repository.SelectRawProcessor(newestFirst),
	)
	if err != nil {
		return nil, err
	}
	return blocksToDomain(records), nil
}

func (s *BlockStore) List(ctx context.Context, filter core.BlockListFilter) (core.BlockPage, error) {
	if s == nil || s.repo == nil {
		return core.BlockPage{}, fmt.Errorf("sqlstore: block store is not configured")
	}
	filter = filter.Normalize()
	offset := filter.Offset()

	selectors := []repository.SelectCriteria{
		repository.SelectRawProcessor(newestFirst),
		repository.SelectPaginate(filter.PerPage, offset),
	}
	if filter.WorkID != "" {
		selectors = append(selectors, repository.SelectBy("work_id", "=", filter.WorkID))
	}
	if filter.Status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", string(filter.Status)))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.BlockPage{}, err
	}
	items := blocksToDomain(records)
	return core.BlockPage{
		Items:   items,
		Page:    filter.Page,
		PerPage: filter.PerPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

func getBlock(ctx context.Context, db bun.IDB, id string) (core.Block, error) {
	record := &blockRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Block{}, fmt.Errorf("%w: id %q", core.ErrBlockNotFound, id)
		}
		return core.Block{}, err
	}
	return record.toDomain(), nil
}

func newestFirst(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("?TableAlias.created_at DESC").OrderExpr("?TableAlias.id ASC")
}

func blocksToDomain(records []*blockRecord) []core.Block {
	out := make([]core.Block, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out
}
