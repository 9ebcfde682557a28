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

type WorkStore struct {
	db   *bun.DB
	repo repository.Repository[*workRecord]
	now  func() time.Time
}

func NewWorkStore(db *bun.DB) (*WorkStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*workRecord](db, recordHandlers[workRecord]())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid work repository wiring: %w", err)
		}
	}
	return &WorkStore{db: db, repo: repo, now: utcNow}, nil
}

func (s *WorkStore) Create(ctx context.Context, work core.Work) (core.Work, error) {
	if s == nil || s.repo == nil {
		return core.Work{}, fmt.Errorf("sqlstore: work store is not configured")
	}
	work.Image = work.Image.Normalize()
	if err := work.Image.Validate(); err != nil {
		return core.Work{}, err
	}
	work.ID = newRecordID(work.ID)
	record := newWorkRecord(work, s.now())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Work{}, err
	}
	return record.toDomain(), nil
}

func (s *WorkStore) Get(ctx context.Context, id string) (core.Work, error) {
	if s == nil || s.db == nil {
		return core.Work{}, fmt.Errorf("sqlstore: work store is not configured")
	}
	record := &workRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Work{}, fmt.Errorf("%w: id %q", core.ErrWorkNotFound, id)
		}
		return core.Work{}, err
	}
	return record.toDomain(), nil
}

func (s *WorkStore) List(ctx context.Context) ([]core.Work, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: work store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("created_at ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]core.Work, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// Delete removes the work together with its blocks.
func (s *WorkStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: work store is not configured")
	}
	id = strings.TrimSpace(id)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*blockRecord)(nil)).
			Where("work_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().
			Model((*workRecord)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: id %q", core.ErrWorkNotFound, id)
		}
		return nil
	})
}

func utcNow() time.Time {
	return time.Now().UTC()
}
