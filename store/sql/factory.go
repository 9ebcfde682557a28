package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-postwork/core"
)

// RepositoryFactory lazily binds the postwork stores to a bun database. It
// satisfies core.RepositoryStoreFactory so core.WithRepositoryFactory can
// build the stores from a persistence client at service construction.
type RepositoryFactory struct {
	db    *bun.DB
	units *UnitStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

// NewRepositoryFactoryFromPersistence binds the stores to a go-persistence-bun
// client right away.
func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or any client exposing DB() *bun.DB. Once
// bound, later calls return the existing stores.
func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.units != nil {
		return f, nil
	}
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	units, err := newUnitStoreFromDB(db)
	if err != nil {
		return nil, err
	}
	f.db = db
	f.units = units
	return f, nil
}

func (f *RepositoryFactory) UnitStore() core.UnitStore {
	if f == nil || f.units == nil {
		return nil
	}
	return f.units
}

// AdminStore exposes the record management surface of the same unit store.
func (f *RepositoryFactory) AdminStore() core.AdminStore {
	if f == nil || f.units == nil {
		return nil
	}
	return f.units
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func newUnitStoreFromDB(db *bun.DB) (*UnitStore, error) {
	works, err := NewWorkStore(db)
	if err != nil {
		return nil, err
	}
	webhooks, err := NewWebhookStore(db)
	if err != nil {
		return nil, err
	}
	blocks, err := NewBlockStore(db)
	if err != nil {
		return nil, err
	}
	return NewUnitStore(works, webhooks, blocks)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: bun db is nil")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
