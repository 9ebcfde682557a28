package sqlstore

import "github.com/goliatone/go-postwork/core"

var (
	_ core.UnitStore              = (*UnitStore)(nil)
	_ core.AdminStore             = (*UnitStore)(nil)
	_ core.UnitStore              = (*CachedUnitStore)(nil)
	_ core.AdminStore             = (*CachedUnitStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
