package statemanager

import (
	"fmt"

	"github.com/mbflow/automation-engine/internal/config"
	"github.com/mbflow/automation-engine/internal/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// Deps bundles the external clients a non-memory Persistence strategy needs.
type Deps struct {
	Redis *redis.Client
	DB    *bun.DB
}

// NewFromConfig builds a Manager whose Persistence strategy is selected by
// cfg.Strategy, matching spec.md §4.6's {memory, external_kv, database,
// file} closed set.
func NewFromConfig(cfg config.StateStoreConfig, deps Deps, log *logger.Logger) (*Manager, error) {
	persist, err := newPersistence(cfg, deps)
	if err != nil {
		return nil, err
	}
	mgrCfg := Config{
		MaxAge:          cfg.MaxAge,
		MaxEntries:      cfg.MaxEntries,
		MaxSnapshots:    cfg.MaxSnapshots,
		CleanupInterval: cfg.CleanupInterval,
	}
	return New(persist, mgrCfg, log), nil
}

func newPersistence(cfg config.StateStoreConfig, deps Deps) (Persistence, error) {
	switch cfg.Strategy {
	case "", "memory":
		return NewMemoryPersistence(), nil
	case "external_kv":
		if deps.Redis == nil {
			return nil, fmt.Errorf("statemanager: external_kv strategy requires a Redis client")
		}
		return NewKVPersistence(deps.Redis, cfg.Namespace), nil
	case "database":
		if deps.DB == nil {
			return nil, fmt.Errorf("statemanager: database strategy requires a Bun connection")
		}
		return NewDatabasePersistence(deps.DB), nil
	case "file":
		return NewFilePersistence(cfg.FileDir)
	default:
		return nil, fmt.Errorf("statemanager: unknown persistence strategy %q", cfg.Strategy)
	}
}
