package memory

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/HarshModi2005/realityspiral/pkg/config"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

// Open builds the Store selected by cfg.Memory.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	mc := cfg.Memory
	var (
		store Store
		err   error
	)
	switch mc.Backend {
	case "", "sqlite":
		store, err = OpenSQLite(ctx, cfg.MemoryPath())
	case "jsonl":
		store, err = NewJSONLStore(cfg.MemoryPath())
	case "redis":
		store, err = NewRedisStore(ctx, mc.Redis.Addr, mc.Redis.Password, mc.Redis.DB, mc.Redis.KeyPrefix)
	case "jetstream":
		dir := mc.JetStream.StoreDir
		if dir == "" {
			dir = filepath.Join(cfg.DataPath(), "jetstream")
		}
		store, err = OpenStream(mc.JetStream.URL, dir, mc.JetStream.Stream)
	default:
		return nil, fmt.Errorf("memory: unknown backend %q", mc.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.InfoCF("memory", "Memory store opened", map[string]any{
		"backend": mc.Backend,
	})
	return store, nil
}
