package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pudottapommin/shelf/config"
	"github.com/pudottapommin/shelf/pkg/storage"
	"github.com/valkey-io/valkey-go"
)

// OpenStore connects the backend selected by cfg.Storage.Driver. Postgres
// schemas are migrated before the pool is opened.
func OpenStore(ctx context.Context, cfg *config.Config, l *slog.Logger) (storage.Store, error) {
	key, err := cfg.ContentKey()
	if err != nil {
		return nil, err
	}
	codec, err := storage.NewCodec(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create content codec: %w", err)
	}

	switch cfg.Storage.Driver {
	case config.DriverValkey:
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.Storage.Valkey}})
		if err != nil {
			return nil, fmt.Errorf("failed to create valkey client: %w", err)
		}
		l.Debug("storage connected", "driver", cfg.Storage.Driver, "address", cfg.Storage.Valkey)
		return storage.NewValkey(client, codec, cfg.Storage.Prefix), nil
	case config.DriverPostgres:
		if err = storage.Migrate(cfg.Storage.Postgres); err != nil {
			return nil, err
		}
		pool, err := storage.ConnectPostgres(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		l.Debug("storage connected", "driver", cfg.Storage.Driver)
		return storage.NewPostgres(pool, codec), nil
	case config.DriverMemory:
		l.Warn("using in-memory storage, notes will not survive a restart")
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
