package catalog

import (
	"context"

	"github.com/simroam/simroam/internal/catalog/repository"
	catalogsync "github.com/simroam/simroam/internal/catalog/sync"
	"github.com/simroam/simroam/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(repository.Provide),
	fx.Provide(catalogsync.New),
	fx.Invoke(registerSync),
)

func registerSync(lc fx.Lifecycle, cfg config.Config, syncer *catalogsync.Syncer) {
	if cfg.CatalogSync.Interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				syncer.RunForever(ctx, cfg.CatalogSync.Interval)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
