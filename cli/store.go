package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quill/app/repositories"
	"quill/app/repositories/postgres"
	"quill/config"

	"github.com/dgraph-io/badger/v4"
)

// openStore opens the configured backend. Postgres schemas are migrated on
// the way so a fresh database is usable right away.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repositories.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverBadger:
		db, err := repositories.OpenBadger(cfg.Storage.Badger.Path, log)
		if err != nil {
			return nil, err
		}
		log.Info("opened badger store", "path", cfg.Storage.Badger.Path)
		return repositories.NewBadgerStore(db), nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Storage.Postgres.URL, cfg.Storage.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("connected to postgres", "max_conns", cfg.Storage.Postgres.MaxConns)
		return postgres.NewStore(pool), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// openBadger opens the badger data directory for maintenance commands.
func openBadger(cfg *config.Config, log *slog.Logger) (*badger.DB, error) {
	if cfg.Storage.Driver != config.DriverBadger {
		return nil, fmt.Errorf("this command works on the badger store, storage.driver is %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Badger.Path == "" {
		return nil, errors.New("storage.badger.path is empty, nothing is persisted")
	}
	return repositories.OpenBadger(cfg.Storage.Badger.Path, log)
}
