package store

import (
	"context"
	"fmt"

	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Open builds the repository selected by cfg.Driver. close releases its resources.
func Open(ctx context.Context, cfg config.StoreConfig, fs afero.Fs, logger *zap.Logger) (port.CredentialRepository, func() error, error) {
	file := NewFileRepository(fs, cfg.Path)
	switch cfg.Driver {
	case config.STORE_DRIVER_FILE:
		return file, func() error { return nil }, nil
	case config.STORE_DRIVER_SQLITE:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		repo := NewSQLiteRepository(db)
		if cfg.Path != "" {
			if _, err := repo.ImportIfMissing(ctx, file, logger); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return repo, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
