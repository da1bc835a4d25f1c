package storage

import (
	"context"

	"PPChat/global/config"
	"PPChat/logger"
	"PPChat/tools/errs"
	"PPChat/tools/ids"

	"go.uber.org/zap"
)

// Open 按 cfg.Driver 创建 Store
func Open(ctx context.Context, cfg config.StorageConfig, gen *ids.Generator) (Store, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	switch cfg.Driver {
	case config.StorageMemory, "":
		logger.Info("storage: memory")
		return NewMemoryStore(), nil
	case config.StoragePostgres:
		s, err := NewPostgresStore(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		if gen != nil {
			s.WithGenerator(gen)
		}
		if cfg.Postgres.Migrate {
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		logger.Info("storage: postgres", zap.Int32("maxConns", cfg.Postgres.MaxConns))
		return s, nil
	case config.StorageMongo:
		s, err := NewMongoStore(ctx, MongoConfig{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			MaxPoolSize: cfg.Mongo.MaxPoolSize,
		})
		if err != nil {
			return nil, err
		}
		if gen != nil {
			s.WithGenerator(gen)
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		logger.Info("storage: mongo", zap.String("database", cfg.Mongo.Database))
		return s, nil
	}
	return nil, errs.ErrArgs.WrapMsg("unknown storage driver", "driver", cfg.Driver)
}
