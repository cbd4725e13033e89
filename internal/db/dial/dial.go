// Package dial builds a db.Store for the configured driver.
package dial

import (
	"context"
	"fmt"

	"github.com/clique-kr/episodes/internal/config"
	"github.com/clique-kr/episodes/internal/db"
	dbMongo "github.com/clique-kr/episodes/internal/db/mongo"
	dbRedis "github.com/clique-kr/episodes/internal/db/redis"
	dbSQLite "github.com/clique-kr/episodes/internal/db/sqlite"
)

// New creates the store selected by cfg.Driver. The caller owns Close.
func New(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverMongo:
		store, err = dbMongo.NewStore(ctx, dbMongo.Config{
			URI:      cfg.URI,
			Database: cfg.Name,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	case config.DriverRedis:
		store, err = dbRedis.NewStore(redisConfig(cfg))
	case config.DriverSQLite:
		store, err = dbSQLite.NewStore(dbSQLite.Config{Path: cfg.Path})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	// A typed nil *Store wrapped in db.Store is not nil.
	if err != nil {
		return nil, fmt.Errorf("%s store: %w", cfg.Driver, err)
	}
	return store, nil
}

func redisConfig(cfg config.DatabaseConfig) dbRedis.Config {
	return dbRedis.Config{
		Addrs:     cfg.Addrs,
		Username:  cfg.Username,
		Password:  cfg.Password,
		DB:        cfg.DB,
		KeyPrefix: cfg.KeyPrefix,
	}
}
