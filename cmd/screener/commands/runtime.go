package commands

import (
	"fmt"

	"github.com/ashare-lab/screener/internal/pipeline"
	"github.com/ashare-lab/screener/internal/runcache"
	"github.com/ashare-lab/screener/pkg/config"
	"github.com/ashare-lab/screener/pkg/database"
	"github.com/ashare-lab/screener/pkg/logger"
	"github.com/ashare-lab/screener/pkg/redis"
)

// runtime bundles the shared process dependencies.
type runtime struct {
	cfg      *config.Config
	logger   *logger.Logger
	store    runcache.Store
	db       *database.DB
	redis    *redis.Client
	pipeline *pipeline.Pipeline
}

// newRuntime loads config and wires the pipeline. The database is only
// dialed when the configured provider needs it.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	rt := &runtime{cfg: cfg, logger: log}

	if cfg.Screener.Provider == "postgres" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		rt.db = db
	}

	switch cfg.Cache.Backend {
	case "redis":
		client, err := redis.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		rt.redis = client
		rt.store = runcache.NewRedisStore(client, cfg.Cache.TTL)
	case "off":
		rt.store = runcache.NopStore{}
	default:
		rt.store = runcache.NewFileStore(cfg.Cache.Dir, log)
	}

	rt.pipeline = pipeline.New(cfg, log, rt.store, rt.db)
	return rt, nil
}

// close releases held connections.
func (rt *runtime) close() {
	if rt.db != nil {
		rt.db.Close()
	}
	if rt.redis != nil {
		rt.redis.Close()
	}
}
