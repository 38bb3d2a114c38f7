package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizroom-service/internal/app"
	"quizroom-service/internal/config"
	"quizroom-service/internal/infra/memory"
	"quizroom-service/internal/infra/postgres"
	infraredis "quizroom-service/internal/infra/redis"
	"quizroom-service/internal/logger"
	"quizroom-service/internal/metrics"
	transport "quizroom-service/internal/transport/http"
)

// dependencies is the object graph shared by the commands.
type dependencies struct {
	cfg        config.Config
	log        *logrus.Entry
	metrics    *metrics.Metrics
	rooms      *app.RoomService
	identities transport.IdentityStores

	redis *redis.Client
	pool  *pgxpool.Pool
	db    *bun.DB
}

func loadConfig(path string) (config.Config, *logrus.Entry, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger.New("quizroom", cfg.Log.Level), nil
}

func openDependencies(ctx context.Context, cfg config.Config, log *logrus.Entry) (*dependencies, error) {
	d := &dependencies{cfg: cfg, log: log, metrics: metrics.New("quizroom")}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := d.redis.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.pool = pool
		d.db = openBun(cfg.Postgres.URL)
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(memory.SampleQuizzes())
	if d.pool != nil {
		loader = postgres.NewQuizLoader(d.pool)
	}
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes app.QuizRepository
	if d.redis != nil {
		quizzes = infraredis.NewQuizRepository(d.redis, loader, quizTTL)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
	}

	store, updater, err := d.documentStore()
	if err != nil {
		d.Close()
		return nil, err
	}
	opts := []app.Option{
		app.WithLogger(log.WithField("component", "rooms")),
		app.WithMetrics(d.metrics),
		app.WithRoomDefaults(cfg.Room.MaxPlayers, cfg.Room.MinPlayers),
	}
	if updater != nil {
		opts = append(opts, app.WithUpdater(updater))
	}
	d.rooms = app.NewRoomService(store, quizzes, opts...)

	identityTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
	if d.redis != nil {
		d.identities = func(clientID string) app.IdentityStore {
			return infraredis.NewIdentityStore(d.redis, clientID, identityTTL)
		}
	} else {
		registry := memory.NewIdentityRegistry(identityTTL)
		d.identities = func(clientID string) app.IdentityStore { return registry.For(clientID) }
	}

	log.WithFields(logrus.Fields{
		"backend":  cfg.Store.Backend,
		"strategy": cfg.Store.Strategy,
	}).Info("document store ready")
	return d, nil
}

// documentStore picks the backend and, for the transactional strategy, the
// backend's serializing updater. A nil updater keeps read-modify-write.
func (d *dependencies) documentStore() (app.DocumentStore, app.Updater, error) {
	transactional := d.cfg.Store.Strategy == config.StrategyTransactional
	storeLog := d.log.WithField("component", "store")

	switch d.cfg.Store.Backend {
	case config.BackendMemory:
		store := memory.NewDocumentStore()
		if transactional {
			return store, memory.NewLockingUpdater(store), nil
		}
		return store, nil, nil
	case config.BackendRedis:
		store := infraredis.NewDocumentStore(d.redis, storeLog)
		if transactional {
			return store, infraredis.NewTransactionalUpdater(d.redis, d.cfg.StoreMaxRetries(), d.metrics.Conflict), nil
		}
		return store, nil, nil
	case config.BackendPostgres:
		store := postgres.NewDocumentStore(d.db, storeLog)
		if transactional {
			return store, postgres.NewRowLockUpdater(d.db), nil
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", d.cfg.Store.Backend)
	}
}

func (d *dependencies) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}
