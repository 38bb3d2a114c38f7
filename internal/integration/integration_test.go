package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
	"quizroom-service/internal/infra/postgres"
	pgmigrations "quizroom-service/internal/infra/postgres/migrations"
	infraredis "quizroom-service/internal/infra/redis"
	"quizroom-service/internal/logger"
)

func TestRoomOnRedisWithPostgresCatalog(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	loader := postgres.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, memory.SampleQuizzes()["geography"]); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	rooms := app.NewRoomService(
		infraredis.NewDocumentStore(redisClient, logger.Discard()),
		infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute),
		app.WithUpdater(infraredis.NewTransactionalUpdater(redisClient, 50, nil)),
		app.WithLogger(logger.Discard()),
	)
	playConcurrentGame(t, ctx, rooms, func(clientID string) app.IdentityStore {
		return infraredis.NewIdentityStore(redisClient, clientID, time.Hour)
	})
}

func TestRoomOnPostgresDocuments(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	rooms := app.NewRoomService(
		postgres.NewDocumentStore(db, logger.Discard()),
		memory.NewQuizRepository(memory.NewStaticQuizLoader(memory.SampleQuizzes()), time.Minute),
		app.WithUpdater(postgres.NewRowLockUpdater(db)),
		app.WithLogger(logger.Discard()),
	)
	registry := memory.NewIdentityRegistry(time.Hour)
	playConcurrentGame(t, ctx, rooms, func(clientID string) app.IdentityStore { return registry.For(clientID) })
}

// playConcurrentGame runs three devices through the geography quiz, answering
// every round concurrently, and checks that the host's device started the room
// and that every answer was scored exactly once.
func playConcurrentGame(t *testing.T, ctx context.Context, rooms *app.RoomService, identities func(string) app.IdentityStore) {
	t.Helper()
	room, err := rooms.CreateRoom(ctx, app.CreateRoomRequest{QuizID: "geography", MinPlayers: 3, MaxPlayers: 5})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	names := []string{"Ann", "Bob", "Cid"}
	clients := make([]*app.Client, len(names))
	for i, name := range names {
		clients[i] = app.NewClient(rooms, identities("device-"+name))
	}

	started := make(chan struct{})
	var once sync.Once
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop, err := rooms.Subscribe(watchCtx, room.ID, func(r domain.Room) {
		if r.Status == domain.StatusInProgress {
			once.Do(func() { close(started) })
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	for i, name := range names {
		if _, err := clients[i].Join(ctx, room.ID, name); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}
	// The host's device observes the full room and starts it.
	current, err := rooms.Get(ctx, room.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := clients[0].Observe(ctx, current); err != nil {
		t.Fatalf("observe: %v", err)
	}
	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatalf("subscription never saw the room start")
	}

	answers := []int{0, 1, 2}
	for qi, option := range answers {
		var wg sync.WaitGroup
		errs := make(chan error, len(clients))
		for _, c := range clients {
			wg.Add(1)
			go func(c *app.Client) {
				defer wg.Done()
				if _, err := c.Answer(ctx, room.ID, qi, option); err != nil {
					errs <- err
				}
			}(c)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("answer question %d: %v", qi, err)
		}
	}

	final, err := rooms.Get(ctx, room.ID)
	if err != nil {
		t.Fatalf("get final: %v", err)
	}
	if final.Status != domain.StatusCompleted {
		t.Fatalf("expected completed room, got %s", final.Status)
	}
	for _, p := range final.Players {
		if p.Score != len(answers)*domain.PointsPerCorrectAnswer {
			t.Fatalf("player %s scored %d", p.Name, p.Score)
		}
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	addr, cleanup := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	})
	return fmt.Sprintf("postgres://quiz:quizpass@%s/quizdb?sslmode=disable", addr), cleanup
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	addr, cleanup := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	})
	return "redis://" + addr, cleanup
}

// startContainer runs req and returns host:port of its first exposed port.
func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest) (string, func()) {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", req.Image, err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	port, err := container.MappedPort(ctx, nat.Port(req.ExposedPorts[0]))
	if err != nil {
		t.Fatalf("%s port: %v", req.Image, err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
