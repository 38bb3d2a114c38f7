package app_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
)

var fixedNow = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

func capitalsQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "capitals",
		Title: "Capitals",
		Questions: []domain.Question{
			{Text: "Capital of France?", Options: []string{"Paris", "Lyon", "Nice", "Lille"}, CorrectAnswer: 0},
			{Text: "Capital of Italy?", Options: []string{"Milan", "Rome", "Turin", "Naples"}, CorrectAnswer: 1},
		},
	}
}

// countingStore counts writes reaching the underlying store.
type countingStore struct {
	app.DocumentStore
	puts atomic.Int64
}

func (s *countingStore) Put(ctx context.Context, collection, id string, fields domain.Document, opts app.PutOptions) error {
	s.puts.Add(1)
	return s.DocumentStore.Put(ctx, collection, id, fields, opts)
}

type fixture struct {
	service *app.RoomService
	mem     *memory.DocumentStore
	store   *countingStore
}

func newFixture(t *testing.T, opts ...app.Option) *fixture {
	t.Helper()
	mem := memory.NewDocumentStore()
	store := &countingStore{DocumentStore: mem}
	return newFixtureWithStore(t, mem, store, opts...)
}

func newFixtureWithStore(t *testing.T, mem *memory.DocumentStore, store app.DocumentStore, opts ...app.Option) *fixture {
	t.Helper()
	var seq atomic.Int64
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"capitals": capitalsQuiz(),
	}), time.Minute)
	base := []app.Option{
		app.WithClock(func() time.Time { return fixedNow }),
		app.WithIDGenerator(func() string { return fmt.Sprintf("p%d", seq.Add(1)) }),
	}
	f := &fixture{
		service: app.NewRoomService(store, quizzes, append(base, opts...)...),
		mem:     mem,
	}
	if cs, ok := store.(*countingStore); ok {
		f.store = cs
	}
	return f
}

func (f *fixture) createRoom(t *testing.T, minPlayers, maxPlayers int) domain.Room {
	t.Helper()
	room, err := f.service.CreateRoom(context.Background(), app.CreateRoomRequest{
		QuizID:     "capitals",
		MinPlayers: minPlayers,
		MaxPlayers: maxPlayers,
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

// load reads the room straight from the in-memory store, bypassing wrappers.
func (f *fixture) load(t *testing.T, roomID string) domain.Room {
	t.Helper()
	doc, err := f.mem.Get(context.Background(), domain.RoomCollection, roomID)
	if err != nil {
		t.Fatalf("load room: %v", err)
	}
	room, err := domain.DecodeRoom(roomID, doc)
	if err != nil {
		t.Fatalf("decode room: %v", err)
	}
	return room
}

func (f *fixture) join(t *testing.T, roomID string, names ...string) []domain.Player {
	t.Helper()
	players := make([]domain.Player, 0, len(names))
	for _, name := range names {
		p, err := f.service.Join(context.Background(), roomID, name)
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		players = append(players, p)
	}
	return players
}

func (f *fixture) startedRoom(t *testing.T, names ...string) (domain.Room, []domain.Player) {
	t.Helper()
	room := f.createRoom(t, len(names), 10)
	players := f.join(t, room.ID, names...)
	if _, err := f.service.Start(context.Background(), room.ID, players[0].ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	return f.load(t, room.ID), players
}

func (f *fixture) answer(t *testing.T, roomID string, player domain.Player, questionIndex, option int) app.AnswerOutcome {
	t.Helper()
	out, err := f.service.SubmitAnswer(context.Background(), roomID, player.ID, questionIndex, option)
	if err != nil {
		t.Fatalf("answer %s q%d: %v", player.Name, questionIndex, err)
	}
	return out
}

// barrierStore holds every Get until n Gets happened, so n cycles all read the
// same version before any of them writes.
type barrierStore struct {
	app.DocumentStore
	reads sync.WaitGroup
}

func newBarrierStore(inner app.DocumentStore, n int) *barrierStore {
	s := &barrierStore{DocumentStore: inner}
	s.reads.Add(n)
	return s
}

func (s *barrierStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	doc, err := s.DocumentStore.Get(ctx, collection, id)
	s.reads.Done()
	s.reads.Wait()
	return doc, err
}

// failingStore fails every write.
type failingStore struct {
	app.DocumentStore
}

func (s failingStore) Put(context.Context, string, string, domain.Document, app.PutOptions) error {
	return fmt.Errorf("%w: connection reset", domain.ErrStoreUnavailable)
}

// vanishingStore reports the document gone on every write, as if it was
// deleted after the read.
type vanishingStore struct {
	app.DocumentStore
}

func (s vanishingStore) Put(context.Context, string, string, domain.Document, app.PutOptions) error {
	return domain.ErrDocumentNotFound
}
