package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/logger"
)

func newMockDB(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func roomJSON(t *testing.T) string {
	t.Helper()
	doc, err := domain.EncodeRoom(domain.Room{
		Status:     domain.StatusWaiting,
		Questions:  []domain.Question{{Text: "Capital of France?", Options: []string{"Paris", "Lyon"}, CorrectAnswer: 0}},
		Players:    []domain.Player{{ID: "p1", Name: "Ann", Answers: domain.Answers{}}},
		HostID:     "p1",
		MaxPlayers: 10,
		MinPlayers: 1,
		CreatedAt:  time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(data)
}

func TestDocumentStoreGet(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDocumentStore(db, logger.Discard())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data::text FROM documents WHERE collection = 'quizRooms' AND id = 'r1'`)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`{"status":"waiting","players":[]}`))

	doc, err := store.Get(context.Background(), "quizRooms", "r1")
	require.NoError(t, err)
	assert.JSONEq(t, `"waiting"`, string(doc["status"]))
	assert.JSONEq(t, `[]`, string(doc["players"]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreGetMissing(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDocumentStore(db, logger.Discard())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data::text FROM documents`)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := store.Get(context.Background(), "quizRooms", "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentStoreGetFailure(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDocumentStore(db, logger.Discard())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data::text FROM documents`)).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "quizRooms", "r1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestDocumentStoreMergeNotifies(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDocumentStore(db, logger.Discard())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents SET data = data || '{"status":"in-progress"}'::jsonb`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_notify('quizroom_documents', 'quizRooms/r1')`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Put(context.Background(), "quizRooms", "r1",
		domain.Document{"status": json.RawMessage(`"in-progress"`)}, app.PutOptions{Merge: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreMergeMissingDocument(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDocumentStore(db, logger.Discard())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents SET data = data ||`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Put(context.Background(), "quizRooms", "missing",
		domain.Document{"status": json.RawMessage(`"in-progress"`)}, app.PutOptions{Merge: true})
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreFullPutUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDocumentStore(db, logger.Discard())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO documents (collection, id, data, updated_at) VALUES ('quizRooms', 'r1', '{"status":"waiting"}'::jsonb, now()) ON CONFLICT (collection, id) DO UPDATE`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_notify(`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Put(context.Background(), "quizRooms", "r1",
		domain.Document{"status": json.RawMessage(`"waiting"`)}, app.PutOptions{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowLockUpdaterWritesPatchInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	updater := NewRowLockUpdater(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data::text FROM documents WHERE collection = 'quizRooms' AND id = 'r1' FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(roomJSON(t)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents SET data = data || '{"players":[`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_notify(`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	room, written, err := updater.Update(context.Background(), "r1", func(room domain.Room) (domain.Room, []domain.Field, error) {
		room.Players = append(room.Players, domain.Player{ID: "p2", Name: "Bob", Answers: domain.Answers{}})
		return room, []domain.Field{domain.FieldPlayers}, nil
	})
	require.NoError(t, err)
	assert.True(t, written)
	assert.Len(t, room.Players, 2)
	assert.Equal(t, "r1", room.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowLockUpdaterRollsBackOnRejection(t *testing.T) {
	db, mock := newMockDB(t)
	updater := NewRowLockUpdater(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(roomJSON(t)))
	mock.ExpectRollback()

	_, written, err := updater.Update(context.Background(), "r1", func(room domain.Room) (domain.Room, []domain.Field, error) {
		return room, nil, domain.ErrRoomFull
	})
	assert.ErrorIs(t, err, domain.ErrRoomFull)
	assert.False(t, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowLockUpdaterMissingRoom(t *testing.T) {
	db, mock := newMockDB(t)
	updater := NewRowLockUpdater(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectRollback()

	_, _, err := updater.Update(context.Background(), "missing", func(room domain.Room) (domain.Room, []domain.Field, error) {
		return room, nil, nil
	})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}
