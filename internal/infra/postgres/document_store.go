package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// NotifyChannel carries "{collection}/{id}" after every committed write.
const NotifyChannel = "quizroom_documents"

// DocumentStore keeps documents as JSONB rows in the documents table. Merge
// writes use the jsonb concatenation operator, which replaces top-level keys
// and leaves the rest alone.
type DocumentStore struct {
	db  *bun.DB
	log logrus.FieldLogger
}

func NewDocumentStore(db *bun.DB, log logrus.FieldLogger) *DocumentStore {
	return &DocumentStore{db: db, log: log}
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	return getDocument(ctx, s.db, collection, id, false)
}

func (s *DocumentStore) Put(ctx context.Context, collection, id string, fields domain.Document, opts app.PutOptions) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if opts.Merge {
			return mergeDocument(ctx, tx, collection, id, string(data))
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?::jsonb, now())
			ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			collection, id, string(data))
		if err != nil {
			return unavailable(err)
		}
		return notify(ctx, tx, collection, id)
	})
}

func (s *DocumentStore) Create(ctx context.Context, collection string, fields domain.Document) (string, error) {
	id := uuid.NewString()
	if err := s.Put(ctx, collection, id, fields, app.PutOptions{}); err != nil {
		return "", err
	}
	return id, nil
}

// Subscribe opens a dedicated LISTEN connection and re-reads the document on
// each matching notification.
func (s *DocumentStore) Subscribe(ctx context.Context, collection, id string, onSnapshot func(domain.Document)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	ln := pgdriver.NewListener(s.db)
	if err := ln.Listen(subCtx, NotifyChannel); err != nil {
		_ = ln.Close()
		cancel()
		return nil, unavailable(err)
	}
	initial, err := s.Get(subCtx, collection, id)
	if err != nil {
		_ = ln.Close()
		cancel()
		return nil, err
	}
	context.AfterFunc(subCtx, func() { _ = ln.Close() })

	want := payload(collection, id)
	notifications := ln.Channel()
	log := s.log.WithField("document", want)
	go func() {
		onSnapshot(initial)
		for {
			select {
			case <-subCtx.Done():
				return
			case n, ok := <-notifications:
				if !ok {
					return
				}
				if n.Payload != want {
					continue
				}
				doc, err := s.Get(subCtx, collection, id)
				if err != nil {
					if subCtx.Err() == nil {
						log.WithError(err).Warn("failed to read document after notification")
					}
					continue
				}
				onSnapshot(doc)
			}
		}
	}()
	return cancel, nil
}

func getDocument(ctx context.Context, db bun.IDB, collection, id string, forUpdate bool) (domain.Document, error) {
	query := `SELECT data::text FROM documents WHERE collection = ? AND id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var raw string
	err := db.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	var doc domain.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRoom, err)
	}
	return doc, nil
}

func mergeDocument(ctx context.Context, tx bun.Tx, collection, id, patch string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET data = data || ?::jsonb, updated_at = now()
		WHERE collection = ? AND id = ?`,
		patch, collection, id)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return notify(ctx, tx, collection, id)
}

// notify is delivered to listeners only when the surrounding transaction commits.
func notify(ctx context.Context, tx bun.Tx, collection, id string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify(?, ?)`, NotifyChannel, payload(collection, id)); err != nil {
		return unavailable(err)
	}
	return nil
}

func payload(collection, id string) string {
	return collection + "/" + id
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
