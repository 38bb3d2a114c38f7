package app

import (
	"context"
	"errors"
	"fmt"

	"quizroom-service/internal/domain"
)

// PutOptions controls how Put applies fields.
type PutOptions struct {
	// Merge shallow-merges top-level fields into an existing document.
	// Array fields are replaced wholesale.
	Merge bool
}

// DocumentStore abstracts the remote document store (in-memory, Redis, Postgres).
// Implementations return domain.ErrDocumentNotFound for absent documents and wrap
// backend failures with domain.ErrStoreUnavailable.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (domain.Document, error)
	Put(ctx context.Context, collection, id string, fields domain.Document, opts PutOptions) error
	// Subscribe delivers the current document immediately, then the latest
	// document after every committed write. Callbacks for one subscription
	// never run concurrently. The returned func unsubscribes.
	Subscribe(ctx context.Context, collection, id string, onSnapshot func(domain.Document)) (func(), error)
	Create(ctx context.Context, collection string, fields domain.Document) (string, error)
}

// MutateFunc computes the next room from a freshly read one. It returns the
// fields it touched; no fields means nothing is written.
type MutateFunc func(current domain.Room) (next domain.Room, fields []domain.Field, err error)

// Updater runs one read-modify-write cycle on a room document. It returns the
// room as written (or as read when nothing was written) and whether a write happened.
type Updater interface {
	Update(ctx context.Context, roomID string, mutate MutateFunc) (domain.Room, bool, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// IdentityStore persists a client's identity per room so a reload can resume it.
type IdentityStore interface {
	Load(ctx context.Context, roomID string) (domain.Identity, bool, error)
	Save(ctx context.Context, identity domain.Identity) error
	Clear(ctx context.Context, roomID string) error
}

// StoreError maps document store errors onto the room error taxonomy.
func StoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrDocumentNotFound):
		return domain.ErrRoomNotFound
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrInvalidRoom):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
}
