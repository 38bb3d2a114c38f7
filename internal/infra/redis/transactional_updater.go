package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// TransactionalUpdater is an app.Updater that closes the lost-update window:
// the room key is WATCHed across the read, and the write commits in MULTI/EXEC
// only if nobody wrote in between. Conflicts rerun the whole cycle.
type TransactionalUpdater struct {
	client     *redis.Client
	maxRetries int
	onConflict func()
}

func NewTransactionalUpdater(client *redis.Client, maxRetries int, onConflict func()) *TransactionalUpdater {
	if onConflict == nil {
		onConflict = func() {}
	}
	return &TransactionalUpdater{client: client, maxRetries: maxRetries, onConflict: onConflict}
}

func (u *TransactionalUpdater) Update(ctx context.Context, roomID string, mutate app.MutateFunc) (domain.Room, bool, error) {
	key := documentKey(domain.RoomCollection, roomID)

	var (
		result    domain.Room
		written   bool
		domainErr error
	)
	txf := func(tx *redis.Tx) error {
		written, domainErr = false, nil

		values, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return unavailable(err)
		}
		if len(values) == 0 {
			domainErr = domain.ErrRoomNotFound
			return domainErr
		}
		current, err := domain.DecodeRoom(roomID, toDocument(values))
		if err != nil {
			domainErr = err
			return err
		}
		result = current

		next, fields, err := mutate(current.Clone())
		if err != nil {
			domainErr = err
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		patch, err := domain.EncodeFields(next, fields...)
		if err != nil {
			domainErr = err
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hashValues(patch)...)
			pipe.Publish(ctx, key, "changed")
			return nil
		})
		if err != nil {
			return err
		}
		result, written = next, true
		return nil
	}

	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		err := u.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return result, written, nil
		case domainErr != nil:
			return result, false, domainErr
		case errors.Is(err, redis.TxFailedErr):
			u.onConflict()
			continue
		default:
			return result, false, app.StoreError(err)
		}
	}
	return domain.Room{}, false, fmt.Errorf("%w: room %s kept changing after %d retries", domain.ErrStoreUnavailable, roomID, u.maxRetries)
}
