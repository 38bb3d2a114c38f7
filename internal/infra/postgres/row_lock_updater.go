package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// RowLockUpdater is an app.Updater that serializes writers on the room row
// with SELECT ... FOR UPDATE, so the read and the merge commit together.
type RowLockUpdater struct {
	db *bun.DB
}

func NewRowLockUpdater(db *bun.DB) *RowLockUpdater {
	return &RowLockUpdater{db: db}
}

func (u *RowLockUpdater) Update(ctx context.Context, roomID string, mutate app.MutateFunc) (domain.Room, bool, error) {
	var (
		result  domain.Room
		written bool
	)
	err := u.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		doc, err := getDocument(ctx, tx, domain.RoomCollection, roomID, true)
		if err != nil {
			return err
		}
		current, err := domain.DecodeRoom(roomID, doc)
		if err != nil {
			return err
		}
		result = current

		next, fields, err := mutate(current.Clone())
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		patch, err := domain.EncodeFields(next, fields...)
		if err != nil {
			return err
		}
		data, err := json.Marshal(patch)
		if err != nil {
			return fmt.Errorf("encode patch: %w", err)
		}
		if err := mergeDocument(ctx, tx, domain.RoomCollection, roomID, string(data)); err != nil {
			return err
		}
		result, written = next, true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return domain.Room{}, false, domain.ErrRoomNotFound
		}
		return result, false, err
	}
	return result, written, nil
}
