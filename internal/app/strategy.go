package app

import (
	"context"

	"quizroom-service/internal/domain"
)

// ReadModifyWrite is the default Updater: a fresh Get immediately before
// computing the patch, then a merge Put of the touched fields only.
//
// The store offers no compare-and-swap, so two cycles that read the same
// version race and the later Put wins for the fields both touched. Reading
// right before writing narrows that window to the get->put gap.
type ReadModifyWrite struct {
	store DocumentStore
}

func NewReadModifyWrite(store DocumentStore) *ReadModifyWrite {
	return &ReadModifyWrite{store: store}
}

func (u *ReadModifyWrite) Update(ctx context.Context, roomID string, mutate MutateFunc) (domain.Room, bool, error) {
	doc, err := u.store.Get(ctx, domain.RoomCollection, roomID)
	if err != nil {
		return domain.Room{}, false, StoreError(err)
	}
	current, err := domain.DecodeRoom(roomID, doc)
	if err != nil {
		return domain.Room{}, false, err
	}

	next, fields, err := mutate(current.Clone())
	if err != nil {
		return current, false, err
	}
	if len(fields) == 0 {
		return current, false, nil
	}

	patch, err := domain.EncodeFields(next, fields...)
	if err != nil {
		return current, false, err
	}
	if err := u.store.Put(ctx, domain.RoomCollection, roomID, patch, PutOptions{Merge: true}); err != nil {
		return current, false, StoreError(err)
	}
	return next, true, nil
}
