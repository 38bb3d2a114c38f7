package memory

import (
	"context"
	"sync"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// LockingUpdater serializes read-modify-write cycles per room inside this
// process, which removes the lost-update window for stores only this process
// writes to.
type LockingUpdater struct {
	inner app.Updater

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockingUpdater(store app.DocumentStore) *LockingUpdater {
	return &LockingUpdater{
		inner: app.NewReadModifyWrite(store),
		locks: make(map[string]*sync.Mutex),
	}
}

func (u *LockingUpdater) Update(ctx context.Context, roomID string, mutate app.MutateFunc) (domain.Room, bool, error) {
	lock := u.lockFor(roomID)
	lock.Lock()
	defer lock.Unlock()
	return u.inner.Update(ctx, roomID, mutate)
}

func (u *LockingUpdater) lockFor(roomID string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	lock, ok := u.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		u.locks[roomID] = lock
	}
	return lock
}
