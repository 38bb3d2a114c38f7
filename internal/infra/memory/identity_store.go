package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"quizroom-service/internal/domain"
)

// IdentityStore keeps identities in process memory, keyed by room.
type IdentityStore struct {
	mu         sync.RWMutex
	identities map[string]domain.Identity

	clock    func() time.Time
	lastUsed atomic.Int64
}

func NewIdentityStore() *IdentityStore {
	return newIdentityStore(time.Now)
}

func newIdentityStore(clock func() time.Time) *IdentityStore {
	s := &IdentityStore{identities: make(map[string]domain.Identity), clock: clock}
	s.touch()
	return s
}

func (s *IdentityStore) touch() {
	s.lastUsed.Store(s.clock().UnixNano())
}

func (s *IdentityStore) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastUsed.Load()))
}

func (s *IdentityStore) Load(_ context.Context, roomID string) (domain.Identity, bool, error) {
	s.touch()
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[roomID]
	return identity, ok, nil
}

func (s *IdentityStore) Save(_ context.Context, identity domain.Identity) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.RoomID] = identity
	return nil
}

func (s *IdentityStore) Clear(_ context.Context, roomID string) error {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.identities, roomID)
	return nil
}

// IdentityRegistry hands out one IdentityStore per client id, for servers
// running without Redis. Stores unused for longer than idleTTL are dropped,
// mirroring the key expiry of the Redis identity store.
type IdentityRegistry struct {
	idleTTL time.Duration
	clock   func() time.Time

	mu        sync.Mutex
	stores    map[string]*IdentityStore
	nextSweep time.Time
}

// NewIdentityRegistry keeps stores forever when idleTTL is zero.
func NewIdentityRegistry(idleTTL time.Duration) *IdentityRegistry {
	return &IdentityRegistry{
		idleTTL: idleTTL,
		clock:   time.Now,
		stores:  make(map[string]*IdentityStore),
	}
}

func (r *IdentityRegistry) For(clientID string) *IdentityStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	store, ok := r.stores[clientID]
	if !ok {
		store = newIdentityStore(r.clock)
		r.stores[clientID] = store
	}
	store.touch()
	return store
}

// sweepLocked evicts idle stores at most once per idleTTL.
func (r *IdentityRegistry) sweepLocked() {
	if r.idleTTL <= 0 {
		return
	}
	now := r.clock()
	if now.Before(r.nextSweep) {
		return
	}
	for id, store := range r.stores {
		if store.idleSince(now) > r.idleTTL {
			delete(r.stores, id)
		}
	}
	r.nextSweep = now.Add(r.idleTTL)
}
