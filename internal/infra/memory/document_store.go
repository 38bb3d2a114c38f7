package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// DocumentStore is an in-process implementation of app.DocumentStore.
// Writes are atomic per document and every subscriber sees snapshots in write order.
type DocumentStore struct {
	mu          sync.RWMutex
	docs        map[string]domain.Document
	subscribers map[string]map[*subscription]struct{}
	newID       func() string
}

type subscription struct {
	ch chan domain.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:        make(map[string]domain.Document),
		subscribers: make(map[string]map[*subscription]struct{}),
		newID:       uuid.NewString,
	}
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key(collection, id)]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (s *DocumentStore) Put(ctx context.Context, collection, id string, fields domain.Document, opts app.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(collection, id)
	next := fields.Clone()
	if opts.Merge {
		current, ok := s.docs[k]
		if !ok {
			return domain.ErrDocumentNotFound
		}
		next = current.Merge(fields)
	}
	s.docs[k] = next
	s.broadcastLocked(k, next)
	return nil
}

func (s *DocumentStore) Create(ctx context.Context, collection string, fields domain.Document) (string, error) {
	id := s.newID()
	if err := s.Put(ctx, collection, id, fields, app.PutOptions{}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *DocumentStore) Subscribe(ctx context.Context, collection, id string, onSnapshot func(domain.Document)) (func(), error) {
	k := key(collection, id)
	sub := &subscription{ch: make(chan domain.Document, 8)}

	s.mu.Lock()
	initial, ok := s.docs[k]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrDocumentNotFound
	}
	if s.subscribers[k] == nil {
		s.subscribers[k] = make(map[*subscription]struct{})
	}
	s.subscribers[k][sub] = struct{}{}
	sub.ch <- initial.Clone()
	s.mu.Unlock()

	go func() {
		for doc := range sub.ch {
			onSnapshot(doc)
		}
	}()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subscribers[k]
		if _, ok := subs[sub]; !ok {
			return
		}
		delete(subs, sub)
		if len(subs) == 0 {
			delete(s.subscribers, k)
		}
		close(sub.ch)
	}
	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}, nil
}

// subscriberCount reports how many live subscriptions a document has.
func (s *DocumentStore) subscriberCount(collection, id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers[key(collection, id)])
}

func (s *DocumentStore) broadcastLocked(k string, doc domain.Document) {
	for sub := range s.subscribers[k] {
		snapshot := doc.Clone()
		select {
		case sub.ch <- snapshot:
		default:
			// Slow subscriber: drop the oldest snapshot so the latest one always lands.
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snapshot
		}
	}
}

func key(collection, id string) string {
	return collection + "/" + id
}
