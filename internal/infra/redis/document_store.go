package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// DocumentStore keeps each document in a hash:
//
//	HSET quizroom:doc:{collection}:{id} {field} {json}
//
// Every write publishes on a channel named after the key, inside the same
// script, so subscribers never miss a committed write.
type DocumentStore struct {
	client *redis.Client
	log    logrus.FieldLogger
}

var mergeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
for i = 1, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('PUBLISH', KEYS[1], 'changed')
return 1
`)

var replaceScript = redis.NewScript(`
redis.call('DEL', KEYS[1])
for i = 1, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('PUBLISH', KEYS[1], 'changed')
return 1
`)

func NewDocumentStore(client *redis.Client, log logrus.FieldLogger) *DocumentStore {
	return &DocumentStore{client: client, log: log}
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	values, err := s.client.HGetAll(ctx, documentKey(collection, id)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(values) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	return toDocument(values), nil
}

func (s *DocumentStore) Put(ctx context.Context, collection, id string, fields domain.Document, opts app.PutOptions) error {
	script := replaceScript
	if opts.Merge {
		script = mergeScript
	}
	written, err := script.Run(ctx, s.client, []string{documentKey(collection, id)}, hashValues(fields)...).Int()
	if err != nil {
		return unavailable(err)
	}
	if written == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentStore) Create(ctx context.Context, collection string, fields domain.Document) (string, error) {
	id := uuid.NewString()
	if err := s.Put(ctx, collection, id, fields, app.PutOptions{}); err != nil {
		return "", err
	}
	return id, nil
}

// Subscribe listens on the document channel and re-reads the document for
// each notification. Notifications that queue up while a read is in flight
// collapse into one read, since the read returns the latest version anyway.
func (s *DocumentStore) Subscribe(ctx context.Context, collection, id string, onSnapshot func(domain.Document)) (func(), error) {
	key := documentKey(collection, id)
	subCtx, cancel := context.WithCancel(ctx)

	ps := s.client.Subscribe(subCtx, key)
	if _, err := ps.Receive(subCtx); err != nil {
		_ = ps.Close()
		cancel()
		return nil, unavailable(err)
	}
	initial, err := s.Get(subCtx, collection, id)
	if err != nil {
		_ = ps.Close()
		cancel()
		return nil, err
	}
	context.AfterFunc(subCtx, func() { _ = ps.Close() })

	notifications := ps.Channel()
	log := s.log.WithField("document", key)
	go func() {
		onSnapshot(initial)
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-notifications:
				if !ok {
					return
				}
				drain(notifications)
				doc, err := s.Get(subCtx, collection, id)
				if err != nil {
					if subCtx.Err() == nil {
						log.WithError(err).Warn("failed to read document after change notification")
					}
					continue
				}
				onSnapshot(doc)
			}
		}
	}()
	return cancel, nil
}

func drain(ch <-chan *redis.Message) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func documentKey(collection, id string) string {
	return "quizroom:doc:" + collection + ":" + id
}

func toDocument(values map[string]string) domain.Document {
	doc := make(domain.Document, len(values))
	for field, raw := range values {
		doc[field] = json.RawMessage(raw)
	}
	return doc
}

// hashValues flattens a document into field/value pairs in field order.
func hashValues(doc domain.Document) []interface{} {
	fields := make([]string, 0, len(doc))
	for field := range doc {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	values := make([]interface{}, 0, 2*len(fields))
	for _, field := range fields {
		values = append(values, field, string(doc[field]))
	}
	return values
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
