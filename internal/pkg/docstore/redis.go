package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix   = "docstore"
	redisBatchAttempts   = 3
	redisBatchRetryDelay = 50 * time.Millisecond
)

// RedisBackend is the degraded path used with client-scoped credentials.
// Redis has no notion of a collection, so each one is marked by a sentinel
// key that is created on first use.
type RedisBackend struct {
	client *redis.Client
	prefix string

	// collections whose sentinel has been confirmed
	probed sync.Map
}

// NewRedisBackend creates the degraded path on top of an existing client.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) Name() string { return "degraded" }

func (b *RedisBackend) docKey(collection, id string) string {
	return b.prefix + ":doc:" + collection + ":" + id
}

func (b *RedisBackend) indexKey(collection string) string {
	return b.prefix + ":idx:" + collection
}

func (b *RedisBackend) sentinelKey(collection string) string {
	return b.prefix + ":sentinel:" + collection
}

// ensureCollection probes the sentinel. A missing sentinel is a first run and
// gets synthesized; a missing database is escalated.
func (b *RedisBackend) ensureCollection(ctx context.Context, collection string) error {
	if _, ok := b.probed.Load(collection); ok {
		return nil
	}

	key := b.sentinelKey(collection)
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return classifyProbeError(err, b.client.Options().DB)
	}
	if n == 0 {
		payload, err := json.Marshal(map[string]any{
			"collection": collection,
			"createdAt":  time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := b.client.SetNX(ctx, key, payload, 0).Err(); err != nil {
			return classifyProbeError(err, b.client.Options().DB)
		}
		log.Infof("[docstore] Materialized collection %q on the degraded path", collection)
	}

	b.probed.Store(collection, struct{}{})
	return nil
}

func classifyProbeError(err error, db int) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "db index is out of range") || strings.Contains(msg, "invalid db index") {
		return fmt.Errorf("%w: redis database %d is not provisioned on the server (%v); "+
			"point CACHE_DB at an existing database index or raise `databases` in the redis configuration",
			ErrDatabaseAbsent, db, err)
	}
	return fmt.Errorf("probe collection: %w", err)
}

func (b *RedisBackend) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	if err := b.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}

	raw, err := b.client.Get(ctx, b.docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", docKey(collection, id), err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", docKey(collection, id), err)
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (b *RedisBackend) List(ctx context.Context, collection string) ([]Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := b.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}

	ids, err := b.client.SMembers(ctx, b.indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return []Document{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.docKey(collection, id)
	}
	vals, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(ids))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// index entry without a document
			continue
		}
		fields, err := decodeFields([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		docs = append(docs, Document{ID: ids[i], Fields: fields})
	}
	return docs, nil
}

// BatchWrite applies ops inside WATCH/MULTI/EXEC. Merge upserts read the
// watched documents first; a concurrent change aborts the transaction and the
// whole batch is retried.
func (b *RedisBackend) BatchWrite(ctx context.Context, ops []Op) error {
	if err := validateOps(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	for _, collection := range collectionsOf(ops) {
		if err := b.ensureCollection(ctx, collection); err != nil {
			return err
		}
	}

	var keys []string
	seen := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		k := b.docKey(op.Collection, op.ID)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	txFailed := func(err error) bool { return errors.Is(err, redis.TxFailedErr) }
	return retry(ctx, redisBatchAttempts, redisBatchRetryDelay, txFailed, func() error {
		return b.client.Watch(ctx, func(tx *redis.Tx) error {
			return b.applyBatch(ctx, tx, ops, keys)
		}, keys...)
	})
}

func (b *RedisBackend) applyBatch(ctx context.Context, tx *redis.Tx, ops []Op, keys []string) error {
	current := make(map[string]map[string]any, len(keys))
	vals, err := tx.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		fields, err := decodeFields([]byte(s))
		if err != nil {
			return fmt.Errorf("read %s: %w", keys[i], err)
		}
		current[keys[i]] = fields
	}

	// Fold the ops into a final state per key; nil marks a deletion.
	state := make(map[string]map[string]any, len(keys))
	owner := make(map[string]Op, len(keys))
	for _, op := range ops {
		k := b.docKey(op.Collection, op.ID)
		owner[k] = op
		if op.Kind == OpDelete {
			state[k] = nil
			continue
		}
		base, ok := state[k]
		if !ok {
			base = current[k]
		}
		merged, err := normalizeFields(mergeFields(base, op))
		if err != nil {
			return err
		}
		state[k] = merged
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			op := owner[k]
			fields := state[k]
			if fields == nil {
				pipe.Del(ctx, k)
				pipe.SRem(ctx, b.indexKey(op.Collection), op.ID)
				continue
			}
			raw, err := json.Marshal(fields)
			if err != nil {
				return err
			}
			pipe.Set(ctx, k, raw, 0)
			pipe.SAdd(ctx, b.indexKey(op.Collection), op.ID)
		}
		return nil
	})
	return err
}

func decodeFields(raw []byte) (map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}
