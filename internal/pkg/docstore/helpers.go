package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

func validateCollection(collection string) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidOp)
	}
	return nil
}

func validateKey(collection, id string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required for collection %q", ErrInvalidOp, collection)
	}
	return nil
}

// validateOps is run by every backend before touching the store so that a
// malformed batch never applies partially.
func validateOps(ops []Op) error {
	for i, op := range ops {
		if err := validateKey(op.Collection, op.ID); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
		switch op.Kind {
		case OpUpsert, OpDelete:
		default:
			return fmt.Errorf("op %d: %w: unknown kind %d", i, ErrInvalidOp, op.Kind)
		}
	}
	return nil
}

// mergeFields returns the document produced by applying op to existing.
func mergeFields(existing map[string]any, op Op) map[string]any {
	out := make(map[string]any, len(existing)+len(op.Fields))
	if op.Merge {
		for k, v := range existing {
			out[k] = v
		}
	}
	for k, v := range op.Fields {
		out[k] = v
	}
	return out
}

// normalizeFields converts values to their JSON shape (numbers to float64,
// times to RFC 3339 strings) so every backend returns the same types.
func normalizeFields(fields map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return out, nil
}

func docKey(collection, id string) string {
	return collection + "/" + id
}

// collectionsOf lists the distinct collections touched by ops, sorted.
func collectionsOf(ops []Op) []string {
	seen := make(map[string]struct{}, len(ops))
	var out []string
	for _, op := range ops {
		if _, ok := seen[op.Collection]; ok {
			continue
		}
		seen[op.Collection] = struct{}{}
		out = append(out, op.Collection)
	}
	sort.Strings(out)
	return out
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}

// retry runs fn up to attempts times while retryable(err) holds.
func retry(ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
