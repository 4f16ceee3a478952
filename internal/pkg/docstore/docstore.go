// Package docstore gives uniform read and batch-write access to the document
// store, whichever credential path is available to the process.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrNotConfigured means no path to the store could be bootstrapped.
	ErrNotConfigured = errors.New("document store is not configured")
	// ErrDatabaseAbsent means the degraded path reached the server but the
	// database itself does not exist. It is never treated as an empty collection.
	ErrDatabaseAbsent = errors.New("document database does not exist")
	// ErrInvalidOp is returned for operations missing a collection or id.
	ErrInvalidOp = errors.New("invalid batch operation")
)

// OpKind distinguishes upserts from deletes inside a batch.
type OpKind int

const (
	OpUpsert OpKind = iota
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpUpsert:
		return "upsert"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Document is a schemaless record addressed by collection and id.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Op is one write in a batch. Merge upserts keep existing fields that are not
// present in Fields.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Fields     map[string]any
	Merge      bool
}

// Upsert builds a merge upsert.
func Upsert(collection, id string, fields map[string]any) Op {
	return Op{Kind: OpUpsert, Collection: collection, ID: id, Fields: fields, Merge: true}
}

// Delete builds a delete.
func Delete(collection, id string) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id}
}

// Backend is the read/batch-write contract shared by every path.
type Backend interface {
	Name() string
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	// BatchWrite applies ops in order as one atomic unit.
	BatchWrite(ctx context.Context, ops []Op) error
}
