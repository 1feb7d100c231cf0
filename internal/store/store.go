// Package store persists traffic records as schema-less documents in named
// collections.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Reserved document fields owned by the store
const (
	FieldID        = "_id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var (
	// ErrNotConnected is returned by every operation of a store that was
	// never configured.
	ErrNotConnected = errors.New("database not available")

	// ErrInvalidFilter is returned when a filter names a field that is not a
	// plain identifier.
	ErrInvalidFilter = errors.New("invalid filter field")
)

// Document is a stored record. Documents read back from a Gateway carry
// FieldID as a string and FieldCreatedAt/FieldUpdatedAt as time.Time.
type Document map[string]any

// Filter restricts a listing to documents whose fields equal the given values
type Filter map[string]any

// Gateway creates and queries documents in named collections. Implementations
// must be safe for concurrent use.
type Gateway interface {
	// CreateDocument stores doc in collection and returns its assigned id.
	CreateDocument(ctx context.Context, collection string, doc Document) (string, error)

	// GetDocuments returns up to limit documents matching filter, in
	// insertion order.
	GetDocuments(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error)

	// ListCollections returns the names of collections holding documents.
	ListCollections(ctx context.Context) ([]string, error)

	// Name is the logical database name.
	Name() string

	Close() error
}

// StorageError wraps any failure of a Gateway operation
type StorageError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op, collection string, err error) error {
	return &StorageError{Op: op, Collection: collection, Err: err}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkFilter(filter Filter) error {
	for field := range filter {
		if !identPattern.MatchString(field) {
			return fmt.Errorf("%w: %q", ErrInvalidFilter, field)
		}
	}
	return nil
}

// Open returns the gateway selected by url. An empty url yields a
// Disconnected gateway, "memory://" an in-memory store, and anything else is
// treated as a SQLite database path (an optional "sqlite://" prefix is
// stripped).
func Open(url, name string) (Gateway, error) {
	switch {
	case url == "":
		return Disconnected{}, nil
	case strings.HasPrefix(url, "memory://"):
		return NewMemoryStore(name), nil
	default:
		s, err := OpenSQLite(strings.TrimPrefix(url, "sqlite://"), name)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Connected reports whether g is backed by a real database
func Connected(g Gateway) bool {
	if g == nil {
		return false
	}
	_, disconnected := g.(Disconnected)
	return !disconnected
}

// Disconnected is the gateway used when no database is configured
type Disconnected struct{}

func (Disconnected) CreateDocument(_ context.Context, collection string, _ Document) (string, error) {
	return "", storageErr("create", collection, ErrNotConnected)
}

func (Disconnected) GetDocuments(_ context.Context, collection string, _ Filter, _ int) ([]Document, error) {
	return nil, storageErr("find", collection, ErrNotConnected)
}

func (Disconnected) ListCollections(context.Context) ([]string, error) {
	return nil, storageErr("list collections", "", ErrNotConnected)
}

func (Disconnected) Name() string { return "" }
func (Disconnected) Close() error { return nil }
