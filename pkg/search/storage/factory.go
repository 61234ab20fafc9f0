package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSQLiteUnavailable is returned for sqlite locations in binaries built
// without the sqlite tag.
var ErrSQLiteUnavailable = errors.New("archive store: sqlite support needs the sqlite build tag")

// NewStore returns an uninitialised store for a backend kind. path is only
// read by the sqlite backend.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(path)
	}
	return nil, fmt.Errorf("unsupported store backend: %s", kind)
}

// ParseLocation splits a location of the form kind[:path], for example
// "sqlite:runs.db".
func ParseLocation(location string) (kind, path string) {
	kind, path, _ = strings.Cut(location, ":")
	return kind, path
}

// Open creates and initialises the store at location.
func Open(ctx context.Context, location string) (Store, error) {
	store, err := NewStore(ParseLocation(location))
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("opening store %q: %w", location, err)
	}
	return store, nil
}

type closer interface {
	Close() error
}

// Close releases the resources of stores that hold any, such as an open
// database handle. Stores without resources are left alone.
func Close(store Store) error {
	if c, ok := store.(closer); ok {
		return c.Close()
	}
	return nil
}
