package storage

import (
	"fmt"
	"strings"
)

const (
	StoreKindMemory = "memory"
	StoreKindSQLite = "sqlite"
)

// DefaultStoreKind is the backend used when none is requested.
func DefaultStoreKind() string {
	return StoreKindMemory
}

// NewStore builds an uninitialized store; sqlitePath is only read by the
// sqlite backend. Kinds are matched case-insensitively.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", StoreKindMemory:
		return NewMemoryStore(), nil
	case StoreKindSQLite:
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %q (want %s or %s)", kind, StoreKindMemory, StoreKindSQLite)
	}
}

// CloseIfSupported closes stores that hold a resource.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
