//go:build !sqlite

package storage

// DefaultLocation is where runs are stored when no location is given.
// Without the sqlite tag only the process-local memory store exists.
const DefaultLocation = "memory"

func newSQLiteStore(string) (Store, error) {
	return nil, ErrSQLiteUnavailable
}
