package stores

import "errors"

// ErrNotFound is returned when a record id is not present in the store.
var ErrNotFound = errors.New("record not found")

// IsNotFoundError reports whether the error indicates a missing record.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
