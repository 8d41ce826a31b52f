package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a record does not exist or is not owned by the caller.
var ErrNotFound = errors.New("record not found")

func notFoundOr(err error, wrapped error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return wrapped
}
