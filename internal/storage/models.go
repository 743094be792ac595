package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is one row of the semantic index docstore. Position is the row
// index of the matching vector in the flat index file.
type Document struct {
	Position   int
	Name       string
	Category   string
	Content    string
	RecordJSON string
	CreatedAt  time.Time
}
