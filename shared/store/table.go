// Package store provides the keyed, concurrency-safe tables backing the
// resource services. Each key is updated atomically; there are no
// transactions spanning keys or tables.
package store

import (
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Table is a keyed collection of records of one resource type.
type Table[T any] struct {
	name    string
	records *xsync.MapOf[string, T]
}

// NewTable creates an empty table.
func NewTable[T any](name string) *Table[T] {
	return &Table[T]{
		name:    name,
		records: xsync.NewMapOf[string, T](),
	}
}

// Name returns the table name.
func (t *Table[T]) Name() string {
	return t.name
}

// Insert stores record under id. It never overwrites an existing record.
func (t *Table[T]) Insert(id string, record T) error {
	if id == "" {
		return errors.Errorf("%s: empty id", t.name)
	}
	if _, loaded := t.records.LoadOrStore(id, record); loaded {
		return errors.Wrapf(ErrAlreadyExists, "%s %s", t.name, id)
	}
	return nil
}

// Delete removes the record stored under id.
func (t *Table[T]) Delete(id string) error {
	if _, loaded := t.records.LoadAndDelete(id); !loaded {
		return errors.Wrapf(ErrNotFound, "%s %s", t.name, id)
	}
	return nil
}

// Get returns the record stored under id.
func (t *Table[T]) Get(id string) (T, error) {
	record, ok := t.records.Load(id)
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrNotFound, "%s %s", t.name, id)
	}
	return record, nil
}

// Exists reports whether id is present.
func (t *Table[T]) Exists(id string) bool {
	_, ok := t.records.Load(id)
	return ok
}

// List returns a point-in-time copy of all records in no particular order.
func (t *Table[T]) List() []T {
	out := make([]T, 0, t.records.Size())
	t.records.Range(func(_ string, record T) bool {
		out = append(out, record)
		return true
	})
	return out
}

// Len returns the number of records.
func (t *Table[T]) Len() int {
	return t.records.Size()
}

// Clear removes every record.
func (t *Table[T]) Clear() {
	t.records.Clear()
}
