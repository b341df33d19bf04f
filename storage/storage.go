// Package storage provides the persistence abstraction for account and
// session records.
package storage

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for keyed record storage. Values are
// opaque byte slices; callers handle encoding.
type Repository interface {
	Put(bucket string, key string, value []byte) error
	Get(bucket string, key string) ([]byte, error)
	Delete(bucket string, key string) error
	List(bucket string) ([]string, error)
	Close() error
}
