// Package cache holds derived read-models between writes.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Purge drops every entry. Writers call it after changing the ledger.
	Purge()
	Size() int
}

// Noop never stores anything. It stands in when caching is disabled.
type Noop[T any] struct{}

func (Noop[T]) Get(string) (T, bool) {
	var zero T
	return zero, false
}

func (Noop[T]) Set(string, T) {}
func (Noop[T]) Delete(string) {}
func (Noop[T]) Purge() {}
func (Noop[T]) Size() int { return 0 }
