// Package store provides the persistent key-value boundary plugins use for
// their own state. The launcher core only passes opaque values through; it
// never persists view context here.
package store

// Store is a namespaced key-value store.
type Store interface {
	// Get returns the stored value, or def when the key is absent.
	Get(key string, def any) any
	Set(key string, value any) error
	Delete(key string) error
	Keys() []string
}

// Provider hands out per-plugin namespaced stores.
type Provider interface {
	Namespace(ns string) Store
}
