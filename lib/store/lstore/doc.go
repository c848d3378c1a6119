// Package lstore implements a local, in-memory key-value store based on the
// store.IStore interface. Data is not persisted between process restarts.
//
// The store is a thin layer over a concurrent xsync.MapOf. Values are copied on
// write and on read, so callers can never modify stored data.
//
// Expiry is lazy: an expired key is invisible to all reads and removed on the next
// access to it. SetEIfUnset treats expired keys as absent and runs as a single
// atomic compute operation on the map.
//
// Usage Example:
//
//	s := lstore.NewLocalStore()
//	defer s.Close()
//
//	// Store a value with 5-minute expiration
//	err := s.SetE("session:123", sessionData, 5*time.Minute)
//
//	// Retrieve the value
//	value, exists, err := s.Get("session:123")
package lstore
