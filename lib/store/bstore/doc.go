// Package bstore implements a persistent key-value store based on the
// store.IStore interface using BadgerDB.
//
// Every operation runs in its own badger transaction. Expiry uses badger's entry TTL,
// expired entries are invisible to reads and removed by badger's compaction.
// SetEIfUnset reads and writes in one transaction and is retried when badger reports
// a conflict with a concurrent writer, so only one caller can win.
//
// Badger's internal logging goes through the "store" dragonboat logger.
//
// Usage Example:
//
//	s, err := bstore.NewBadgerStore("/var/lib/dbsrv")
//	if err != nil {
//	    // Handle error
//	}
//	defer s.Close()
package bstore
