// Package store provides the key-value interface the server's databases are built on,
// with expiration, an atomic insert-if-absent and ordered prefix scans.
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for interacting with
//     a key-value store. All implementations share this common interface, allowing
//     the server to switch between backends by configuration.
//
//   - Error System: Failures are reported as *Error carrying a RetCode and a message.
//     The error reports the StoreError kind so it reaches remote callers categorized.
//
// Implementations:
//
//	- Local Store (lstore): In-memory, lost on restart. Expired keys are removed lazily
//	  on access. Available in "github.com/ValentinKolb/dbsrv/lib/store/lstore".
//
//	- Badger Store (bstore): Persistent store on top of BadgerDB, expiry is handled by
//	  badger's entry TTL. Available in "github.com/ValentinKolb/dbsrv/lib/store/bstore".
//
// The testing sub package contains a conformance suite every implementation must pass.
package store
