// Package lockmgr implements locks on top of any store.IStore. The server exposes
// it to workers, so independent processes working on the same calculation can
// coordinate access to shared resources.
//
// The lock manager only ever stores in the provided IStore and has no other internal
// state. Therefore it is safe to be created multiple times on the same store.
//
// Implementation Approach:
//
//	- Lock Acquisition: Attempts to create the key with SetEIfUnset, which
//	  guarantees that only one requester can create it. The value is a random
//	  256 bit owner ID that identifies the holder.
//
//	- Timeouts: A timeout (seconds) is stored as the ttl of the key, so the lock
//	  is released automatically if the holder crashes.
//
//	- Safe Release: ReleaseLock compares the owner ID before deleting the key.
//
// Lock keys are stored below the "locks/" prefix.
//
// Usage Example:
//
//	lm := lockmgr.NewLockManager(store)
//
//	acquired, ownerID, err := lm.AcquireLock("calc:42:hazard", 30)
//	if err != nil {
//	    // Handle error
//	}
//
//	if acquired {
//	    // Use the resource
//	    released, err := lm.ReleaseLock("calc:42:hazard", ownerID)
//	}
package lockmgr
