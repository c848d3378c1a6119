package lockmgr

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ValentinKolb/dbsrv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("lockmgr")

// keyPrefix separates lock keys from other data in a shared store
const keyPrefix = "locks/"

type lockMgrImpl struct {
	store store.IStore
}

// NewLockManager creates a lock manager that keeps all state in the given store
func NewLockManager(store store.IStore) ILockManager {
	return &lockMgrImpl{
		store: store,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string, timeout uint64) (bool, []byte, error) {
	if key == "" {
		return false, nil, fmt.Errorf("lock key must not be empty")
	}

	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	// Try to acquire the lock (by setting the value only if it doesn't exist - atomic CAS operation)
	ttl := time.Duration(timeout) * time.Second
	set, err := lm.store.SetEIfUnset(keyPrefix+key, ownerID, ttl)
	if err != nil {
		Logger.Errorf("Failed to acquire lock %q: %v", key, err)
		return false, nil, err
	}
	if !set {
		// held by someone else
		return false, nil, nil
	}

	Logger.Debugf("Acquired lock %q (timeout %ds)", key, timeout)
	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	// Check if the lock exists
	value, ok, err := lm.store.Get(keyPrefix + key)
	if err != nil || !ok {
		return err == nil, err
	}

	// Check if the lock is owned by the caller
	if !bytes.Equal(ownerID, value) {
		return false, nil
	}

	// Release the lock
	if err := lm.store.Delete(keyPrefix + key); err != nil {
		return false, err
	}
	Logger.Debugf("Released lock %q", key)
	return true, nil
}
