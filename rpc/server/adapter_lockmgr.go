package server

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dbsrv/lib/lockmgr"
)

// NewLockManagerServerAdapter creates an adapter exposing the lock manager.
// Lock names are scoped by the calculation id, so calculations never share a lock.
func NewLockManagerServerAdapter(locks lockmgr.ILockManager) IRPCServerAdapter {
	return &lockMgrServerAdapter{locks: locks}
}

type lockMgrServerAdapter struct {
	locks lockmgr.ILockManager
}

func lockKey(calcID int64, key string) string {
	return fmt.Sprintf("%d/%s", calcID, key)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (a *lockMgrServerAdapter) Name() string { return "lockmgr" }

func (a *lockMgrServerAdapter) Methods() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"acquire_lock": a.acquire,
		"release_lock": a.release,
	}
}

// --------------------------------------------------------------------------
// Methods
// --------------------------------------------------------------------------

// acquire: key timeout -> {"ok": bool, "owner": bytes}
func (a *lockMgrServerAdapter) acquire(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 2, 2); err != nil {
		return nil, err
	}
	key, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	timeout, err := intArg(call, 1)
	if err != nil {
		return nil, err
	}
	if timeout < 0 {
		return nil, argTypeError(call, 1, "a non-negative integer")
	}

	ok, owner, err := a.locks.AcquireLock(lockKey(call.CalcID, key), uint64(timeout))
	if err != nil {
		return nil, err
	}
	if owner == nil {
		owner = []byte{}
	}
	return map[string]any{"ok": ok, "owner": owner}, nil
}

// release: key owner -> bool
func (a *lockMgrServerAdapter) release(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 2, 2); err != nil {
		return nil, err
	}
	key, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	owner, err := bytesArg(call, 1)
	if err != nil {
		return nil, err
	}
	return a.locks.ReleaseLock(lockKey(call.CalcID, key), owner)
}
