package server

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dbsrv/lib/store"
)

// NewIStoreServerAdapter creates an adapter that gives every calculation a private
// key-value area in the backend store. Keys are scoped by the calculation id.
func NewIStoreServerAdapter(s store.IStore) IRPCServerAdapter {
	return &iStoreServerAdapterImpl{store: s}
}

type iStoreServerAdapterImpl struct {
	store store.IStore
}

// dataKey returns the store key of a calculation value
func dataKey(calcID int64, key string) string {
	return fmt.Sprintf("data/%020d/%s", calcID, key)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (a *iStoreServerAdapterImpl) Name() string { return "store" }

func (a *iStoreServerAdapterImpl) Methods() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"set_value":    a.setValue,
		"get_value":    a.getValue,
		"has_value":    a.hasValue,
		"delete_value": a.deleteValue,
	}
}

// --------------------------------------------------------------------------
// Methods
// --------------------------------------------------------------------------

// setValue: key value [ttl seconds]
func (a *iStoreServerAdapterImpl) setValue(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 2, 3); err != nil {
		return nil, err
	}
	key, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	value, err := bytesArg(call, 1)
	if err != nil {
		return nil, err
	}

	var ttl time.Duration
	if len(call.Args) == 3 {
		seconds, err := intArg(call, 2)
		if err != nil {
			return nil, err
		}
		if seconds < 0 {
			return nil, argTypeError(call, 2, "a non-negative integer")
		}
		ttl = time.Duration(seconds) * time.Second
	}
	return nil, a.store.SetE(dataKey(call.CalcID, key), value, ttl)
}

// getValue: key -> bytes or nil
func (a *iStoreServerAdapterImpl) getValue(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 1, 1); err != nil {
		return nil, err
	}
	key, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	value, ok, err := a.store.Get(dataKey(call.CalcID, key))
	if err != nil || !ok {
		return nil, err
	}
	return value, nil
}

func (a *iStoreServerAdapterImpl) hasValue(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 1, 1); err != nil {
		return nil, err
	}
	key, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	return a.store.Has(dataKey(call.CalcID, key))
}

func (a *iStoreServerAdapterImpl) deleteValue(_ context.Context, call *Call) (any, error) {
	if err := expectArgs(call, 1, 1); err != nil {
		return nil, err
	}
	key, err := stringArg(call, 0)
	if err != nil {
		return nil, err
	}
	return nil, a.store.Delete(dataKey(call.CalcID, key))
}
