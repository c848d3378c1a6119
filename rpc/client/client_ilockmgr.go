package client

import (
	"context"

	"github.com/ValentinKolb/dbsrv/lib/lockmgr"
	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/ValentinKolb/dbsrv/rpc/serializer"
	"github.com/ValentinKolb/dbsrv/rpc/transport"
)

// NewRPCLockMgr creates a new RPC ILockManager
// The locks are scoped to the given calculation, so the same key names can be used
// by different calculations.
func NewRPCLockMgr(
	calcID int64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (lockmgr.ILockManager, error) {
	c, err := NewRPCClient(config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcLockMgr{calcID: calcID, client: c}, nil
}

type rpcLockMgr struct {
	calcID int64
	client IRPCClient
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the lockmgr package in interface.go)
// --------------------------------------------------------------------------

func (l *rpcLockMgr) AcquireLock(key string, timeout uint64) (ok bool, ownerID []byte, err error) {
	res, err := l.client.CallMethod(context.Background(), "acquire_lock", l.calcID, key, timeout)
	if err != nil {
		return false, nil, err
	}
	m, isMap := res.(map[string]any)
	if !isMap {
		return false, nil, unexpected("acquire_lock", res)
	}
	ok, _ = m["ok"].(bool)
	if ok {
		ownerID, _ = m["owner"].([]byte)
	}
	return ok, ownerID, nil
}

func (l *rpcLockMgr) ReleaseLock(key string, ownerID []byte) (ok bool, err error) {
	res, err := l.client.CallMethod(context.Background(), "release_lock", l.calcID, key, ownerID)
	if err != nil {
		return false, err
	}
	ok, isBool := res.(bool)
	if !isBool {
		return false, unexpected("release_lock", res)
	}
	return ok, nil
}
