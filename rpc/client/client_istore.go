package client

import (
	"context"
	"time"

	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/ValentinKolb/dbsrv/rpc/serializer"
	"github.com/ValentinKolb/dbsrv/rpc/transport"
)

// ICalcData is the key-value area of one calculation on the server
type ICalcData interface {
	// Set stores a value. A ttl greater than zero deletes the value after that time (second precision).
	Set(key string, value []byte, ttl time.Duration) error
	// Get returns the value and whether it exists
	Get(key string) ([]byte, bool, error)
	// Has reports whether the key exists
	Has(key string) (bool, error)
	// Delete removes the key, deleting a missing key is not an error
	Delete(key string) error
}

// NewRPCCalcData creates a client for the key-value area of the given calculation
func NewRPCCalcData(
	calcID int64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (ICalcData, error) {
	c, err := NewRPCClient(config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcCalcData{calcID: calcID, client: c}, nil
}

type rpcCalcData struct {
	calcID int64
	client IRPCClient
}

// --------------------------------------------------------------------------
// Interface Methods (docu see client.ICalcData)
// --------------------------------------------------------------------------

func (d *rpcCalcData) Set(key string, value []byte, ttl time.Duration) error {
	args := []any{key, value}
	if ttl > 0 {
		args = append(args, int64((ttl+time.Second-1)/time.Second))
	}
	_, err := d.client.CallMethod(context.Background(), "set_value", d.calcID, args...)
	return err
}

func (d *rpcCalcData) Get(key string) ([]byte, bool, error) {
	res, err := d.client.CallMethod(context.Background(), "get_value", d.calcID, key)
	if err != nil || res == nil {
		return nil, false, err
	}
	value, ok := res.([]byte)
	if !ok {
		return nil, false, unexpected("get_value", res)
	}
	return value, true, nil
}

func (d *rpcCalcData) Has(key string) (bool, error) {
	res, err := d.client.CallMethod(context.Background(), "has_value", d.calcID, key)
	if err != nil {
		return false, err
	}
	ok, isBool := res.(bool)
	if !isBool {
		return false, unexpected("has_value", res)
	}
	return ok, nil
}

func (d *rpcCalcData) Delete(key string) error {
	_, err := d.client.CallMethod(context.Background(), "delete_value", d.calcID, key)
	return err
}
