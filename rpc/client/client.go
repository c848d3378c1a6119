package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dbsrv/rpc/common"
	"github.com/ValentinKolb/dbsrv/rpc/serializer"
	"github.com/ValentinKolb/dbsrv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// IRPCClient sends commands to a dbsrv server. Every call uses its own connection.
type IRPCClient interface {
	// Call invokes a function command and returns its result.
	// Failures reported by the server are returned as *common.CommandError.
	Call(ctx context.Context, name string, args ...any) (any, error)
	// CallMethod invokes a method of the server state for the given calculation.
	// The method prefix is added to name if missing.
	CallMethod(ctx context.Context, name string, calcID int64, args ...any) (any, error)
	// Stop asks the server to shut down. The server acknowledges before it stops.
	Stop(ctx context.Context) error
	// Close releases the transport
	Close() error
}

// NewRPCClient creates a client and connects the transport
func NewRPCClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (IRPCClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}
	if err := transport.Connect(config); err != nil {
		return nil, err
	}
	return &rpcClient{
		config:     config,
		transport:  transport,
		serializer: serializer,
	}, nil
}

type rpcClient struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see client.IRPCClient)
// --------------------------------------------------------------------------

func (c *rpcClient) Call(ctx context.Context, name string, args ...any) (any, error) {
	req, err := common.NewCommand(name, args...)
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, req)
}

func (c *rpcClient) CallMethod(ctx context.Context, name string, calcID int64, args ...any) (any, error) {
	req, err := common.NewMethodCommand(name, calcID, args...)
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, req)
}

func (c *rpcClient) Stop(ctx context.Context) error {
	_, err := c.invoke(ctx, common.NewStopCommand())
	return err
}

func (c *rpcClient) Close() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invoke sends a command and converts the reply. An error kind in the reply is
// returned as *common.CommandError, so callers can match it with errors.Is.
func (c *rpcClient) invoke(ctx context.Context, req *common.Message) (any, error) {
	reqBytes, err := c.serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", req.Name, err)
	}

	respBytes, err := c.transport.Send(ctx, reqBytes)
	if err != nil {
		return nil, err
	}

	var resp common.Message
	if err := c.serializer.Deserialize(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode reply to %s: %w", req.Name, err)
	}
	if resp.MsgType != common.MsgTReply {
		return nil, fmt.Errorf("unexpected message type %s in reply to %s", resp.MsgType, req.Name)
	}

	if resp.ErrKind != "" {
		msg, ok := resp.Result.(string)
		if !ok {
			msg = common.FormatValue(resp.Result)
		}
		Logger.Debugf("%s failed on the server with %s", req.Name, resp.ErrKind)
		return nil, &common.CommandError{Kind: resp.ErrKind, Msg: msg}
	}
	return resp.Result, nil
}
