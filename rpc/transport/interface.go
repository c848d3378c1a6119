package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when an authenticated request is received
// It returns the response and whether the transport should shut down after the response was written
type ServerHandleFunc func(ctx context.Context, req []byte) (resp []byte, stop bool)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler is called once per connection after the handshake succeeded
	RegisterHandler(handler ServerHandleFunc)
	// Listen binds the endpoint and serves connections until the handler requests a stop
	// or the context is cancelled. In both cases nil is returned once in-flight requests finished.
	// Failing to bind the endpoint is the only error returned.
	Listen(ctx context.Context, config common.ServerConfig) error
	// Addr returns the bound address (nil before Ready is closed)
	Addr() net.Addr
	// Ready is closed once the endpoint is bound
	Ready() <-chan struct{}
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send opens an authenticated connection, sends the request and returns the response.
	// The connection is closed afterwards.
	Send(ctx context.Context, req []byte) (resp []byte, err error)
	// Close releases the transport
	Close() error
}
