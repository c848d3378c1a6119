package server

import (
	"context"
	"io"
	"strings"

	"github.com/ValentinKolb/dbsrv/rpc/common"
)

// Call is a single invocation of a registered function or method
type Call struct {
	// Name of the command as sent by the client (methods include the prefix)
	Name string
	// Args are the positional arguments. For methods the calculation id is not part of Args.
	Args []any
	// CalcID is the calculation id of a method command (0 for functions)
	CalcID int64
	// Out collects the output of print-based commands. It becomes the result
	// if the command returns nil.
	Out io.Writer
}

// String returns a call-like representation, e.g. `div(1, 0)`
func (c *Call) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, a := range c.Args {
		parts = append(parts, common.FormatValue(a))
	}
	if strings.HasPrefix(c.Name, common.MethodPrefix) {
		parts = append(parts, common.FormatValue(c.CalcID))
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}

// HandlerFunc is the signature of every function and method the server can dispatch to.
// The context carries the per-call deadline. Returned errors are reported to the client
// with their error kind (see common.KindOf).
type HandlerFunc func(ctx context.Context, call *Call) (result any, err error)

// IRPCServerAdapter contributes methods bound to server state.
// All methods of one adapter share one mutex, so they never run concurrently with each other.
type IRPCServerAdapter interface {
	// Name identifies the adapter in logs
	Name() string
	// Methods returns the methods of the adapter by name (without method prefix)
	Methods() map[string]HandlerFunc
}

// IRPCServer is the command server
type IRPCServer interface {
	// Serve initializes the server and serves commands until a stop command is received
	// or the context is cancelled. Both return nil. An error is returned if the server
	// could not be initialized or the endpoint could not be bound.
	Serve(ctx context.Context) error
}
