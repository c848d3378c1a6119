// Package transport defines the interfaces for moving framed requests between the
// command client and the command server. Implementations live in the sub packages
// (base for the shared core, tcp and unix for the concrete sockets).
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transports. Every Send uses its
//     own authenticated connection which is closed after the response was read.
//
//   - IRPCServerTransport: Interface for server-side transports that accept and
//     authenticate connections and pass exactly one request per connection to the
//     registered handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
package transport
