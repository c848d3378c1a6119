// Package rpc provides the command channel of the database server. Worker processes
// use it to run commands against the shared backend instead of opening their own
// connections to it.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, error kinds, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets) and the shared-secret handshake.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: The client stub sending one command per connection, plus typed clients for
//     the job database and the lock manager.
//
//   - server: The dispatch table, the safe invocation wrapper and the server loop.
package rpc
