// Package common provides core data structures and utilities shared across
// the command server. It defines the message protocol, the value model,
// the error kinds and the configuration structures used by the other packages.
//
// The package focuses on:
//   - Message protocol definition for commands and replies
//   - Normalization of opaque argument and result values
//   - Error kinds that survive the trip across the network
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with the dragonboat logger
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. A command carries a
//     name plus positional arguments, a reply carries a result plus an error kind.
//     Names starting with MethodPrefix address methods of the server state, the
//     reserved name StopCommand shuts the server down.
//
//   - Normalize: Converts Go values into the wire value set (nil, bool, int64,
//     float64, string, []byte, []any, map[string]any) that every serializer can
//     round-trip.
//
//   - CommandError: A failure tagged with an error kind. Sentinel errors such as
//     ErrLookup or ErrArithmetic match every CommandError of the same kind with
//     errors.Is, whether it was raised locally or reported by the server.
//
//   - ServerConfig / ClientConfig: Configuration read once at startup and validated
//     with struct tags.
//
//   - Logger: Custom logging implementation that plugs into the dragonboat logger
//     factory and provides consistent formatting across the application.
package common
