// Package unix implements the command transport over Unix domain sockets for
// workers running on the same machine as the server.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting framing, authentication and connection handling from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates the socket file (mode 0600) and listens on it. A stale
//     socket file of a previous run is removed first.
package unix
