// Package tcp implements the TCP socket transport of the command server. It provides
// concrete implementations of the base package's connector interfaces, all framing,
// authentication and connection handling is inherited from the base package.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Both sides disable Nagle's algorithm and enable keep-alive on their connections.
package tcp
